// Package preview renders a bounded, escaped view of a parsed table.
package preview

import (
	"fmt"
	"html"
	"strings"

	"fleetplan/internal/csvtable"
)

// DefaultLimit is the number of data rows shown when no limit is given.
const DefaultLimit = 1000

// Placeholder is shown instead of a table when there are no headers.
const Placeholder = "No data to display."

// Model is the renderable preview. Cell text is already escaped.
type Model struct {
	Empty       bool       `json:"empty"`
	Placeholder string     `json:"placeholder,omitempty"`
	Headers     []string   `json:"headers,omitempty"`
	Rows        [][]string `json:"rows,omitempty"`
	Total       int        `json:"total"`
	Shown       int        `json:"shown"`
	Truncated   int        `json:"truncated,omitempty"`
	Note        string     `json:"note,omitempty"`
}

// Render builds a Model from t showing at most limit rows. A non-positive
// limit means DefaultLimit. The table is not modified.
func Render(t csvtable.Table, limit int) Model {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(t.Headers) == 0 {
		return Model{Empty: true, Placeholder: Placeholder}
	}
	m := Model{
		Headers: escapeAll(t.Headers),
		Total:   len(t.Rows),
	}
	n := len(t.Rows)
	if n > limit {
		n = limit
	}
	m.Rows = make([][]string, n)
	for i := 0; i < n; i++ {
		m.Rows[i] = escapeAll(t.Rows[i])
	}
	m.Shown = n
	if m.Total > limit {
		m.Truncated = m.Total - limit
		m.Note = fmt.Sprintf("Showing first %d of %d rows.", limit, m.Total)
	}
	return m
}

// HTML renders the model as table markup.
func (m Model) HTML() string {
	if m.Empty {
		return `<p class="hint">` + m.Placeholder + `</p>`
	}
	var b strings.Builder
	b.WriteString(`<div class="table-scroll"><table><thead><tr>`)
	for _, h := range m.Headers {
		b.WriteString("<th>" + h + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, r := range m.Rows {
		b.WriteString("<tr>")
		for _, c := range r {
			b.WriteString(`<td title="` + c + `">` + c + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table></div>")
	if m.Note != "" {
		b.WriteString(`<div class="hint">` + m.Note + "</div>")
	}
	return b.String()
}

func escapeAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = html.EscapeString(v)
	}
	return out
}
