// Package csvtable parses and writes the comma-separated vehicle and shipment
// files uploaded by operators.
package csvtable

import "strings"

const bom = "\ufeff"

// Table is a parsed file: trimmed header cells plus data rows that are
// always exactly len(Headers) wide.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Empty reports whether the table has no header row.
func (t Table) Empty() bool { return len(t.Headers) == 0 }

// Records maps every row to a header -> value map.
func (t Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		m := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			m[h] = r[i]
		}
		out = append(out, m)
	}
	return out
}

// Column returns the index of the named header, or -1.
func (t Table) Column(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// Parse scans text into a Table.
//
// Quoting follows the usual spreadsheet export rules: a quote opens a quoted
// section, a doubled quote inside it is a literal quote, and commas or line
// breaks inside quotes are kept verbatim. CR is ignored outside quotes so CRLF
// and LF files parse the same. An unterminated quote at the end of input keeps
// everything after it as the field's value.
func Parse(text string) Table {
	text = strings.TrimPrefix(text, bom)

	var (
		records  [][]string
		record   []string
		field    strings.Builder
		inQuotes bool
		// quoted marks a field that saw a quote, so `""` at EOF still flushes.
		quoted bool
	)
	endField := func() {
		record = append(record, field.String())
		field.Reset()
		quoted = false
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inQuotes {
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					field.WriteByte('"')
					i++
				} else {
					inQuotes = false
				}
			} else {
				field.WriteByte(c)
			}
			continue
		}
		switch c {
		case '"':
			inQuotes = true
			quoted = true
		case ',':
			endField()
		case '\n':
			endField()
			records = append(records, record)
			record = nil
		case '\r':
		default:
			field.WriteByte(c)
		}
	}
	if field.Len() > 0 || len(record) > 0 || quoted {
		endField()
		records = append(records, record)
	}

	for len(records) > 0 && allEmpty(records[len(records)-1]) {
		records = records[:len(records)-1]
	}
	if len(records) == 0 {
		return Table{Headers: []string{}, Rows: [][]string{}}
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}
	rows := make([][]string, 0, len(records)-1)
	for _, r := range records[1:] {
		rows = append(rows, fit(r, len(headers)))
	}
	return Table{Headers: headers, Rows: rows}
}

func allEmpty(r []string) bool {
	for _, v := range r {
		if v != "" {
			return false
		}
	}
	return true
}

// fit pads short records with empty strings and drops surplus trailing fields.
func fit(r []string, width int) []string {
	out := make([]string, width)
	copy(out, r)
	return out
}
