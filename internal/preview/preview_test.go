package preview

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetplan/internal/csvtable"
)

func TestRender_Empty(t *testing.T) {
	m := Render(csvtable.Table{}, 0)
	assert.True(t, m.Empty)
	assert.Equal(t, Placeholder, m.Placeholder)
	assert.Equal(t, `<p class="hint">No data to display.</p>`, m.HTML())
}

func TestRender_Escapes(t *testing.T) {
	tb := csvtable.Table{
		Headers: []string{"<b>name</b>"},
		Rows:    [][]string{{`Tom & "Jerry"`}},
	}
	m := Render(tb, 10)
	assert.Equal(t, "&lt;b&gt;name&lt;/b&gt;", m.Headers[0])
	assert.Equal(t, "Tom &amp; &#34;Jerry&#34;", m.Rows[0][0])
	assert.Contains(t, m.HTML(), `<td title="Tom &amp; &#34;Jerry&#34;">`)
	assert.Equal(t, `Tom & "Jerry"`, tb.Rows[0][0], "source table must not change")
}

func TestRender_Truncates(t *testing.T) {
	tb := csvtable.Table{Headers: []string{"n"}}
	for i := 0; i < 25; i++ {
		tb.Rows = append(tb.Rows, []string{fmt.Sprint(i)})
	}
	m := Render(tb, 10)
	require.Len(t, m.Rows, 10)
	assert.Equal(t, 25, m.Total)
	assert.Equal(t, 10, m.Shown)
	assert.Equal(t, 15, m.Truncated)
	assert.Equal(t, "Showing first 10 of 25 rows.", m.Note)
	assert.Contains(t, m.HTML(), `<div class="hint">Showing first 10 of 25 rows.</div>`)

	m = Render(tb, 25)
	assert.Zero(t, m.Truncated)
	assert.Empty(t, m.Note)
}

func TestRender_DefaultLimit(t *testing.T) {
	tb := csvtable.Table{Headers: []string{"n"}}
	for i := 0; i < DefaultLimit+1; i++ {
		tb.Rows = append(tb.Rows, []string{"x"})
	}
	m := Render(tb, 0)
	assert.Equal(t, DefaultLimit, m.Shown)
	assert.Equal(t, 1, m.Truncated)
}
