package csvtable

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vehicleSample = "id,vehicle_description,capacity,start_latitude,start_longitude,end_latitude,end_longitude,shift_start,shift_end,max_tasks\n" +
	"V1,Van,500,40.0,-3.0,40.1,-3.1,08:00,18:00,20\n"

func TestParse_VehicleSample(t *testing.T) {
	got := Parse(vehicleSample)
	require.Len(t, got.Headers, 10)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, []string{"V1", "Van", "500", "40.0", "-3.0", "40.1", "-3.1", "08:00", "18:00", "20"}, got.Rows[0])
}

func TestParse_Empty(t *testing.T) {
	got := Parse("")
	assert.Empty(t, got.Headers)
	assert.Empty(t, got.Rows)
	assert.True(t, got.Empty())

	got = Parse("\r\n\r\n")
	assert.True(t, got.Empty())
}

func TestParse_BOMInvariant(t *testing.T) {
	inputs := []string{
		vehicleSample,
		"a,b\r\n1,2\r\n",
		"\"x\",y\n\"q\"\"uote\",\"multi\nline\"\n",
	}
	for _, in := range inputs {
		plain := Parse(in)
		withBOM := Parse("\ufeff" + in)
		if diff := cmp.Diff(plain, withBOM); diff != "" {
			t.Errorf("BOM changed result (-plain +bom):\n%s", diff)
		}
	}
}

func TestParse_QuotingAndLineEndings(t *testing.T) {
	text := "name,note\r\n\"Smith, J\",\"said \"\"hi\"\"\"\r\nplain,\"two\r\nlines\"\r\n"
	got := Parse(text)
	want := Table{
		Headers: []string{"name", "note"},
		Rows: [][]string{
			{"Smith, J", `said "hi"`},
			{"plain", "two\r\nlines"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_HeadersTrimmedCellsKept(t *testing.T) {
	got := Parse("  id , name \n x , y \n")
	assert.Equal(t, []string{"id", "name"}, got.Headers)
	assert.Equal(t, []string{" x ", " y "}, got.Rows[0])
}

func TestParse_PadAndTruncate(t *testing.T) {
	got := Parse("a,b,c\n1\n1,2,3,4,5\n")
	require.Len(t, got.Rows, 2)
	assert.Equal(t, []string{"1", "", ""}, got.Rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, got.Rows[1])
}

func TestParse_TrailingEmptyDroppedInteriorKept(t *testing.T) {
	got := Parse("a,b\n1,2\n\n,\n3,4\n\n,\n\n")
	want := [][]string{{"1", "2"}, {"", ""}, {"", ""}, {"3", "4"}}
	assert.Equal(t, want, got.Rows)
}

func TestParse_NoTrailingNewline(t *testing.T) {
	got := Parse("a,b\n1,2")
	assert.Equal(t, [][]string{{"1", "2"}}, got.Rows)

	got = Parse("a,b\n1,\"\"")
	assert.Equal(t, [][]string{{"1", ""}}, got.Rows)
}

func TestParse_UnterminatedQuote(t *testing.T) {
	got := Parse("a,b\n1,\"open,\nstill open")
	require.Len(t, got.Rows, 1)
	assert.Equal(t, []string{"1", "open,\nstill open"}, got.Rows[0])
}

func TestParse_QuoteMidField(t *testing.T) {
	got := Parse("a\nab\"c,d\"e\n")
	assert.Equal(t, [][]string{{"abc,de"}}, got.Rows)
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []string{"a", "B", "7", " ", ",", "\"", "\n", "\r\n", "é", ";", "\t"}
	cell := func() string {
		n := rng.Intn(6)
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteString(alphabet[rng.Intn(len(alphabet))])
		}
		return b.String()
	}
	for iter := 0; iter < 200; iter++ {
		width := 1 + rng.Intn(5)
		headers := make([]string, width)
		for i := range headers {
			headers[i] = "h" + string(rune('a'+i)) + strings.TrimSpace(cell())
		}
		rows := make([][]string, rng.Intn(6))
		for i := range rows {
			rows[i] = make([]string, width)
			for j := range rows[i] {
				rows[i][j] = cell()
			}
		}
		if n := len(rows); n > 0 {
			// trailing all-empty rows are dropped by design
			rows[n-1][0] = "end"
		}
		in := Table{Headers: headers, Rows: rows}
		out := Parse(string(Marshal(in)))
		if len(in.Rows) == 0 {
			in.Rows = [][]string{}
		}
		if diff := cmp.Diff(in, out); diff != "" {
			t.Fatalf("iteration %d round trip mismatch (-in +out):\n%s", iter, diff)
		}
	}
}

func TestTable_RecordsAndColumn(t *testing.T) {
	tb := Parse("id,capacity\nV1,10\nV2,20\n")
	recs := tb.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "20", recs[1]["capacity"])
	assert.Equal(t, 1, tb.Column("capacity"))
	assert.Equal(t, -1, tb.Column("missing"))
}
