package csvtable

import (
	"bytes"
	"io"
	"strings"
)

// Escape quotes a field when it holds a comma, quote, CR or LF, doubling any
// inner quotes. Other fields are returned unchanged.
func Escape(v string) string {
	if !strings.ContainsAny(v, ",\"\r\n") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

// Write emits headers and rows as RFC4180 text with CRLF after every record.
func Write(w io.Writer, headers []string, rows [][]string) error {
	if err := writeRecord(w, headers); err != nil {
		return err
	}
	for _, r := range rows {
		if err := writeRecord(w, r); err != nil {
			return err
		}
	}
	return nil
}

func writeRecord(w io.Writer, rec []string) error {
	var b strings.Builder
	for i, v := range rec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(Escape(v))
	}
	b.WriteString("\r\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// Marshal is Write into a byte slice.
func Marshal(t Table) []byte {
	var buf bytes.Buffer
	_ = Write(&buf, t.Headers, t.Rows)
	return buf.Bytes()
}

// Template returns a header-only file for the given columns.
func Template(headers []string) []byte {
	var buf bytes.Buffer
	_ = Write(&buf, headers, nil)
	return buf.Bytes()
}
