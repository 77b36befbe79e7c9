// Package report turns computed school views into tables and renders them as CSV, Word or PDF files.
package report

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/frizwan636-dotcom/attendancepro/core"
)

type Format string

const (
	CSV Format = "csv"
	DOC Format = "doc"
	PDF Format = "pdf"
)

var errUnknownFormat = errors.New("format must be one of csv, doc, pdf")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case CSV, DOC, PDF:
		return f, nil
	}
	return "", core.NewValidationError(errUnknownFormat, core.FieldError{Field: "format", Error: errUnknownFormat.Error()})
}

func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv"
	case DOC:
		return "application/msword"
	case PDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

func (f Format) Ext() string {
	return "." + string(f)
}

// Table is plain tabular data handed to a renderer. Rows are already formatted.
type Table struct {
	Title    string
	Subtitle string
	Columns  []string
	Rows     [][]string
	Notes    string // free text shown below the rows; ignored by CSV
}

// Filename derives a file name from the title, eg. "Fee Report" -> "fee-report.pdf".
func (t Table) Filename(f Format) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(t.Title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	name := strings.TrimSuffix(b.String(), "-")
	if name == "" {
		name = "report"
	}
	return name + f.Ext()
}

// Render produces the file contents of t in format f.
func Render(f Format, t Table) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch f {
	case CSV:
		err = writeCSV(&buf, t)
	case DOC:
		err = writeDoc(&buf, t)
	case PDF:
		err = writePDF(&buf, t)
	default:
		return nil, errUnknownFormat
	}
	if err != nil {
		return nil, core.NewExternalServiceError(string(f)+" renderer", err)
	}
	return buf.Bytes(), nil
}

// amount keeps the sign, an overpaid balance renders as "-100".
func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func percent(v int) string {
	return strconv.Itoa(v) + "%"
}
