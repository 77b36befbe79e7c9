package report

import (
	"encoding/csv"
	"html/template"
	"io"

	"github.com/jung-kurt/gofpdf"
)

func writeCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// Word opens HTML served as application/msword.
var docTmpl = template.Must(template.New("doc").Parse(`<html xmlns:o="urn:schemas-microsoft-com:office:office" xmlns:w="urn:schemas-microsoft-com:office:word">
<head><meta charset="utf-8"><title>{{.Title}}</title>
<style>
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 4px 8px; font-family: Arial, sans-serif; font-size: 11pt; }
th { background: #e8e8e8; }
</style></head>
<body>
<h1>{{.Title}}</h1>
{{if .Subtitle}}<h3>{{.Subtitle}}</h3>{{end}}
<table>
<tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>
{{if .Notes}}<p>{{.Notes}}</p>{{end}}
</body>
</html>
`))

func writeDoc(w io.Writer, t Table) error {
	return docTmpl.Execute(w, t)
}

const (
	pdfMargin     = 10.0
	pdfLineHeight = 7.0
)

func writePDF(w io.Writer, t Table) error {
	orientation := "P"
	if len(t.Columns) > 6 {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("") // cp1252
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(t.Title), "", 1, "L", false, 0, "")
	if t.Subtitle != "" {
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, tr(t.Subtitle), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	if len(t.Columns) > 0 {
		pageW, _ := pdf.GetPageSize()
		colW := (pageW - 2*pdfMargin) / float64(len(t.Columns))

		header := func() {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetFillColor(232, 232, 232)
			for _, col := range t.Columns {
				pdf.CellFormat(colW, pdfLineHeight, tr(col), "1", 0, "C", true, 0, "")
			}
			pdf.Ln(-1)
			pdf.SetFont("Helvetica", "", 10)
		}
		header()

		_, pageH := pdf.GetPageSize()
		for _, row := range t.Rows {
			if pdf.GetY()+pdfLineHeight > pageH-pdfMargin {
				pdf.AddPage()
				header()
			}
			for i := range t.Columns {
				var cell string
				if i < len(row) {
					cell = row[i]
				}
				pdf.CellFormat(colW, pdfLineHeight, tr(cell), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	if t.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 5, tr(t.Notes), "", "L", false)
	}
	return pdf.Output(w)
}
