// Package export renders the comparison table as a PDF document.
package export

import (
	"fmt"
	"io"

	"tender_dashboard/internal/viewmodel"

	"github.com/go-pdf/fpdf"
)

const FileName = "Tender_Comparison.pdf"

const (
	fontFamily = "Helvetica"
	fontSize   = 9
	lineHeight = 11
	cellPad    = 4
	margin     = 28
)

type Options struct {
	Title string
}

// ComparisonPDF writes table to w as a landscape A4 document. Columns share
// the page width equally; long cells wrap and the header row is repeated on
// every page.
func ComparisonPDF(w io.Writer, table viewmodel.ComparisonTable, opts Options) error {
	const op = "export.ComparisonPDF"

	pdf, err := render(table, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type layout struct {
	pdf     *fpdf.Fpdf
	tr      func(string) string
	widths  []float64
	left    float64
	bottom  float64
	headers []string
}

func render(table viewmodel.ComparisonTable, opts Options) (*fpdf.Fpdf, error) {
	pdf := fpdf.New("L", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetCreator("tender-dashboard", false)
	if opts.Title != "" {
		pdf.SetTitle(opts.Title, true)
	}
	pdf.AddPage()

	l := &layout{
		pdf:     pdf,
		tr:      pdf.UnicodeTranslatorFromDescriptor(""),
		left:    margin,
		headers: headerRow(table),
	}
	pageW, pageH := pdf.GetPageSize()
	l.bottom = pageH - margin

	colW := (pageW - 2*margin) / float64(len(l.headers))
	l.widths = make([]float64, len(l.headers))
	for i := range l.widths {
		l.widths[i] = colW
	}

	if opts.Title != "" {
		pdf.SetFont(fontFamily, "B", 14)
		pdf.CellFormat(0, 20, l.tr(opts.Title), "", 1, "L", false, 0, "")
		pdf.Ln(6)
	}

	l.row(l.headers, true)
	for _, r := range table.Rows {
		cells := make([]string, 0, len(l.headers))
		cells = append(cells, r.Label)
		cells = append(cells, r.Cells...)
		if table.WithRemarks {
			cells = append(cells, r.Remark)
		}
		l.row(cells, false)
	}

	if pdf.Err() {
		return nil, pdf.Error()
	}
	return pdf, nil
}

func headerRow(table viewmodel.ComparisonTable) []string {
	out := make([]string, 0, len(table.Headers)+2)
	out = append(out, "Aspect")
	out = append(out, table.Headers...)
	if table.WithRemarks {
		out = append(out, "Remarks")
	}
	return out
}

// row draws one table row, starting a new page (with the header again)
// when it does not fit.
func (l *layout) row(cells []string, header bool) {
	pdf := l.pdf

	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontFamily, style, fontSize)

	lines := make([][][]byte, len(l.widths))
	height := 0.0
	for i, w := range l.widths {
		text := ""
		if i < len(cells) {
			text = cells[i]
		}
		lines[i] = pdf.SplitLines([]byte(l.tr(text)), w-2*cellPad)
		if len(lines[i]) == 0 {
			lines[i] = [][]byte{nil}
		}
		if h := float64(len(lines[i]))*lineHeight + 2*cellPad; h > height {
			height = h
		}
	}

	if pdf.GetY()+height > l.bottom && !header {
		pdf.AddPage()
		l.row(l.headers, true)
		pdf.SetFont(fontFamily, style, fontSize)
	}

	x, y := l.left, pdf.GetY()
	for i, w := range l.widths {
		if header {
			pdf.SetFillColor(230, 230, 230)
			pdf.Rect(x, y, w, height, "FD")
		} else {
			pdf.Rect(x, y, w, height, "D")
		}
		align := "C"
		if i == 0 {
			align = "L"
		}
		for j, line := range lines[i] {
			pdf.SetXY(x+cellPad, y+cellPad+float64(j)*lineHeight)
			pdf.CellFormat(w-2*cellPad, lineHeight, string(line), "", 0, align, false, 0, "")
		}
		x += w
	}
	pdf.SetXY(l.left, y+height)
}
