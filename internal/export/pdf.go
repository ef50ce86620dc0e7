package export

import (
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/MrWong99/scrivano/internal/transcript"
)

// PDF renders the transcript as an A4 PDF with 2 cm margins.
func PDF(w io.Writer, tr *transcript.Transcript, meta Metadata) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// The core fonts are Latin-1 only; translate the UTF-8 transcript text.
	enc := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, enc(labelTitle), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(102, 102, 102)
	writePDFMetaLine(pdf, enc, labelFile, meta.Filename)
	writePDFMetaLine(pdf, enc, labelDate, meta.CreatedAt.Format(dateLayout))
	writePDFMetaLine(pdf, enc, labelLanguage, meta.Language)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	pdf.SetDrawColor(160, 160, 160)
	x, y := pdf.GetX(), pdf.GetY()
	pdf.Line(x, y, 190, y)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, enc(labelContent), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for _, turn := range tr.Turns() {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, enc(turn.Speaker+":"), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, enc(turn.Text), "", "L", false)
		pdf.Ln(3)
	}

	pdf.Ln(4)
	x, y = pdf.GetX(), pdf.GetY()
	pdf.Line(x, y, 190, y)
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(0, 6, enc(footerText), "", 1, "L", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return &RenderError{Format: FormatPDF, Err: err}
	}
	return nil
}

// writePDFMetaLine adds one "Label: value" line to the metadata block.
func writePDFMetaLine(pdf *fpdf.Fpdf, enc func(string) string, label, value string) {
	pdf.CellFormat(0, 5, enc(label+value), "", 1, "L", false, 0, "")
}
