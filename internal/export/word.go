package export

import (
	"io"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/MrWong99/scrivano/internal/transcript"
)

// separatorLine visually splits header, body, and footer the way the
// exported documents have always looked.
var separatorLine = strings.Repeat("_", 50)

// Word renders the transcript as an OOXML document.
func Word(w io.Writer, tr *transcript.Transcript, meta Metadata) error {
	doc := docx.New().WithDefaultTheme()

	title := doc.AddParagraph().Justification("center")
	title.AddText(labelTitle).Size("40").Bold()

	doc.AddParagraph()
	writeMetaLine(doc, labelFile, meta.Filename)
	writeMetaLine(doc, labelDate, meta.CreatedAt.Format(dateLayout))
	writeMetaLine(doc, labelLanguage, meta.Language)

	doc.AddParagraph()
	doc.AddParagraph().AddText(separatorLine)
	doc.AddParagraph()

	heading := doc.AddParagraph()
	heading.AddText(labelContent).Size("28").Bold()

	for _, turn := range tr.Turns() {
		para := doc.AddParagraph()
		para.AddText(turn.Speaker + ": ").Bold()
		para.AddText(turn.Text)
		doc.AddParagraph()
	}

	doc.AddParagraph().AddText(separatorLine)
	footer := doc.AddParagraph()
	footer.AddText(footerText).Italic()

	if _, err := doc.WriteTo(w); err != nil {
		return &RenderError{Format: FormatWord, Err: err}
	}
	return nil
}

// writeMetaLine adds one "Label: value" paragraph with a bold label.
func writeMetaLine(doc *docx.Docx, label, value string) {
	para := doc.AddParagraph()
	para.AddText(label).Bold()
	para.AddText(value)
}
