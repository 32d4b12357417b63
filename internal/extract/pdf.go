package extract

import (
	"fmt"

	"intellidoc/internal/util"

	"github.com/ledongthuc/pdf"
)

// Page is the extracted text of one PDF page. Pages with no usable text
// are dropped, so Number values may be sparse.
type Page struct {
	Number int    `json:"page_number"`
	Text   string `json:"text"`
}

// Pages extracts per-page plain text from the PDF at path. It returns
// util.ErrNoExtractableText when no page yields text, which the ingestion
// workflow treats as a terminal failure for the document.
func Pages(path string) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	numPages := r.NumPage()
	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		text = util.SanitizeText(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	if len(pages) == 0 {
		return nil, util.ErrNoExtractableText
	}
	return pages, nil
}
