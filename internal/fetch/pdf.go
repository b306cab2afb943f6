package fetch

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

var errEmptyPDF = errors.New("pdf body is empty")

// ExtractPDFText extracts plain text from an in-memory PDF body. Agenda
// packages run to hundreds of pages; extraction is page-by-page so one
// unreadable page (scanned image, broken font map) does not sink the rest.
func ExtractPDFText(body []byte) (string, error) {
	if len(body) == 0 {
		return "", errEmptyPDF
	}

	reader := bytes.NewReader(body)
	doc, err := pdf.NewReader(reader, int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var buf bytes.Buffer
	pages := doc.NumPage()
	for n := 1; n <= pages; n++ {
		page := doc.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := extractPageText(page)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	if buf.Len() == 0 {
		// Fall back to whole-document extraction; some files only yield
		// text through the combined reader.
		textReader, err := doc.GetPlainText()
		if err != nil {
			return "", fmt.Errorf("extract pdf text: %w", err)
		}
		if _, err := io.Copy(&buf, textReader); err != nil {
			return "", fmt.Errorf("read pdf text: %w", err)
		}
	}

	return buf.String(), nil
}

func extractPageText(page pdf.Page) (text string, err error) {
	// The pdf library panics on malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page: %v", r)
		}
	}()
	return page.GetPlainText(nil)
}
