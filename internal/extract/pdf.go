package extract

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFToHTML extracts the text of every page and wraps each non-empty page
// in a paragraph. A PDF without extractable text (a scan) yields "".
func PDFToHTML(data []byte) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var paragraphs []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		paragraphs = append(paragraphs, "<p>"+html.EscapeString(text)+"</p>")
	}
	return strings.Join(paragraphs, "\n"), nil
}

// FetchPDF downloads a PDF and returns its text as HTML
func FetchPDF(ctx context.Context, f Fetcher, url string) (string, error) {
	data, err := f.GetBytes(ctx, url)
	if err != nil {
		return "", err
	}
	return PDFToHTML(data)
}
