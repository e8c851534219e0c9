// Package pdftext downloads paper PDFs into an on-disk cache and extracts their plain
// text for the paper tab's full-text preview.
package pdftext

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var whitespace = regexp.MustCompile(`\s+`)

// URL returns the PDF location for a paper, preferring the backend's pdf_url.
func URL(paperID, pdfURL string) string {
	if strings.TrimSpace(pdfURL) != "" {
		return pdfURL
	}
	return "https://arxiv.org/pdf/" + paperID + ".pdf"
}

// Text fetches pdfURL through the cache and returns its whitespace-normalised text.
func (c *Cache) Text(ctx context.Context, pdfURL string) (string, error) {
	path, err := c.Fetch(ctx, pdfURL)
	if err != nil {
		return "", err
	}
	text, err := Extract(path)
	if err != nil {
		return "", err
	}
	c.logger.Debug("pdf text extracted", "url", pdfURL, "chars", len(text))
	return text, nil
}

// Extract reads the plain text of the PDF at path.
func Extract(path string) (text string, err error) {
	// the reader panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract pdf text: %v", r)
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, content); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(b.String(), " ")), nil
}

// Preview cuts text to at most limit runes, ending on a word boundary when one is near.
func Preview(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	cut := string(runes[:limit])
	if idx := strings.LastIndexByte(cut, ' '); idx > len(cut)*3/4 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "…"
}
