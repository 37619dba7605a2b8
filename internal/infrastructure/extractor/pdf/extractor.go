// Package pdf extracts per-page plain text from imported PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/docscan/internal/core/domain"
)

const defaultMaxPages = 500

type Extractor struct {
	maxPages int
}

func NewExtractor(maxPages int) *Extractor {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &Extractor{maxPages: maxPages}
}

// ExtractPages returns one entry per page, in page order. Pages without a
// text layer yield an empty string.
func (e *Extractor) ExtractPages(ctx context.Context, body []byte) (pages []string, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	count := reader.NumPage()
	if count > e.maxPages {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pages", fmt.Errorf("document has %d pages, limit is %d", count, e.maxPages))
	}

	pages = make([]string, 0, count)
	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
