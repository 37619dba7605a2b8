package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/docscan/internal/core/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor treats an uploaded text file as a document whose pages are
// separated by form feeds.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractPages(_ context.Context, body []byte) ([]string, error) {
	body = bytes.TrimPrefix(body, utf8BOM)
	if !utf8.Valid(body) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("file is not valid UTF-8 text"))
	}

	text := strings.ReplaceAll(string(body), "\r\n", "\n")
	pages := strings.Split(text, "\f")
	for i := range pages {
		pages[i] = strings.TrimSpace(pages[i])
	}
	// a trailing form feed does not start a page
	if len(pages) > 1 && pages[len(pages)-1] == "" {
		pages = pages[:len(pages)-1]
	}
	return pages, nil
}
