// Package tesseract runs OCR over stored capture photos with the gosseract
// bindings.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/kirillkom/docscan/internal/infrastructure/resilience"
)

type client interface {
	SetLanguage(langs ...string) error
	SetImageFromBytes(data []byte) error
	Text() (string, error)
	Close() error
}

// Recognizer limits concurrent tesseract runs; each run gets its own client
// because gosseract clients are not safe for concurrent use.
type Recognizer struct {
	languages     []string
	clientFactory func() client
	executor      *resilience.Executor
	slots         chan struct{}
}

func NewRecognizer(languages []string, maxConcurrent int, executor *resilience.Executor) *Recognizer {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Recognizer{
		languages:     languages,
		clientFactory: func() client { return gosseract.NewClient() },
		executor:      executor,
		slots:         make(chan struct{}, maxConcurrent),
	}
}

// Recognize returns the non-blank lines tesseract reads from image.
func (r *Recognizer) Recognize(ctx context.Context, image []byte) ([]string, error) {
	select {
	case r.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-r.slots }()

	text, err := resilience.Call(ctx, r.executor, "ocr.recognize", func(ctx context.Context) (string, error) {
		return r.recognize(ctx, image)
	}, classifyOCRError)
	if err != nil {
		return nil, err
	}
	return splitLines(text), nil
}

func (r *Recognizer) recognize(ctx context.Context, image []byte) (string, error) {
	c := r.clientFactory()
	defer c.Close()

	if len(r.languages) > 0 {
		if err := c.SetLanguage(r.languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}

// OCR failures come from the image or the language data; retrying does not
// help, but repeated failures should still open the breaker.
func classifyOCRError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyContext(err); ok {
		return class
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
