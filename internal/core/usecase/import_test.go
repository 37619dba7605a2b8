package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/docscan/internal/core/domain"
	"github.com/kirillkom/docscan/internal/core/ports"
)

type pageExtractorFake struct {
	pages []string
	err   error
	calls int
}

func (f *pageExtractorFake) ExtractPages(context.Context, []byte) ([]string, error) {
	f.calls++
	return f.pages, f.err
}

type lineSplitter struct{}

func (lineSplitter) Split(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func importFixture(pdf, text *pageExtractorFake) (*ImportDocumentUseCase, *memoryRepo) {
	repo := newMemoryRepo()
	uc := NewImportDocumentUseCase(repo, map[string]ports.PageExtractor{
		DocumentKindPDF:  pdf,
		DocumentKindText: text,
	}, lineSplitter{}, NewDuplicateFilter(0), 1024)
	uc.now = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }
	return uc, repo
}

func TestImportCreatesCapturePerPage(t *testing.T) {
	pdf := &pageExtractorFake{pages: []string{
		"Invoice number 1234\nInvoice number 1235\nPayment due in 30 days",
		"",
		"Thank you for your business",
	}}
	uc, repo := importFixture(pdf, &pageExtractorFake{})

	scan, err := uc.Import(context.Background(), "march/invoice.pdf", "application/pdf", strings.NewReader("%PDF-1.7"))
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if scan.Title != "invoice" {
		t.Fatalf("unexpected title %q", scan.Title)
	}
	if len(scan.Captures) != 3 {
		t.Fatalf("expected 3 captures, got %d", len(scan.Captures))
	}
	if n := len(scan.Captures[0].Items); n != 2 {
		t.Fatalf("expected similar lines to be collapsed, got %d items", n)
	}
	if len(scan.Captures[1].Items) != 0 || scan.Captures[2].Position != 2 {
		t.Fatalf("unexpected captures: %+v", scan.Captures)
	}

	stored, err := repo.GetScan(context.Background(), scan.ID)
	if err != nil || len(stored.Captures) != 3 || stored.TotalRecognizedItems() != 3 {
		t.Fatalf("import not persisted: %v %+v", err, stored)
	}
}

func TestImportDispatchesByTypeAndExtension(t *testing.T) {
	pdf := &pageExtractorFake{pages: []string{"a page"}}
	text := &pageExtractorFake{pages: []string{"a page"}}
	uc, _ := importFixture(pdf, text)
	ctx := context.Background()

	if _, err := uc.Import(ctx, "notes.txt", "text/plain; charset=utf-8", strings.NewReader("hi")); err != nil {
		t.Fatalf("text import failed: %v", err)
	}
	if _, err := uc.Import(ctx, "scan.PDF", "application/octet-stream", strings.NewReader("hi")); err != nil {
		t.Fatalf("pdf import by extension failed: %v", err)
	}
	if pdf.calls != 1 || text.calls != 1 {
		t.Fatalf("unexpected dispatch: pdf=%d text=%d", pdf.calls, text.calls)
	}

	if _, err := uc.Import(ctx, "photo.heic", "image/heic", strings.NewReader("hi")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unsupported type, got %v", err)
	}
}

func TestImportRejectsBadBodies(t *testing.T) {
	uc, repo := importFixture(&pageExtractorFake{err: errors.New("malformed xref")}, &pageExtractorFake{})
	ctx := context.Background()

	cases := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"too large", strings.Repeat("x", 2048)},
		{"extractor failure", "%PDF"},
	}
	for _, tc := range cases {
		if _, err := uc.Import(ctx, "doc.pdf", "application/pdf", strings.NewReader(tc.body)); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", tc.name, err)
		}
	}
	if scans, _ := repo.ListScans(ctx); len(scans) != 0 {
		t.Fatalf("failed imports must not create scans")
	}
}
