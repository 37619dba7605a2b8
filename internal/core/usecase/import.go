package usecase

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docscan/internal/core/domain"
	"github.com/kirillkom/docscan/internal/core/ports"
)

const (
	DocumentKindPDF  = "pdf"
	DocumentKindText = "text"

	defaultMaxImportBytes = 32 << 20
)

// ImportDocumentUseCase turns an uploaded document into a scan with one
// capture per page.
type ImportDocumentUseCase struct {
	repo       ports.ScanRepository
	extractors map[string]ports.PageExtractor
	splitter   ports.FragmentSplitter
	filter     DuplicateFilter
	maxBytes   int64
	now        func() time.Time
}

func NewImportDocumentUseCase(
	repo ports.ScanRepository,
	extractors map[string]ports.PageExtractor,
	splitter ports.FragmentSplitter,
	filter DuplicateFilter,
	maxBytes int64,
) *ImportDocumentUseCase {
	if maxBytes <= 0 {
		maxBytes = defaultMaxImportBytes
	}
	return &ImportDocumentUseCase{
		repo:       repo,
		extractors: extractors,
		splitter:   splitter,
		filter:     filter,
		maxBytes:   maxBytes,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ImportDocumentUseCase) Import(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Scan, error) {
	kind := documentKind(filename, mimeType)
	extractor, ok := uc.extractors[kind]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "import document", fmt.Errorf("unsupported document type %q", mimeType))
	}

	raw, err := io.ReadAll(io.LimitReader(body, uc.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "import document", fmt.Errorf("document is empty"))
	}
	if int64(len(raw)) > uc.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "import document", fmt.Errorf("document exceeds %d bytes", uc.maxBytes))
	}

	pages, err := extractor.ExtractPages(ctx, raw)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pages", err)
	}

	now := uc.now()
	title := domain.SanitizeFilename(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	if title == "" || title == "." {
		title = domain.DefaultScanTitle(now)
	}
	scan := &domain.Scan{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Captures:  []domain.Capture{},
	}
	if err := uc.repo.CreateScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("create scan: %w", err)
	}

	for _, page := range pages {
		capture := domain.Capture{
			ID:        uuid.NewString(),
			ScanID:    scan.ID,
			CreatedAt: now,
			Items:     []domain.RecognizedItem{},
		}
		if err := uc.repo.CreateCapture(ctx, &capture); err != nil {
			return nil, fmt.Errorf("create capture: %w", err)
		}
		for _, fragment := range uc.splitter.Split(page) {
			obs := domain.Observation{Kind: domain.ObservationText, Text: fragment}
			if uc.filter.IsDuplicate(capture.Items, obs) {
				continue
			}
			item := newRecognizedItem(capture.ID, obs, now)
			if err := uc.repo.AddItem(ctx, &item); err != nil {
				return nil, fmt.Errorf("persist recognized item: %w", err)
			}
			capture.Items = append(capture.Items, item)
		}
		scan.Captures = append(scan.Captures, capture)
	}
	scan.Renumber()
	return scan, nil
}

func documentKind(filename, mimeType string) string {
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		switch {
		case mediaType == "application/pdf":
			return DocumentKindPDF
		case strings.HasPrefix(mediaType, "text/"):
			return DocumentKindText
		}
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return DocumentKindPDF
	case ".txt", ".text", ".md":
		return DocumentKindText
	}
	return ""
}
