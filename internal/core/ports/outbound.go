package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/docscan/internal/core/domain"
)

// ScanRepository persists the Scan -> Capture -> RecognizedItem tree.
// Every mutation keeps sibling positions contiguous from zero.
type ScanRepository interface {
	CreateScan(ctx context.Context, scan *domain.Scan) error
	GetScan(ctx context.Context, id string) (*domain.Scan, error)
	ListScans(ctx context.Context) ([]domain.Scan, error)
	UpdateScan(ctx context.Context, scan *domain.Scan) error
	DeleteScan(ctx context.Context, id string) error
	ReorderScans(ctx context.Context, orderedIDs []string) error

	CreateCapture(ctx context.Context, capture *domain.Capture) error
	GetCapture(ctx context.Context, id string) (*domain.Capture, error)
	SetCaptureImage(ctx context.Context, id, imageKey, thumbnailKey string) error
	DeleteCapture(ctx context.Context, id string) error
	ReorderCaptures(ctx context.Context, scanID string, orderedIDs []string) error

	AddItem(ctx context.Context, item *domain.RecognizedItem) error
	GetItem(ctx context.Context, id string) (*domain.RecognizedItem, error)
	UpdateItemTranscript(ctx context.Context, id, transcript string) error
	DeleteItem(ctx context.Context, id string) error
	MoveItems(ctx context.Context, itemIDs []string, toCaptureID string) error
	ReorderItems(ctx context.Context, captureID string, orderedIDs []string) error
}

// ObjectStorage stores capture photos and thumbnails.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher announces work for photo-taking clients and the OCR worker.
type EventPublisher interface {
	PublishPhotoRequested(ctx context.Context, request domain.PhotoRequest) error
	PublishCaptureImageStored(ctx context.Context, captureID string) error
}

// EventSubscriber consumes capture image events.
type EventSubscriber interface {
	SubscribeCaptureImageStored(ctx context.Context, handler func(context.Context, string) error) error
}

// ImageProcessor produces the stored full-size photo and its thumbnail.
type ImageProcessor interface {
	Process(ctx context.Context, src io.Reader) (full, thumbnail []byte, err error)
}

// TextRecognizer runs OCR on an encoded image and returns recognized lines.
type TextRecognizer interface {
	Recognize(ctx context.Context, image []byte) ([]string, error)
}

// PageExtractor extracts per-page plain text from an imported document.
type PageExtractor interface {
	ExtractPages(ctx context.Context, body []byte) ([]string, error)
}

// FragmentSplitter splits page text into item-sized fragments.
type FragmentSplitter interface {
	Split(text string) []string
}

// SpreadsheetWriter renders a scan as a spreadsheet.
type SpreadsheetWriter interface {
	WriteScan(w io.Writer, scan *domain.Scan) error
}

// Clock abstracts wall time and one-shot timers so capture timing can be
// driven deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}
