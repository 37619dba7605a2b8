package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/docscan/internal/core/domain"
)

type CreateScanInput struct {
	Title     string   `json:"title" validate:"max=200"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Live      bool     `json:"live"`
}

type UpdateScanInput struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Favorite *bool   `json:"favorite,omitempty"`
}

type ScanQuery struct {
	Text          string
	TitleOnly     bool
	FavoritesOnly bool
}

// ScanSummary is the list-view projection of a scan.
type ScanSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Position     int       `json:"position"`
	Favorite     bool      `json:"favorite"`
	CaptureCount int       `json:"capture_count"`
	ItemCount    int       `json:"item_count"`
	TextPreview  string    `json:"text_preview"`
	ThumbnailKey string    `json:"thumbnail_key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
}

// ScanLibrary is the inbound contract for browsing and editing stored scans.
type ScanLibrary interface {
	CreateScan(ctx context.Context, input CreateScanInput) (*domain.Scan, error)
	GetScan(ctx context.Context, id string) (*domain.Scan, error)
	ListScans(ctx context.Context, query ScanQuery) ([]ScanSummary, error)
	RecentScans(ctx context.Context) ([]ScanSummary, error)
	UpdateScan(ctx context.Context, id string, input UpdateScanInput) (*domain.Scan, error)
	DeleteScan(ctx context.Context, id string) error
	ReorderScans(ctx context.Context, orderedIDs []string) error

	DeleteCapture(ctx context.Context, id string) error
	ReorderCaptures(ctx context.Context, scanID string, orderedIDs []string) error

	EditItem(ctx context.Context, id, transcript string) (*domain.RecognizedItem, error)
	DeleteItem(ctx context.Context, id string) error
	MoveItems(ctx context.Context, itemIDs []string, toCaptureID string) error
	ReorderItems(ctx context.Context, captureID string, orderedIDs []string) error
	ItemDetails(ctx context.Context, id string) (domain.ItemDetails, error)
}

// LiveSessions is the inbound contract for continuous camera scanning.
type LiveSessions interface {
	Start(ctx context.Context, scanID string, options domain.StartOptions) (domain.SessionState, error)
	Observe(ctx context.Context, sessionID string, obs domain.Observation) (domain.ObserveResult, error)
	NewCapture(ctx context.Context, sessionID string) (domain.SessionState, error)
	AckPhotoRequests(ctx context.Context, sessionID string) ([]domain.PhotoRequest, error)
	Get(ctx context.Context, sessionID string) (domain.SessionState, error)
	Stop(ctx context.Context, sessionID string) (domain.SessionState, error)
}

// CaptureImages attaches and serves capture photos.
type CaptureImages interface {
	AttachImage(ctx context.Context, captureID string, body io.Reader) (*domain.Capture, error)
	OpenImage(ctx context.Context, captureID string, thumbnail bool) (io.ReadCloser, error)
}

// CaptureRecognizer runs an OCR pass over a stored capture photo.
type CaptureRecognizer interface {
	RecognizeCapture(ctx context.Context, captureID string) (int, error)
}

// DocumentImporter turns an uploaded PDF or text file into a scan.
type DocumentImporter interface {
	Import(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Scan, error)
}

// ScanExporter renders scans for sharing.
type ScanExporter interface {
	ScanText(ctx context.Context, scanID string) (filename string, text string, err error)
	CaptureText(ctx context.Context, captureID string) (filename string, text string, err error)
	ScanSpreadsheet(ctx context.Context, scanID string, w io.Writer) (filename string, err error)
}
