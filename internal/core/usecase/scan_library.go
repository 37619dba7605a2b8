package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docscan/internal/core/domain"
	"github.com/kirillkom/docscan/internal/core/ports"
)

const (
	recentScanLimit    = 6
	maxTranscriptRunes = 8192
)

type ScanLibraryUseCase struct {
	repo    ports.ScanRepository
	storage ports.ObjectStorage
	now     func() time.Time
}

func NewScanLibraryUseCase(repo ports.ScanRepository, storage ports.ObjectStorage) *ScanLibraryUseCase {
	return &ScanLibraryUseCase{
		repo:    repo,
		storage: storage,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ScanLibraryUseCase) CreateScan(ctx context.Context, input ports.CreateScanInput) (*domain.Scan, error) {
	if err := validateInput("create scan", input); err != nil {
		return nil, err
	}

	now := uc.now()
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = domain.DefaultScanTitle(now)
	}
	scan := &domain.Scan{
		ID:        uuid.NewString(),
		Title:     title,
		Live:      input.Live,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		CreatedAt: now,
		UpdatedAt: now,
		Captures:  []domain.Capture{},
	}
	if err := uc.repo.CreateScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("create scan: %w", err)
	}
	return scan, nil
}

func (uc *ScanLibraryUseCase) GetScan(ctx context.Context, id string) (*domain.Scan, error) {
	return uc.repo.GetScan(ctx, id)
}

// ListScans returns the library newest first (highest position on top),
// filtered by favorite flag and by a case-insensitive match on the title and,
// unless TitleOnly is set, on every transcript.
func (uc *ScanLibraryUseCase) ListScans(ctx context.Context, query ports.ScanQuery) ([]ports.ScanSummary, error) {
	scans, err := uc.repo.ListScans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}

	text := strings.TrimSpace(query.Text)
	out := make([]ports.ScanSummary, 0, len(scans))
	for i := len(scans) - 1; i >= 0; i-- {
		scan := &scans[i]
		if query.FavoritesOnly && !scan.Favorite {
			continue
		}
		if text != "" && !scan.ContainsText(text, query.TitleOnly) {
			continue
		}
		out = append(out, summarize(scan))
	}
	return out, nil
}

// RecentScans backs the home-screen widget, which walks positions upwards:
// the first few scans by ascending position.
func (uc *ScanLibraryUseCase) RecentScans(ctx context.Context) ([]ports.ScanSummary, error) {
	scans, err := uc.repo.ListScans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	if len(scans) > recentScanLimit {
		scans = scans[:recentScanLimit]
	}
	out := make([]ports.ScanSummary, 0, len(scans))
	for i := range scans {
		out = append(out, summarize(&scans[i]))
	}
	return out, nil
}

func (uc *ScanLibraryUseCase) UpdateScan(ctx context.Context, id string, input ports.UpdateScanInput) (*domain.Scan, error) {
	if err := validateInput("update scan", input); err != nil {
		return nil, err
	}
	scan, err := uc.repo.GetScan(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "update scan", fmt.Errorf("title is blank"))
		}
		scan.Title = title
	}
	if input.Favorite != nil {
		scan.Favorite = *input.Favorite
	}
	scan.UpdatedAt = uc.now()

	if err := uc.repo.UpdateScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("update scan: %w", err)
	}
	return scan, nil
}

func (uc *ScanLibraryUseCase) DeleteScan(ctx context.Context, id string) error {
	scan, err := uc.repo.GetScan(ctx, id)
	if err != nil {
		return err
	}
	if err := uc.repo.DeleteScan(ctx, id); err != nil {
		return fmt.Errorf("delete scan: %w", err)
	}
	for _, capture := range scan.Captures {
		uc.deleteImages(ctx, capture)
	}
	return nil
}

func (uc *ScanLibraryUseCase) ReorderScans(ctx context.Context, orderedIDs []string) error {
	scans, err := uc.repo.ListScans(ctx)
	if err != nil {
		return fmt.Errorf("list scans: %w", err)
	}
	current := make([]string, 0, len(scans))
	for _, scan := range scans {
		current = append(current, scan.ID)
	}
	if err := domain.ValidatePermutation(current, orderedIDs); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "reorder scans", err)
	}
	// orderedIDs is in display order, newest first; the top scan keeps the
	// highest position.
	byPosition := make([]string, len(orderedIDs))
	for i, id := range orderedIDs {
		byPosition[len(orderedIDs)-1-i] = id
	}
	return uc.repo.ReorderScans(ctx, byPosition)
}

func (uc *ScanLibraryUseCase) DeleteCapture(ctx context.Context, id string) error {
	capture, err := uc.repo.GetCapture(ctx, id)
	if err != nil {
		return err
	}
	if err := uc.repo.DeleteCapture(ctx, id); err != nil {
		return fmt.Errorf("delete capture: %w", err)
	}
	uc.deleteImages(ctx, *capture)
	return nil
}

func (uc *ScanLibraryUseCase) ReorderCaptures(ctx context.Context, scanID string, orderedIDs []string) error {
	scan, err := uc.repo.GetScan(ctx, scanID)
	if err != nil {
		return err
	}
	current := make([]string, 0, len(scan.Captures))
	for _, capture := range scan.Captures {
		current = append(current, capture.ID)
	}
	if err := domain.ValidatePermutation(current, orderedIDs); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "reorder captures", err)
	}
	return uc.repo.ReorderCaptures(ctx, scanID, orderedIDs)
}

func (uc *ScanLibraryUseCase) EditItem(ctx context.Context, id, transcript string) (*domain.RecognizedItem, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "edit item", fmt.Errorf("transcript is blank"))
	}
	if len([]rune(transcript)) > maxTranscriptRunes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "edit item", fmt.Errorf("transcript exceeds %d characters", maxTranscriptRunes))
	}
	if err := uc.repo.UpdateItemTranscript(ctx, id, transcript); err != nil {
		return nil, err
	}
	return uc.repo.GetItem(ctx, id)
}

func (uc *ScanLibraryUseCase) DeleteItem(ctx context.Context, id string) error {
	return uc.repo.DeleteItem(ctx, id)
}

// MoveItems appends the given items, in the given order, to the end of the
// target capture.
func (uc *ScanLibraryUseCase) MoveItems(ctx context.Context, itemIDs []string, toCaptureID string) error {
	if len(itemIDs) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "move items", fmt.Errorf("no items given"))
	}
	seen := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			return domain.WrapError(domain.ErrInvalidInput, "move items", fmt.Errorf("duplicate id %q", id))
		}
		seen[id] = struct{}{}
	}
	if _, err := uc.repo.GetCapture(ctx, toCaptureID); err != nil {
		return err
	}
	return uc.repo.MoveItems(ctx, itemIDs, toCaptureID)
}

func (uc *ScanLibraryUseCase) ReorderItems(ctx context.Context, captureID string, orderedIDs []string) error {
	capture, err := uc.repo.GetCapture(ctx, captureID)
	if err != nil {
		return err
	}
	current := make([]string, 0, len(capture.Items))
	for _, item := range capture.Items {
		current = append(current, item.ID)
	}
	if err := domain.ValidatePermutation(current, orderedIDs); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "reorder items", err)
	}
	return uc.repo.ReorderItems(ctx, captureID, orderedIDs)
}

func (uc *ScanLibraryUseCase) ItemDetails(ctx context.Context, id string) (domain.ItemDetails, error) {
	item, err := uc.repo.GetItem(ctx, id)
	if err != nil {
		return domain.ItemDetails{}, err
	}
	return domain.DetectDetails(item.Transcript), nil
}

// deleteImages is best effort: the metadata is already gone.
func (uc *ScanLibraryUseCase) deleteImages(ctx context.Context, capture domain.Capture) {
	if uc.storage == nil {
		return
	}
	for _, key := range []string{capture.ImageKey, capture.ThumbnailKey} {
		if key == "" {
			continue
		}
		if err := uc.storage.Delete(ctx, key); err != nil {
			slog.Warn("capture_image_delete_failed", "capture_id", capture.ID, "key", key, "error", err)
		}
	}
}

func summarize(scan *domain.Scan) ports.ScanSummary {
	summary := ports.ScanSummary{
		ID:           scan.ID,
		Title:        scan.Title,
		Position:     scan.Position,
		Favorite:     scan.Favorite,
		CaptureCount: len(scan.Captures),
		ItemCount:    scan.TotalRecognizedItems(),
		TextPreview:  scan.TextPreview(),
		CreatedAt:    scan.CreatedAt,
		Latitude:     scan.Latitude,
		Longitude:    scan.Longitude,
	}
	for _, capture := range scan.Captures {
		if capture.ThumbnailKey != "" {
			summary.ThumbnailKey = capture.ThumbnailKey
			break
		}
	}
	return summary
}
