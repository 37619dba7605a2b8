package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/docscan/internal/core/domain"
	"github.com/kirillkom/docscan/internal/core/ports"
)

// RecognizeCaptureUseCase runs OCR over a stored capture photo and adds the
// lines not already present in the capture.
type RecognizeCaptureUseCase struct {
	repo       ports.ScanRepository
	storage    ports.ObjectStorage
	recognizer ports.TextRecognizer
	filter     DuplicateFilter
	now        func() time.Time
}

func NewRecognizeCaptureUseCase(
	repo ports.ScanRepository,
	storage ports.ObjectStorage,
	recognizer ports.TextRecognizer,
	filter DuplicateFilter,
) *RecognizeCaptureUseCase {
	return &RecognizeCaptureUseCase{
		repo:       repo,
		storage:    storage,
		recognizer: recognizer,
		filter:     filter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RecognizeCapture returns the number of items added. A failed recognition
// adds nothing and is not an error.
func (uc *RecognizeCaptureUseCase) RecognizeCapture(ctx context.Context, captureID string) (int, error) {
	capture, err := uc.repo.GetCapture(ctx, captureID)
	if err != nil {
		return 0, err
	}
	if !capture.HasPhoto() {
		return 0, domain.WrapError(domain.ErrInvalidInput, "recognize capture", fmt.Errorf("capture %s has no photo", captureID))
	}

	reader, err := uc.storage.Open(ctx, capture.ImageKey)
	if err != nil {
		return 0, fmt.Errorf("open capture image: %w", err)
	}
	defer reader.Close()
	image, err := io.ReadAll(reader)
	if err != nil {
		return 0, fmt.Errorf("read capture image: %w", err)
	}

	lines, err := uc.recognizer.Recognize(ctx, image)
	if err != nil {
		slog.Warn("text_recognition_failed", "capture_id", captureID, "error", err)
		return 0, nil
	}

	existing := capture.Items
	added := 0
	now := uc.now()
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		obs := domain.Observation{Kind: domain.ObservationText, Text: line}
		if uc.filter.IsDuplicate(existing, obs) {
			continue
		}
		item := newRecognizedItem(capture.ID, obs, now)
		if err := uc.repo.AddItem(ctx, &item); err != nil {
			return added, fmt.Errorf("persist recognized item: %w", err)
		}
		existing = append(existing, item)
		added++
	}
	return added, nil
}
