package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kirillkom/docscan/internal/core/domain"
	"github.com/kirillkom/docscan/internal/core/ports"
)

type CaptureImageUseCase struct {
	repo      ports.ScanRepository
	storage   ports.ObjectStorage
	processor ports.ImageProcessor
	events    ports.EventPublisher
}

func NewCaptureImageUseCase(
	repo ports.ScanRepository,
	storage ports.ObjectStorage,
	processor ports.ImageProcessor,
	events ports.EventPublisher,
) *CaptureImageUseCase {
	return &CaptureImageUseCase{
		repo:      repo,
		storage:   storage,
		processor: processor,
		events:    events,
	}
}

// AttachImage stores the photo and its thumbnail for a capture, replacing
// any earlier photo, and announces it to the OCR worker.
func (uc *CaptureImageUseCase) AttachImage(ctx context.Context, captureID string, body io.Reader) (*domain.Capture, error) {
	capture, err := uc.repo.GetCapture(ctx, captureID)
	if err != nil {
		return nil, err
	}

	full, thumbnail, err := uc.processor.Process(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("process image: %w", err)
	}

	version := uuid.NewString()
	imageKey := fmt.Sprintf("captures/%s/%s.jpg", captureID, version)
	thumbnailKey := fmt.Sprintf("captures/%s/%s_thumb.jpg", captureID, version)

	if err := uc.storage.Save(ctx, imageKey, bytes.NewReader(full)); err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}
	if err := uc.storage.Save(ctx, thumbnailKey, bytes.NewReader(thumbnail)); err != nil {
		return nil, fmt.Errorf("save thumbnail: %w", err)
	}
	if err := uc.repo.SetCaptureImage(ctx, captureID, imageKey, thumbnailKey); err != nil {
		return nil, fmt.Errorf("set capture image: %w", err)
	}

	for _, old := range []string{capture.ImageKey, capture.ThumbnailKey} {
		if old == "" {
			continue
		}
		if err := uc.storage.Delete(ctx, old); err != nil {
			slog.Warn("capture_image_delete_failed", "capture_id", captureID, "key", old, "error", err)
		}
	}

	if uc.events != nil {
		if err := uc.events.PublishCaptureImageStored(ctx, captureID); err != nil {
			slog.Warn("capture_image_publish_failed", "capture_id", captureID, "error", err)
		}
	}

	capture.ImageKey = imageKey
	capture.ThumbnailKey = thumbnailKey
	return capture, nil
}

func (uc *CaptureImageUseCase) OpenImage(ctx context.Context, captureID string, thumbnail bool) (io.ReadCloser, error) {
	capture, err := uc.repo.GetCapture(ctx, captureID)
	if err != nil {
		return nil, err
	}
	key := capture.ImageKey
	if thumbnail {
		key = capture.ThumbnailKey
	}
	if key == "" {
		return nil, domain.WrapError(domain.ErrNotFound, "open image", fmt.Errorf("capture %s has no photo", captureID))
	}
	return uc.storage.Open(ctx, key)
}
