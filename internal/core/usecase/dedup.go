package usecase

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docscan/internal/core/domain"
	"github.com/kirillkom/docscan/internal/core/similarity"
)

// DuplicateFilter decides whether an observation repeats an item already
// collected in the same capture. Text is only compared with text and
// barcodes only with barcodes; a shared observation id always matches.
type DuplicateFilter struct {
	matcher similarity.Matcher
}

func NewDuplicateFilter(threshold float64) DuplicateFilter {
	return DuplicateFilter{matcher: similarity.NewMatcher(threshold)}
}

func (f DuplicateFilter) IsDuplicate(existing []domain.RecognizedItem, obs domain.Observation) bool {
	for _, item := range existing {
		if obs.ObservationID != "" && item.ObservationID == obs.ObservationID {
			return true
		}
		if obs.IsBarcode() {
			if item.IsBarcode && strings.EqualFold(item.Transcript, obs.Text) {
				return true
			}
			continue
		}
		if !item.IsBarcode && f.matcher.IsTextSimilar(item.Transcript, obs.Text) {
			return true
		}
	}
	return false
}

func newRecognizedItem(captureID string, obs domain.Observation, now time.Time) domain.RecognizedItem {
	return domain.RecognizedItem{
		ID:            uuid.NewString(),
		CaptureID:     captureID,
		Transcript:    obs.Text,
		IsBarcode:     obs.IsBarcode(),
		ObservationID: obs.ObservationID,
		RecognizedAt:  now,
	}
}
