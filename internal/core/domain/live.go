package domain

import "time"

type ObservationKind string

const (
	ObservationText    ObservationKind = "text"
	ObservationBarcode ObservationKind = "barcode"
)

// Observation is a text fragment or barcode payload reported by the live
// camera feed. ObservationID is the tracker id the recognizer assigned, if any.
type Observation struct {
	Kind          ObservationKind `json:"kind" validate:"required,oneof=text barcode"`
	Text          string          `json:"text" validate:"required,max=8192"`
	ObservationID string          `json:"observation_id,omitempty" validate:"max=128"`
}

func (o Observation) IsBarcode() bool {
	return o.Kind == ObservationBarcode
}

type ObserveOutcome string

const (
	OutcomeAdded     ObserveOutcome = "added"
	OutcomeDuplicate ObserveOutcome = "duplicate"
	OutcomeIgnored   ObserveOutcome = "ignored"
)

type ObserveResult struct {
	Outcome        ObserveOutcome  `json:"outcome"`
	CaptureID      string          `json:"capture_id"`
	Item           *RecognizedItem `json:"item,omitempty"`
	PhotoScheduled bool            `json:"photo_scheduled"`
}

type StartOptions struct {
	AutoCapture  bool `json:"auto_capture"`
	OnlyBarcodes bool `json:"only_barcodes"`
}

// PhotoRequest asks the capturing client to take a photo for a capture.
type PhotoRequest struct {
	SessionID   string    `json:"session_id"`
	ScanID      string    `json:"scan_id"`
	CaptureID   string    `json:"capture_id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

const (
	PhotoReasonSessionStart = "session_start"
	PhotoReasonAutoAdvance  = "auto_advance"
	PhotoReasonManual       = "manual"
	// the active capture was deleted from the library mid-session
	PhotoReasonCaptureReplaced = "capture_replaced"
)

type SessionState struct {
	ID                    string         `json:"id"`
	ScanID                string         `json:"scan_id"`
	ActiveCaptureID       string         `json:"active_capture_id"`
	Scanning              bool           `json:"scanning"`
	Options               StartOptions   `json:"options"`
	StartedAt             time.Time      `json:"started_at"`
	LastPhotoAt           time.Time      `json:"last_photo_at"`
	LastCollectionAt      *time.Time     `json:"last_collection_at,omitempty"`
	AutoCaptureInProgress bool           `json:"auto_capture_in_progress"`
	ItemsInCapture        int            `json:"items_in_capture"`
	PendingPhotoRequests  []PhotoRequest `json:"pending_photo_requests"`
}
