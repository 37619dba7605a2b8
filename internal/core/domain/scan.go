package domain

import (
	"fmt"
	"strings"
	"time"
)

const textPreviewLimit = 200

// Scan is a logical multi-page document. Captures are kept ordered by
// Position, which is contiguous from zero.
type Scan struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	Favorite  bool      `json:"favorite"`
	Live      bool      `json:"live"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Captures  []Capture `json:"captures"`
}

// Capture is one physical page of a scan.
type Capture struct {
	ID           string           `json:"id"`
	ScanID       string           `json:"scan_id"`
	Position     int              `json:"position"`
	ImageKey     string           `json:"image_key,omitempty"`
	ThumbnailKey string           `json:"thumbnail_key,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	Items        []RecognizedItem `json:"items"`
}

// RecognizedItem is one OCR transcript or barcode payload attached to a capture.
type RecognizedItem struct {
	ID            string    `json:"id"`
	CaptureID     string    `json:"capture_id"`
	Position      int       `json:"position"`
	Transcript    string    `json:"transcript"`
	IsBarcode     bool      `json:"is_barcode"`
	ObservationID string    `json:"observation_id,omitempty"`
	RecognizedAt  time.Time `json:"recognized_at"`
}

func DefaultScanTitle(at time.Time) string {
	return "Scan from " + at.Format("Jan 2, 2006 at 15:04")
}

func (c Capture) HasPhoto() bool {
	return c.ImageKey != ""
}

// LastCapture returns the capture with the highest position.
func (s *Scan) LastCapture() *Capture {
	if len(s.Captures) == 0 {
		return nil
	}
	return &s.Captures[len(s.Captures)-1]
}

// FirstCaptureHasNoPhoto reports whether a live session has to take an
// initial photo before recognized items can be attached.
func (s *Scan) FirstCaptureHasNoPhoto() bool {
	if len(s.Captures) == 0 {
		return true
	}
	return !s.Captures[0].HasPhoto()
}

func (s *Scan) TotalRecognizedItems() int {
	total := 0
	for _, c := range s.Captures {
		total += len(c.Items)
	}
	return total
}

func (s *Scan) TextPreview() string {
	var result string
	for _, c := range s.Captures {
		result = strings.TrimSpace(result) + " " + c.TextPreview()
		if len([]rune(result)) > textPreviewLimit {
			return result
		}
	}
	return result
}

// ContainsText matches the title and, unless titleOnly is set, every
// transcript. An empty query matches everything.
func (s *Scan) ContainsText(query string, titleOnly bool) bool {
	if query == "" {
		return true
	}
	if containsFold(s.Title, query) {
		return true
	}
	if titleOnly {
		return false
	}
	for _, c := range s.Captures {
		if c.ContainsText(query) {
			return true
		}
	}
	return false
}

func (c *Capture) TextPreview() string {
	var result string
	for _, item := range c.Items {
		if item.Transcript == "" {
			continue
		}
		result = strings.TrimSpace(result) + " " + strings.ReplaceAll(item.Transcript, "\n", " ")
		if len([]rune(result)) > textPreviewLimit {
			return result
		}
	}
	return result
}

func (c *Capture) ContainsText(query string) bool {
	if query == "" {
		return true
	}
	for _, item := range c.Items {
		if containsFold(item.Transcript, query) {
			return true
		}
	}
	return false
}

// TitleSuggestion names exports of a single page after its first transcript.
func (c *Capture) TitleSuggestion(scanTitle string) string {
	title := scanTitle
	if title == "" {
		title = "Scanned text"
	}
	if len(c.Items) > 0 {
		if suggestion := SanitizeFilename(c.Items[0].Transcript); suggestion != "" {
			title = suggestion
		}
	}
	return title
}

func (c *Capture) ItemIndex(itemID string) int {
	for i, item := range c.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// Renumber reassigns contiguous item positions following slice order.
func (c *Capture) Renumber() {
	for i := range c.Items {
		c.Items[i].Position = i
		c.Items[i].CaptureID = c.ID
	}
}

func (s *Scan) CaptureIndex(captureID string) int {
	for i, c := range s.Captures {
		if c.ID == captureID {
			return i
		}
	}
	return -1
}

// Renumber reassigns contiguous capture positions following slice order.
func (s *Scan) Renumber() {
	for i := range s.Captures {
		s.Captures[i].Position = i
		s.Captures[i].ScanID = s.ID
	}
}

// ValidatePermutation checks that ordered lists every current id exactly once.
func ValidatePermutation(current, ordered []string) error {
	if len(current) != len(ordered) {
		return fmt.Errorf("expected %d ids, got %d", len(current), len(ordered))
	}
	known := make(map[string]bool, len(current))
	for _, id := range current {
		known[id] = false
	}
	for _, id := range ordered {
		seen, ok := known[id]
		if !ok {
			return fmt.Errorf("unknown id %q", id)
		}
		if seen {
			return fmt.Errorf("duplicate id %q", id)
		}
		known[id] = true
	}
	return nil
}

// SanitizeFilename keeps a title usable as a download filename and condenses
// whitespace runs to single spaces.
func SanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		case '\n', '\r', '\t':
			return ' '
		default:
			return r
		}
	}, name)
	return strings.Join(strings.Fields(cleaned), " ")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
