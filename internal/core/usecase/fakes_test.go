package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kirillkom/docscan/internal/core/domain"
	"github.com/kirillkom/docscan/internal/core/ports"
)

// memoryRepo is an in-memory ports.ScanRepository that keeps positions
// contiguous the way the SQL repository does.
type memoryRepo struct {
	mu    sync.Mutex
	scans []*domain.Scan

	addItemErr error
	moveErr    error
	moveCalls  int
}

func newMemoryRepo(scans ...*domain.Scan) *memoryRepo {
	r := &memoryRepo{}
	for _, s := range scans {
		r.scans = append(r.scans, s)
	}
	r.renumberScans()
	return r
}

func notFound(op, id string) error {
	return domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("id %s", id))
}

func (r *memoryRepo) renumberScans() {
	for i, s := range r.scans {
		s.Position = i
		s.Renumber()
		for j := range s.Captures {
			s.Captures[j].Renumber()
		}
	}
}

func (r *memoryRepo) findScan(id string) (int, *domain.Scan) {
	for i, s := range r.scans {
		if s.ID == id {
			return i, s
		}
	}
	return -1, nil
}

func (r *memoryRepo) findCapture(id string) (*domain.Scan, *domain.Capture) {
	for _, s := range r.scans {
		for i := range s.Captures {
			if s.Captures[i].ID == id {
				return s, &s.Captures[i]
			}
		}
	}
	return nil, nil
}

func (r *memoryRepo) findItem(id string) (*domain.Capture, int) {
	for _, s := range r.scans {
		for i := range s.Captures {
			if idx := s.Captures[i].ItemIndex(id); idx >= 0 {
				return &s.Captures[i], idx
			}
		}
	}
	return nil, -1
}

func cloneScan(s *domain.Scan) *domain.Scan {
	out := *s
	out.Captures = make([]domain.Capture, len(s.Captures))
	for i, c := range s.Captures {
		c.Items = append([]domain.RecognizedItem{}, c.Items...)
		out.Captures[i] = c
	}
	return &out
}

func (r *memoryRepo) CreateScan(_ context.Context, scan *domain.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	scan.Position = len(r.scans)
	r.scans = append(r.scans, cloneScan(scan))
	return nil
}

func (r *memoryRepo) GetScan(_ context.Context, id string) (*domain.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, s := r.findScan(id)
	if s == nil {
		return nil, notFound("get scan", id)
	}
	return cloneScan(s), nil
}

func (r *memoryRepo) ListScans(context.Context) ([]domain.Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Scan, 0, len(r.scans))
	for _, s := range r.scans {
		out = append(out, *cloneScan(s))
	}
	return out, nil
}

func (r *memoryRepo) UpdateScan(_ context.Context, scan *domain.Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, s := r.findScan(scan.ID)
	if s == nil {
		return notFound("update scan", scan.ID)
	}
	s.Title = scan.Title
	s.Favorite = scan.Favorite
	s.UpdatedAt = scan.UpdatedAt
	return nil
}

func (r *memoryRepo) DeleteScan(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, s := r.findScan(id)
	if s == nil {
		return notFound("delete scan", id)
	}
	r.scans = append(r.scans[:i], r.scans[i+1:]...)
	r.renumberScans()
	return nil
}

func (r *memoryRepo) ReorderScans(_ context.Context, orderedIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Scan, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		_, s := r.findScan(id)
		if s == nil {
			return notFound("reorder scans", id)
		}
		out = append(out, s)
	}
	r.scans = out
	r.renumberScans()
	return nil
}

func (r *memoryRepo) CreateCapture(_ context.Context, capture *domain.Capture) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, s := r.findScan(capture.ScanID)
	if s == nil {
		return notFound("create capture", capture.ScanID)
	}
	capture.Position = len(s.Captures)
	c := *capture
	c.Items = append([]domain.RecognizedItem{}, capture.Items...)
	s.Captures = append(s.Captures, c)
	return nil
}

func (r *memoryRepo) GetCapture(_ context.Context, id string) (*domain.Capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, c := r.findCapture(id)
	if c == nil {
		return nil, notFound("get capture", id)
	}
	out := *c
	out.Items = append([]domain.RecognizedItem{}, c.Items...)
	return &out, nil
}

func (r *memoryRepo) SetCaptureImage(_ context.Context, id, imageKey, thumbnailKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, c := r.findCapture(id)
	if c == nil {
		return notFound("set capture image", id)
	}
	c.ImageKey = imageKey
	c.ThumbnailKey = thumbnailKey
	return nil
}

func (r *memoryRepo) DeleteCapture(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, c := r.findCapture(id)
	if c == nil {
		return notFound("delete capture", id)
	}
	i := s.CaptureIndex(id)
	s.Captures = append(s.Captures[:i], s.Captures[i+1:]...)
	s.Renumber()
	return nil
}

func (r *memoryRepo) ReorderCaptures(_ context.Context, scanID string, orderedIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, s := r.findScan(scanID)
	if s == nil {
		return notFound("reorder captures", scanID)
	}
	out := make([]domain.Capture, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		i := s.CaptureIndex(id)
		if i < 0 {
			return notFound("reorder captures", id)
		}
		out = append(out, s.Captures[i])
	}
	s.Captures = out
	s.Renumber()
	return nil
}

func (r *memoryRepo) AddItem(_ context.Context, item *domain.RecognizedItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addItemErr != nil {
		return r.addItemErr
	}
	_, c := r.findCapture(item.CaptureID)
	if c == nil {
		return notFound("add item", item.CaptureID)
	}
	item.Position = len(c.Items)
	c.Items = append(c.Items, *item)
	return nil
}

func (r *memoryRepo) GetItem(_ context.Context, id string) (*domain.RecognizedItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, i := r.findItem(id)
	if c == nil {
		return nil, notFound("get item", id)
	}
	item := c.Items[i]
	return &item, nil
}

func (r *memoryRepo) UpdateItemTranscript(_ context.Context, id, transcript string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, i := r.findItem(id)
	if c == nil {
		return notFound("update item", id)
	}
	c.Items[i].Transcript = transcript
	return nil
}

func (r *memoryRepo) DeleteItem(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, i := r.findItem(id)
	if c == nil {
		return notFound("delete item", id)
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.Renumber()
	return nil
}

func (r *memoryRepo) MoveItems(_ context.Context, itemIDs []string, toCaptureID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moveCalls++
	if r.moveErr != nil {
		return r.moveErr
	}
	_, target := r.findCapture(toCaptureID)
	if target == nil {
		return notFound("move items", toCaptureID)
	}
	moved := make([]domain.RecognizedItem, 0, len(itemIDs))
	for _, id := range itemIDs {
		c, i := r.findItem(id)
		if c == nil {
			return notFound("move items", id)
		}
		moved = append(moved, c.Items[i])
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		c.Renumber()
	}
	target.Items = append(target.Items, moved...)
	target.Renumber()
	return nil
}

func (r *memoryRepo) ReorderItems(_ context.Context, captureID string, orderedIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, c := r.findCapture(captureID)
	if c == nil {
		return notFound("reorder items", captureID)
	}
	out := make([]domain.RecognizedItem, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		i := c.ItemIndex(id)
		if i < 0 {
			return notFound("reorder items", id)
		}
		out = append(out, c.Items[i])
	}
	c.Items = out
	c.Renumber()
	return nil
}

// fakeClock fires due timers synchronously from Advance, in deadline order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	fired   bool
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) ports.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.fn()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (s *memoryStorage) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = raw
	return nil
}

func (s *memoryStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.objects[key]
	if !ok {
		return nil, notFound("open object", key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (s *memoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

type recordingEvents struct {
	mu          sync.Mutex
	photos      []domain.PhotoRequest
	imageStored []string
	err         error
}

func (e *recordingEvents) PublishPhotoRequested(_ context.Context, request domain.PhotoRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.photos = append(e.photos, request)
	return nil
}

func (e *recordingEvents) PublishCaptureImageStored(_ context.Context, captureID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.imageStored = append(e.imageStored, captureID)
	return nil
}

var errBoom = errors.New("boom")
