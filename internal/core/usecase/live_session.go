package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docscan/internal/core/domain"
	"github.com/kirillkom/docscan/internal/core/ports"
)

const timerWorkTimeout = 10 * time.Second

// SessionRecorder receives live session counters. Implemented by the metrics
// package; nil means no recording.
type SessionRecorder interface {
	RecordObservation(kind domain.ObservationKind, outcome domain.ObserveOutcome)
	RecordAdvance(reason string)
	RecordPhotoRequest(reason string)
	SessionStarted()
	SessionStopped()
}

type nopSessionRecorder struct{}

func (nopSessionRecorder) RecordObservation(domain.ObservationKind, domain.ObserveOutcome) {}
func (nopSessionRecorder) RecordAdvance(string)                                            {}
func (nopSessionRecorder) RecordPhotoRequest(string)                                       {}
func (nopSessionRecorder) SessionStarted()                                                 {}
func (nopSessionRecorder) SessionStopped()                                                 {}

type liveSession struct {
	mu sync.Mutex

	id        string
	scanID    string
	options   domain.StartOptions
	scanning  bool
	startedAt time.Time

	capture               *domain.Capture
	lastPhotoAt           time.Time
	lastCollectionAt      *time.Time
	autoCaptureInProgress bool
	pending               []domain.PhotoRequest

	initialPhotoTimer ports.Timer
	autoCaptureTimer  ports.Timer
}

func (s *liveSession) snapshot() domain.SessionState {
	state := domain.SessionState{
		ID:                    s.id,
		ScanID:                s.scanID,
		Scanning:              s.scanning,
		Options:               s.options,
		StartedAt:             s.startedAt,
		LastPhotoAt:           s.lastPhotoAt,
		AutoCaptureInProgress: s.autoCaptureInProgress,
		PendingPhotoRequests:  append([]domain.PhotoRequest{}, s.pending...),
	}
	if s.lastCollectionAt != nil {
		at := *s.lastCollectionAt
		state.LastCollectionAt = &at
	}
	if s.capture != nil {
		state.ActiveCaptureID = s.capture.ID
		state.ItemsInCapture = len(s.capture.Items)
	}
	return state
}

func (s *liveSession) stopTimers() {
	if s.initialPhotoTimer != nil {
		s.initialPhotoTimer.Stop()
		s.initialPhotoTimer = nil
	}
	if s.autoCaptureTimer != nil {
		s.autoCaptureTimer.Stop()
		s.autoCaptureTimer = nil
	}
}

type LiveSessionOption func(*LiveSessionManager)

func WithClock(clock ports.Clock) LiveSessionOption {
	return func(m *LiveSessionManager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func WithCapturePolicy(policy CapturePolicy) LiveSessionOption {
	return func(m *LiveSessionManager) {
		m.policy = policy.withDefaults()
	}
}

func WithDuplicateFilter(filter DuplicateFilter) LiveSessionOption {
	return func(m *LiveSessionManager) {
		m.filter = filter
	}
}

func WithSessionRecorder(recorder SessionRecorder) LiveSessionOption {
	return func(m *LiveSessionManager) {
		if recorder != nil {
			m.recorder = recorder
		}
	}
}

// LiveSessionManager coordinates continuous scanning sessions: it collects
// observations into the active capture, filters duplicates and advances to a
// new capture once the page in front of the camera has settled.
//
// Each session carries its own lock; timer callbacks take the same lock and
// check the scanning flag before doing any work, so stopping a session
// cancels every pending photo.
type LiveSessionManager struct {
	repo     ports.ScanRepository
	events   ports.EventPublisher
	clock    ports.Clock
	policy   CapturePolicy
	filter   DuplicateFilter
	recorder SessionRecorder

	mu       sync.Mutex
	sessions map[string]*liveSession
}

func NewLiveSessionManager(
	repo ports.ScanRepository,
	events ports.EventPublisher,
	opts ...LiveSessionOption,
) *LiveSessionManager {
	m := &LiveSessionManager{
		repo:     repo,
		events:   events,
		clock:    SystemClock{},
		policy:   DefaultCapturePolicy(),
		filter:   NewDuplicateFilter(0),
		recorder: nopSessionRecorder{},
		sessions: make(map[string]*liveSession),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *LiveSessionManager) Start(ctx context.Context, scanID string, options domain.StartOptions) (domain.SessionState, error) {
	scan, err := m.repo.GetScan(ctx, scanID)
	if err != nil {
		return domain.SessionState{}, fmt.Errorf("load scan: %w", err)
	}

	now := m.clock.Now()
	s := &liveSession{
		id:          uuid.NewString(),
		scanID:      scan.ID,
		options:     options,
		scanning:    true,
		startedAt:   now,
		lastPhotoAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if options.AutoCapture || scan.FirstCaptureHasNoPhoto() {
		capture, err := m.createCapture(ctx, scan.ID, now)
		if err != nil {
			return domain.SessionState{}, err
		}
		s.capture = capture
		captureID := capture.ID
		s.initialPhotoTimer = m.clock.AfterFunc(m.policy.InitialPhotoDelay, func() {
			m.onInitialPhotoTimer(s, captureID)
		})
	} else {
		last := *scan.LastCapture()
		last.Items = append([]domain.RecognizedItem{}, last.Items...)
		s.capture = &last
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.recorder.SessionStarted()
	slog.Info("live_session_started",
		"session_id", s.id,
		"scan_id", s.scanID,
		"capture_id", s.capture.ID,
		"auto_capture", options.AutoCapture,
		"only_barcodes", options.OnlyBarcodes,
	)
	return s.snapshot(), nil
}

func (m *LiveSessionManager) Observe(ctx context.Context, sessionID string, obs domain.Observation) (domain.ObserveResult, error) {
	if err := validateInput("observe", obs); err != nil {
		return domain.ObserveResult{}, err
	}
	if strings.TrimSpace(obs.Text) == "" {
		return domain.ObserveResult{}, domain.WrapError(domain.ErrInvalidInput, "observe", fmt.Errorf("observation text is blank"))
	}

	s, err := m.session(sessionID)
	if err != nil {
		return domain.ObserveResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.scanning {
		return domain.ObserveResult{}, domain.WrapError(domain.ErrConflict, "observe", fmt.Errorf("session %s is stopped", sessionID))
	}
	if _, err := m.syncCaptureLocked(ctx, s, domain.PhotoReasonCaptureReplaced); err != nil {
		return domain.ObserveResult{}, err
	}

	result := domain.ObserveResult{CaptureID: s.capture.ID}
	if s.options.OnlyBarcodes && !obs.IsBarcode() {
		result.Outcome = domain.OutcomeIgnored
		m.recorder.RecordObservation(obs.Kind, result.Outcome)
		return result, nil
	}
	if m.filter.IsDuplicate(s.capture.Items, obs) {
		result.Outcome = domain.OutcomeDuplicate
		m.recorder.RecordObservation(obs.Kind, result.Outcome)
		return result, nil
	}

	now := m.clock.Now()
	// decided on the items collected so far, before this one lands
	trigger := m.policy.ShouldTrigger(s.capture.Items, s.lastPhotoAt, now)

	item := newRecognizedItem(s.capture.ID, obs, now)
	if err := m.repo.AddItem(ctx, &item); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			// deleted between the reload and the insert; the next observation
			// opens a replacement capture
			return domain.ObserveResult{}, domain.WrapError(domain.ErrConflict, "observe", fmt.Errorf("capture %s was removed: %w", s.capture.ID, err))
		}
		return domain.ObserveResult{}, fmt.Errorf("persist recognized item: %w", err)
	}
	s.capture.Items = append(s.capture.Items, item)
	s.lastCollectionAt = &now

	if trigger && s.options.AutoCapture && !s.autoCaptureInProgress {
		s.autoCaptureInProgress = true
		s.autoCaptureTimer = m.clock.AfterFunc(m.policy.AutoPhotoDelay, func() {
			m.onAutoCaptureTimer(s)
		})
		result.PhotoScheduled = true
	}

	result.Outcome = domain.OutcomeAdded
	result.Item = &item
	m.recorder.RecordObservation(obs.Kind, result.Outcome)
	return result, nil
}

// NewCapture closes the active capture right away, the same way an automatic
// advance does.
func (m *LiveSessionManager) NewCapture(ctx context.Context, sessionID string) (domain.SessionState, error) {
	s, err := m.session(sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.scanning {
		return domain.SessionState{}, domain.WrapError(domain.ErrConflict, "new capture", fmt.Errorf("session %s is stopped", sessionID))
	}
	if err := m.advanceLocked(ctx, s, domain.PhotoReasonManual); err != nil {
		return domain.SessionState{}, err
	}
	return s.snapshot(), nil
}

func (m *LiveSessionManager) AckPhotoRequests(_ context.Context, sessionID string) ([]domain.PhotoRequest, error) {
	s, err := m.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.pending
	s.pending = nil
	if out == nil {
		out = []domain.PhotoRequest{}
	}
	return out, nil
}

func (m *LiveSessionManager) Get(_ context.Context, sessionID string) (domain.SessionState, error) {
	s, err := m.session(sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// Stop ends the session and cancels its pending timers. The session is
// forgotten afterwards.
func (m *LiveSessionManager) Stop(_ context.Context, sessionID string) (domain.SessionState, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return domain.SessionState{}, domain.WrapError(domain.ErrNotFound, "stop session", fmt.Errorf("session %s", sessionID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanning = false
	s.autoCaptureInProgress = false
	s.stopTimers()

	m.recorder.SessionStopped()
	slog.Info("live_session_stopped", "session_id", s.id, "scan_id", s.scanID)
	return s.snapshot(), nil
}

// StopAll stops every live session. Used on shutdown.
func (m *LiveSessionManager) StopAll(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_, _ = m.Stop(ctx, id)
	}
}

func (m *LiveSessionManager) session(id string) (*liveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get session", fmt.Errorf("session %s", id))
	}
	return s, nil
}

func (m *LiveSessionManager) onInitialPhotoTimer(s *liveSession, captureID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialPhotoTimer = nil
	if !s.scanning {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timerWorkTimeout)
	defer cancel()
	m.requestPhotoLocked(ctx, s, captureID, domain.PhotoReasonSessionStart)
}

func (m *LiveSessionManager) onAutoCaptureTimer(s *liveSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoCaptureInProgress = false
	s.autoCaptureTimer = nil

	if !s.scanning || !m.policy.CooldownElapsed(s.lastPhotoAt, m.clock.Now()) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timerWorkTimeout)
	defer cancel()
	if err := m.advanceLocked(ctx, s, domain.PhotoReasonAutoAdvance); err != nil {
		slog.Error("auto_capture_failed", "session_id", s.id, "scan_id", s.scanID, "error", err)
	}
}

// syncCaptureLocked reloads the active capture so that library edits and OCR
// passes are what the duplicate filter sees. A capture deleted under the
// session is replaced by a fresh one and replaced reports true; a deleted
// scan ends the session. Callers hold s.mu.
func (m *LiveSessionManager) syncCaptureLocked(ctx context.Context, s *liveSession, reason string) (replaced bool, err error) {
	current, err := m.repo.GetCapture(ctx, s.capture.ID)
	if err == nil {
		s.capture = current
		return false, nil
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		return false, fmt.Errorf("load active capture: %w", err)
	}

	next, err := m.createCapture(ctx, s.scanID, m.clock.Now())
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			return false, err
		}
		s.scanning = false
		s.autoCaptureInProgress = false
		s.stopTimers()
		slog.Warn("live_session_scan_deleted", "session_id", s.id, "scan_id", s.scanID)
		return false, domain.WrapError(domain.ErrConflict, "sync capture", fmt.Errorf("scan %s was deleted", s.scanID))
	}

	slog.Warn("active_capture_replaced",
		"session_id", s.id,
		"scan_id", s.scanID,
		"deleted_capture_id", s.capture.ID,
		"capture_id", next.ID,
	)
	s.capture = next
	m.requestPhotoLocked(ctx, s, next.ID, reason)
	return true, nil
}

// advanceLocked opens a new capture, moves the items recognized within the
// carry-forward window into it and requests a photo. Nothing changes, in the
// session or the scan, unless both steps succeed. Callers hold s.mu.
func (m *LiveSessionManager) advanceLocked(ctx context.Context, s *liveSession, reason string) error {
	replaced, err := m.syncCaptureLocked(ctx, s, reason)
	if err != nil {
		return err
	}
	now := m.clock.Now()
	if replaced {
		// the replacement capture already is the fresh page
		s.lastPhotoAt = now
		m.recorder.RecordAdvance(reason)
		return nil
	}

	next, err := m.createCapture(ctx, s.scanID, now)
	if err != nil {
		return err
	}

	older, recent := m.policy.SplitRecent(s.capture.Items, now)
	if len(recent) > 0 {
		ids := make([]string, 0, len(recent))
		for _, item := range recent {
			ids = append(ids, item.ID)
		}
		if err := m.repo.MoveItems(ctx, ids, next.ID); err != nil {
			if delErr := m.repo.DeleteCapture(ctx, next.ID); delErr != nil {
				slog.Error("capture_rollback_failed", "session_id", s.id, "capture_id", next.ID, "error", delErr)
			}
			return fmt.Errorf("carry items forward: %w", err)
		}
		next.Items = recent
		next.Renumber()
	}
	s.capture.Items = older
	s.capture = next
	s.lastPhotoAt = now

	m.requestPhotoLocked(ctx, s, next.ID, reason)
	m.recorder.RecordAdvance(reason)
	slog.Info("capture_advanced",
		"session_id", s.id,
		"scan_id", s.scanID,
		"capture_id", next.ID,
		"carried_items", len(recent),
		"reason", reason,
	)
	return nil
}

func (m *LiveSessionManager) requestPhotoLocked(ctx context.Context, s *liveSession, captureID, reason string) {
	request := domain.PhotoRequest{
		SessionID:   s.id,
		ScanID:      s.scanID,
		CaptureID:   captureID,
		Reason:      reason,
		RequestedAt: m.clock.Now(),
	}
	s.pending = append(s.pending, request)
	m.recorder.RecordPhotoRequest(reason)

	if m.events == nil {
		return
	}
	if err := m.events.PublishPhotoRequested(ctx, request); err != nil {
		// the request stays queued on the session for polling clients
		slog.Warn("photo_request_publish_failed", "session_id", s.id, "capture_id", captureID, "error", err)
	}
}

func (m *LiveSessionManager) createCapture(ctx context.Context, scanID string, now time.Time) (*domain.Capture, error) {
	capture := &domain.Capture{
		ID:        uuid.NewString(),
		ScanID:    scanID,
		CreatedAt: now,
		Items:     []domain.RecognizedItem{},
	}
	if err := m.repo.CreateCapture(ctx, capture); err != nil {
		return nil, fmt.Errorf("create capture: %w", err)
	}
	return capture, nil
}
