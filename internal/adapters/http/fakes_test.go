package httpadapter

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/kirillkom/docscan/internal/config"
	"github.com/kirillkom/docscan/internal/core/domain"
	"github.com/kirillkom/docscan/internal/core/ports"
)

// Each fake embeds its port so tests only implement what they exercise.

type libraryFake struct {
	ports.ScanLibrary

	err        error
	scan       *domain.Scan
	summaries  []ports.ScanSummary
	lastQuery  ports.ScanQuery
	lastUpdate ports.UpdateScanInput
	lastIDs    []string
}

func (f *libraryFake) CreateScan(_ context.Context, input ports.CreateScanInput) (*domain.Scan, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Scan{ID: "scan-new", Title: input.Title, Latitude: input.Latitude, Longitude: input.Longitude}, nil
}

func (f *libraryFake) GetScan(context.Context, string) (*domain.Scan, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.scan, nil
}

func (f *libraryFake) ListScans(_ context.Context, query ports.ScanQuery) ([]ports.ScanSummary, error) {
	f.lastQuery = query
	return f.summaries, f.err
}

func (f *libraryFake) RecentScans(context.Context) ([]ports.ScanSummary, error) {
	return f.summaries, f.err
}

func (f *libraryFake) UpdateScan(_ context.Context, id string, input ports.UpdateScanInput) (*domain.Scan, error) {
	f.lastUpdate = input
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Scan{ID: id}, nil
}

func (f *libraryFake) ReorderScans(_ context.Context, ids []string) error {
	f.lastIDs = ids
	return f.err
}

func (f *libraryFake) MoveItems(_ context.Context, ids []string, _ string) error {
	f.lastIDs = ids
	return f.err
}

type sessionsFake struct {
	ports.LiveSessions

	err      error
	state    domain.SessionState
	result   domain.ObserveResult
	lastObs  domain.Observation
	observed int
}

func (f *sessionsFake) Start(_ context.Context, scanID string, options domain.StartOptions) (domain.SessionState, error) {
	if f.err != nil {
		return domain.SessionState{}, f.err
	}
	return domain.SessionState{ID: "session-1", ScanID: scanID, Scanning: true, Options: options}, nil
}

func (f *sessionsFake) Observe(_ context.Context, _ string, obs domain.Observation) (domain.ObserveResult, error) {
	f.observed++
	f.lastObs = obs
	return f.result, f.err
}

func (f *sessionsFake) AckPhotoRequests(context.Context, string) ([]domain.PhotoRequest, error) {
	return nil, f.err
}

func (f *sessionsFake) Stop(context.Context, string) (domain.SessionState, error) {
	return f.state, f.err
}

type imagesFake struct {
	ports.CaptureImages

	lastThumbnail bool
	uploaded      []byte
}

func (f *imagesFake) AttachImage(_ context.Context, captureID string, body io.Reader) (*domain.Capture, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.uploaded = data
	return &domain.Capture{ID: captureID, ImageKey: "captures/" + captureID + "/a.jpg"}, nil
}

func (f *imagesFake) OpenImage(_ context.Context, _ string, thumbnail bool) (io.ReadCloser, error) {
	f.lastThumbnail = thumbnail
	return io.NopCloser(bytes.NewReader([]byte{0xff, 0xd8, 0xff})), nil
}

type importerFake struct {
	filename string
	body     string
}

func (f *importerFake) Import(_ context.Context, filename, _ string, body io.Reader) (*domain.Scan, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.filename = filename
	f.body = string(data)
	return &domain.Scan{ID: "scan-imported", Title: "notes"}, nil
}

type exporterFake struct{}

func (exporterFake) ScanText(context.Context, string) (string, string, error) {
	return "Receipts.txt", "line one\nline two\n", nil
}

func (exporterFake) CaptureText(context.Context, string) (string, string, error) {
	return "Page.txt", "only page\n", nil
}

func (exporterFake) ScanSpreadsheet(_ context.Context, _ string, w io.Writer) (string, error) {
	_, err := w.Write([]byte("PK"))
	return "Receipts.xlsx", err
}

type testDeps struct {
	library  *libraryFake
	sessions *sessionsFake
	images   *imagesFake
	importer *importerFake
}

func newTestDeps() testDeps {
	return testDeps{
		library:  &libraryFake{},
		sessions: &sessionsFake{},
		images:   &imagesFake{},
		importer: &importerFake{},
	}
}

func (d testDeps) handler(cfg config.Config) http.Handler {
	return NewRouter(cfg, Services{
		Library:  d.library,
		Sessions: d.sessions,
		Images:   d.images,
		Importer: d.importer,
		Exporter: exporterFake{},
	}).Handler()
}

func newTestHandler(cfg config.Config) http.Handler {
	return newTestDeps().handler(cfg)
}
