package httpadapter

import (
	"net/http"

	"github.com/getkin/kin-openapi/routers"

	"github.com/kirillkom/docscan/internal/config"
	"github.com/kirillkom/docscan/internal/core/ports"
	"github.com/kirillkom/docscan/internal/observability/metrics"
)

const serviceName = "api"

// Services bundles the inbound ports the router serves.
type Services struct {
	Library  ports.ScanLibrary
	Sessions ports.LiveSessions
	Images   ports.CaptureImages
	Importer ports.DocumentImporter
	Exporter ports.ScanExporter
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
	openAPI  routers.Router
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

// NewRouter panics if the embedded OpenAPI document cannot be loaded.
func NewRouter(cfg config.Config, services Services, opts ...RouterOption) *Router {
	openAPI, err := loadOpenAPIRouter()
	if err != nil {
		panic(err)
	}
	rt := &Router{
		cfg:      cfg,
		services: services,
		openAPI:  openAPI,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Handler wires the routes behind request id, access log, metrics, rate
// limit, backpressure and request validation, in that order.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("GET /v1/scans", rt.listScans)
	mux.HandleFunc("POST /v1/scans", rt.createScan)
	mux.HandleFunc("GET /v1/scans/recent", rt.recentScans)
	mux.HandleFunc("PUT /v1/scans/order", rt.reorderScans)
	mux.HandleFunc("GET /v1/scans/{scanID}", rt.getScan)
	mux.HandleFunc("PATCH /v1/scans/{scanID}", rt.updateScan)
	mux.HandleFunc("DELETE /v1/scans/{scanID}", rt.deleteScan)
	mux.HandleFunc("GET /v1/scans/{scanID}/export", rt.exportScan)
	mux.HandleFunc("PUT /v1/scans/{scanID}/captures/order", rt.reorderCaptures)

	mux.HandleFunc("DELETE /v1/captures/{captureID}", rt.deleteCapture)
	mux.HandleFunc("PUT /v1/captures/{captureID}/image", rt.attachImage)
	mux.HandleFunc("GET /v1/captures/{captureID}/image", rt.getImage)
	mux.HandleFunc("GET /v1/captures/{captureID}/export", rt.exportCapture)
	mux.HandleFunc("PUT /v1/captures/{captureID}/items/order", rt.reorderItems)
	mux.HandleFunc("POST /v1/captures/{captureID}/items/move", rt.moveItems)

	mux.HandleFunc("PATCH /v1/items/{itemID}", rt.editItem)
	mux.HandleFunc("DELETE /v1/items/{itemID}", rt.deleteItem)
	mux.HandleFunc("GET /v1/items/{itemID}/details", rt.itemDetails)

	mux.HandleFunc("POST /v1/imports", rt.importDocument)

	mux.HandleFunc("POST /v1/sessions", rt.startSession)
	mux.HandleFunc("GET /v1/sessions/{sessionID}", rt.getSession)
	mux.HandleFunc("DELETE /v1/sessions/{sessionID}", rt.stopSession)
	mux.HandleFunc("POST /v1/sessions/{sessionID}/observations", rt.observe)
	mux.HandleFunc("POST /v1/sessions/{sessionID}/captures", rt.newSessionCapture)
	mux.HandleFunc("POST /v1/sessions/{sessionID}/photo-requests/ack", rt.ackPhotoRequests)

	var handler http.Handler = openAPIValidationMiddleware(rt.openAPI, mux)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
