package httpadapter

import (
	"net/http"

	"github.com/kirillkom/docscan/internal/core/domain"
)

type startSessionRequest struct {
	ScanID       string `json:"scan_id"`
	AutoCapture  bool   `json:"auto_capture"`
	OnlyBarcodes bool   `json:"only_barcodes"`
}

func (rt *Router) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := rt.services.Sessions.Start(r.Context(), req.ScanID, domain.StartOptions{
		AutoCapture:  req.AutoCapture,
		OnlyBarcodes: req.OnlyBarcodes,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+state.ID)
	writeJSON(w, http.StatusCreated, state)
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	state, err := rt.services.Sessions.Get(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) stopSession(w http.ResponseWriter, r *http.Request) {
	state, err := rt.services.Sessions.Stop(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) observe(w http.ResponseWriter, r *http.Request) {
	var obs domain.Observation
	if err := decodeJSON(w, r, &obs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := rt.services.Sessions.Observe(r.Context(), r.PathValue("sessionID"), obs)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) newSessionCapture(w http.ResponseWriter, r *http.Request) {
	state, err := rt.services.Sessions.NewCapture(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (rt *Router) ackPhotoRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := rt.services.Sessions.AckPhotoRequests(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if requests == nil {
		requests = []domain.PhotoRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"photo_requests": requests})
}
