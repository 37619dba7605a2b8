package httpadapter

import (
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/docscan/internal/core/ports"
)

type idListRequest struct {
	IDs []string `json:"ids"`
}

type moveItemsRequest struct {
	ItemIDs []string `json:"item_ids"`
}

type editItemRequest struct {
	Transcript string `json:"transcript"`
}

func (rt *Router) listScans(w http.ResponseWriter, r *http.Request) {
	var query ports.ScanQuery
	params := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "q", params, &query.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "title_only", params, &query.TitleOnly); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "favorites", params, &query.FavoritesOnly); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scans, err := rt.services.Library.ListScans(r.Context(), query)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

func (rt *Router) recentScans(w http.ResponseWriter, r *http.Request) {
	scans, err := rt.services.Library.RecentScans(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

func (rt *Router) createScan(w http.ResponseWriter, r *http.Request) {
	var input ports.CreateScanInput
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &input); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	scan, err := rt.services.Library.CreateScan(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, scan)
}

func (rt *Router) getScan(w http.ResponseWriter, r *http.Request) {
	scan, err := rt.services.Library.GetScan(r.Context(), r.PathValue("scanID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (rt *Router) updateScan(w http.ResponseWriter, r *http.Request) {
	var input ports.UpdateScanInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scan, err := rt.services.Library.UpdateScan(r.Context(), r.PathValue("scanID"), input)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (rt *Router) deleteScan(w http.ResponseWriter, r *http.Request) {
	if err := rt.services.Library.DeleteScan(r.Context(), r.PathValue("scanID")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) reorderScans(w http.ResponseWriter, r *http.Request) {
	var req idListRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := rt.services.Library.ReorderScans(r.Context(), req.IDs); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) reorderCaptures(w http.ResponseWriter, r *http.Request) {
	var req idListRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := rt.services.Library.ReorderCaptures(r.Context(), r.PathValue("scanID"), req.IDs); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) deleteCapture(w http.ResponseWriter, r *http.Request) {
	if err := rt.services.Library.DeleteCapture(r.Context(), r.PathValue("captureID")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) reorderItems(w http.ResponseWriter, r *http.Request) {
	var req idListRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := rt.services.Library.ReorderItems(r.Context(), r.PathValue("captureID"), req.IDs); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) moveItems(w http.ResponseWriter, r *http.Request) {
	var req moveItemsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := rt.services.Library.MoveItems(r.Context(), req.ItemIDs, r.PathValue("captureID")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) editItem(w http.ResponseWriter, r *http.Request) {
	var req editItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := rt.services.Library.EditItem(r.Context(), r.PathValue("itemID"), req.Transcript)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (rt *Router) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := rt.services.Library.DeleteItem(r.Context(), r.PathValue("itemID")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) itemDetails(w http.ResponseWriter, r *http.Request) {
	details, err := rt.services.Library.ItemDetails(r.Context(), r.PathValue("itemID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}
