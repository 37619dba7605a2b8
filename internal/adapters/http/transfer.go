package httpadapter

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"
)

const (
	maxImageUploadBytes = 40 << 20
	multipartOverhead   = 1 << 20

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	textContentType = "text/plain; charset=utf-8"
)

func (rt *Router) attachImage(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImageUploadBytes)
	capture, err := rt.services.Images.AttachImage(r.Context(), r.PathValue("captureID"), body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "image is too large")
			return
		}
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, capture)
}

func (rt *Router) getImage(w http.ResponseWriter, r *http.Request) {
	variant := "full"
	if err := runtime.BindQueryParameter("form", true, false, "variant", r.URL.Query(), &variant); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	image, err := rt.services.Images.OpenImage(r.Context(), r.PathValue("captureID"), variant == "thumbnail")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	defer image.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, image)
}

func (rt *Router) importDocument(w http.ResponseWriter, r *http.Request) {
	maxBytes := rt.cfg.ImportMaxBytes
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "document is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	scan, err := rt.services.Importer.Import(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, scan)
}

func (rt *Router) exportScan(w http.ResponseWriter, r *http.Request) {
	format := "txt"
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &format); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scanID := r.PathValue("scanID")

	switch strings.ToLower(format) {
	case "xlsx":
		var buf bytes.Buffer
		filename, err := rt.services.Exporter.ScanSpreadsheet(r.Context(), scanID, &buf)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeAttachment(w, xlsxContentType, filename, &buf)
	case "txt":
		filename, text, err := rt.services.Exporter.ScanText(r.Context(), scanID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeAttachment(w, textContentType, filename, strings.NewReader(text))
	default:
		writeError(w, http.StatusBadRequest, "format must be txt or xlsx")
	}
}

func (rt *Router) exportCapture(w http.ResponseWriter, r *http.Request) {
	filename, text, err := rt.services.Exporter.CaptureText(r.Context(), r.PathValue("captureID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeAttachment(w, textContentType, filename, strings.NewReader(text))
}
