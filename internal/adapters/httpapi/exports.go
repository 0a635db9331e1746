package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dredge/internal/blob"
	"dredge/internal/core"
)

// handleExports serves POST /api/v1/exports, GET /api/v1/exports/{id} and
// GET /api/v1/exports/{id}/artifacts/{format}.
func (h *Handler) handleExports(w http.ResponseWriter, r *http.Request, path string) {
	rest := strings.TrimPrefix(strings.TrimPrefix(path, "/api/v1/exports"), "/")
	switch {
	case rest == "" && r.Method == http.MethodPost:
		h.handleExportCreate(w, r)
	case rest == "":
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	case r.Method != http.MethodGet:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		parts := strings.Split(rest, "/")
		record, ok := h.Exports.GetExport(parts[0])
		if !ok {
			writeError(w, http.StatusNotFound, "export not found")
			return
		}
		switch {
		case len(parts) == 1:
			writeJSON(w, http.StatusOK, map[string]any{"export": record})
		case len(parts) == 3 && parts[1] == "artifacts":
			h.handleArtifact(w, r, record, parts[2])
		default:
			http.NotFound(w, r)
		}
	}
}

func (h *Handler) handleExportCreate(w http.ResponseWriter, r *http.Request) {
	var input ExportInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if input.RequestedBy == "" {
		input.RequestedBy = r.Header.Get("X-Requested-By")
	}
	record, err := h.Exports.EnqueueExport(r.Context(), input)
	if err != nil {
		status := http.StatusBadRequest
		if core.IsUnknownTreatment(err) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (h *Handler) handleArtifact(w http.ResponseWriter, r *http.Request, record ExportRecord, format string) {
	for _, a := range record.Artifacts {
		if a.Format != format {
			continue
		}
		info, rc, err := h.Exports.Store().Get(r.Context(), a.Key)
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, http.StatusNotFound, "artifact missing from store")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", a.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.ID+"."+format))
		if info.ETag != "" {
			w.Header().Set("ETag", `"`+info.ETag+`"`)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, rc)
		return
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("export %s has no %s artifact", record.ID, format))
}
