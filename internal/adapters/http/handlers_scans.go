package http

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/viralforge/dbfleet/internal/application"
)

func (h *Handler) startScan(w http.ResponseWriter, r *http.Request) {
	var req application.StartScanRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "start_scan", err)
		return
	}

	scan, err := h.service.StartScan(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "start_scan", err)
		return
	}
	writeSuccess(w, http.StatusCreated, newScanView(scan))
}

func (h *Handler) markScanRunning(w http.ResponseWriter, r *http.Request) {
	scanID, err := uuidParam(r, "scan_id")
	if err != nil {
		writeValidationError(r.Context(), w, "mark_scan_running", err)
		return
	}

	if err := h.service.MarkScanRunning(r.Context(), scanID); err != nil {
		writeMappedError(r.Context(), w, "mark_scan_running", err)
		return
	}
	writeMessage(w, http.StatusOK, "scan running")
}

func (h *Handler) completeScan(w http.ResponseWriter, r *http.Request) {
	scanID, err := uuidParam(r, "scan_id")
	if err != nil {
		writeValidationError(r.Context(), w, "complete_scan", err)
		return
	}

	var req application.CompleteScanRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "complete_scan", err)
		return
	}

	if err := h.service.CompleteScan(r.Context(), scanID, req); err != nil {
		writeMappedError(r.Context(), w, "complete_scan", err)
		return
	}
	writeMessage(w, http.StatusOK, "scan completed")
}

type failScanPayload struct {
	Message string `json:"message"`
}

func (h *Handler) failScan(w http.ResponseWriter, r *http.Request) {
	scanID, err := uuidParam(r, "scan_id")
	if err != nil {
		writeValidationError(r.Context(), w, "fail_scan", err)
		return
	}

	var payload failScanPayload
	if err := decodeBody(r, &payload); err != nil {
		writeValidationError(r.Context(), w, "fail_scan", err)
		return
	}

	if err := h.service.FailScan(r.Context(), scanID, payload.Message); err != nil {
		writeMappedError(r.Context(), w, "fail_scan", err)
		return
	}
	writeMessage(w, http.StatusOK, "scan marked failed")
}

func (h *Handler) getScan(w http.ResponseWriter, r *http.Request) {
	scanID, err := uuidParam(r, "scan_id")
	if err != nil {
		writeValidationError(r.Context(), w, "get_scan", err)
		return
	}

	scan, err := h.service.GetScan(r.Context(), scanID)
	if err != nil {
		writeMappedError(r.Context(), w, "get_scan", err)
		return
	}
	writeSuccess(w, http.StatusOK, newScanView(scan))
}

func (h *Handler) listScans(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)

	var serverID *uuid.UUID
	if raw := r.URL.Query().Get("server_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid server_id")
			return
		}
		serverID = &id
	}

	scans, err := h.service.ListScans(r.Context(), serverID, limit)
	if err != nil {
		writeMappedError(r.Context(), w, "list_scans", err)
		return
	}

	items := make([]scanView, 0, len(scans))
	for _, scan := range scans {
		items = append(items, newScanView(scan))
	}
	writeSuccess(w, http.StatusOK, map[string]any{"scans": items})
}
