package http

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/viralforge/dbfleet/internal/application"
	"github.com/viralforge/dbfleet/internal/ports"
)

type snapshotPayload struct {
	Accounts []application.SnapshotAccountEntry `json:"accounts"`
}

func (h *Handler) ingestSnapshot(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuidParam(r, "server_id")
	if err != nil {
		writeValidationError(r.Context(), w, "ingest_snapshot", err)
		return
	}

	var payload snapshotPayload
	if err := decodeBody(r, &payload); err != nil {
		writeValidationError(r.Context(), w, "ingest_snapshot", err)
		return
	}

	recorded, err := h.service.ReplaceSnapshot(r.Context(), application.SnapshotRequest{
		ServerID: serverID,
		Accounts: payload.Accounts,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "ingest_snapshot", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"server_id":         serverID,
		"accounts_recorded": recorded,
	})
}

func (h *Handler) globalUsers(w http.ResponseWriter, r *http.Request) {
	identities, err := h.service.GlobalUsers(r.Context())
	if err != nil {
		writeMappedError(r.Context(), w, "list_identities", err)
		return
	}

	items := make([]identityView, 0, len(identities))
	for _, identity := range identities {
		items = append(items, newIdentityView(identity))
	}
	writeSuccess(w, http.StatusOK, map[string]any{"identities": items})
}

type driftCheckPayload struct {
	Expected []string `json:"expected"`
}

func (h *Handler) detectDrift(w http.ResponseWriter, r *http.Request) {
	serverID, err := uuidParam(r, "server_id")
	if err != nil {
		writeValidationError(r.Context(), w, "drift_check", err)
		return
	}

	var payload driftCheckPayload
	if err := decodeBody(r, &payload); err != nil {
		writeValidationError(r.Context(), w, "drift_check", err)
		return
	}

	report, err := h.service.DetectManualUsers(r.Context(), serverID, payload.Expected)
	if err != nil {
		writeMappedError(r.Context(), w, "drift_check", err)
		return
	}
	writeSuccess(w, http.StatusOK, report)
}

func (h *Handler) listSecurityEvents(w http.ResponseWriter, r *http.Request) {
	filter := ports.SecurityEventFilter{
		Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
		Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
	}
	if raw := r.URL.Query().Get("server_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid server_id")
			return
		}
		filter.ServerID = &id
	}
	if raw := r.URL.Query().Get("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid resolved flag")
			return
		}
		filter.Resolved = &resolved
	}

	events, err := h.service.SecurityEvents(r.Context(), filter)
	if err != nil {
		writeMappedError(r.Context(), w, "list_security_events", err)
		return
	}

	items := make([]eventView, 0, len(events))
	for _, event := range events {
		items = append(items, newEventView(event))
	}
	writeSuccess(w, http.StatusOK, map[string]any{"events": items})
}

func (h *Handler) resolveSecurityEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "event_id")
	if err != nil {
		writeValidationError(r.Context(), w, "resolve_security_event", err)
		return
	}

	if err := h.service.ResolveSecurityEvent(r.Context(), eventID); err != nil {
		writeMappedError(r.Context(), w, "resolve_security_event", err)
		return
	}
	writeMessage(w, http.StatusOK, "event resolved")
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		writeMappedError(r.Context(), w, "statistics", err)
		return
	}
	writeSuccess(w, http.StatusOK, stats)
}
