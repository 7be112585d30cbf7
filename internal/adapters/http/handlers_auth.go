package http

import (
	"net/http"

	"github.com/viralforge/dbfleet/internal/application"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.AuthRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}
	// Client metadata comes from the connection, not the body.
	req.IPAddress = readIP(r)
	req.UserAgent = r.UserAgent()

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "login", err)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	if err := h.service.InvalidateSession(r.Context(), session.SessionID); err != nil {
		writeMappedError(r.Context(), w, "logout", err)
		return
	}
	writeMessage(w, http.StatusOK, "session terminated")
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	writeSuccess(w, http.StatusOK, newSessionView(session))
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req application.CreateAccountRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_account", err)
		return
	}

	account, err := h.service.CreateAccount(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_account", err)
		return
	}
	writeSuccess(w, http.StatusCreated, account)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	accounts, err := h.service.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		writeMappedError(r.Context(), w, "list_accounts", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) authHistory(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	attempts, err := h.service.AuthHistory(r.Context(), username, limit, offset)
	if err != nil {
		writeMappedError(r.Context(), w, "auth_history", err)
		return
	}

	items := make([]attemptView, 0, len(attempts))
	for _, attempt := range attempts {
		items = append(items, newAttemptView(attempt))
	}
	writeSuccess(w, http.StatusOK, map[string]any{"attempts": items})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	sessions, err := h.service.ListActiveSessions(r.Context(), limit, offset)
	if err != nil {
		writeMappedError(r.Context(), w, "list_sessions", err)
		return
	}

	items := make([]sessionView, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, newSessionView(session))
	}
	writeSuccess(w, http.StatusOK, map[string]any{"sessions": items})
}

func (h *Handler) testDirectory(w http.ResponseWriter, r *http.Request) {
	ok, message := h.service.TestDirectory(r.Context())
	writeSuccess(w, http.StatusOK, map[string]any{"reachable": ok, "message": message})
}
