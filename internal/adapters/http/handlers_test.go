package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/dbfleet/internal/adapters/security"
	"github.com/viralforge/dbfleet/internal/application"
	"github.com/viralforge/dbfleet/internal/domain"
	"github.com/viralforge/dbfleet/internal/ports"
)

type testEnv struct {
	service *application.Service
	router  http.Handler
}

func defaultTestConfig() application.Config {
	return application.Config{
		DefaultRole:          domain.RoleUser,
		DefaultDirectoryRole: domain.RoleUser,
		FailedLoginThreshold: 5,
		LockoutDuration:      30 * time.Minute,
		SessionTTL:           8 * time.Hour,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, defaultTestConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg application.Config) *testEnv {
	t.Helper()
	svc := application.NewService(application.Dependencies{
		Config:    cfg,
		Accounts:  newMemAccounts(),
		Sessions:  newMemSessions(),
		Attempts:  &memAttempts{},
		Events:    &memEvents{},
		Snapshots: newMemSnapshots(),
		Scans:     newMemScans(),
		Hasher:    security.NewPBKDF2Hasher(1000),
	})
	return &testEnv{
		service: svc,
		router:  NewRouter(NewHandler(svc, nil, nil), nil),
	}
}

func (e *testEnv) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	e.router.ServeHTTP(res, req)
	return res
}

func (e *testEnv) seedAccount(t *testing.T, username, password, role string) {
	t.Helper()
	_, err := e.service.CreateAccount(context.Background(), application.CreateAccountRequest{
		Username: username,
		Password: password,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("seed account %s: %v", username, err)
	}
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	res := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, res.Code, res.Body.String())
	}
	var resp application.LoginResponse
	decodeData(t, res, &resp)
	if resp.SessionID == "" {
		t.Fatal("login returned an empty session id")
	}
	return resp.SessionID
}

// decodeData unwraps {"status":"success","data":...} into out.
func decodeData(t *testing.T, res *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v: %s", err, res.Body.String())
	}
	if envelope.Status != "success" {
		t.Fatalf("expected success envelope, got %s", res.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("decode data: %v: %s", err, res.Body.String())
	}
}

func errorCode(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Status string `json:"status"`
		Code   string `json:"code"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v: %s", err, res.Body.String())
	}
	if envelope.Status != "error" {
		t.Fatalf("expected error envelope, got %s", res.Body.String())
	}
	return envelope.Code
}

type memAccounts struct {
	mu     sync.Mutex
	byName map[string]domain.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byName: map[string]domain.Account{}}
}

func (m *memAccounts) Create(_ context.Context, params ports.AccountCreateParams) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byName[params.Username]; exists {
		return domain.Account{}, domain.ErrDuplicateUser
	}
	account := domain.Account{
		Username:     params.Username,
		PasswordHash: params.PasswordHash,
		PasswordSalt: params.PasswordSalt,
		Role:         params.Role,
		IsActive:     true,
		CreatedAt:    params.CreatedAt,
	}
	m.byName[params.Username] = account
	return account, nil
}

func (m *memAccounts) GetByUsername(_ context.Context, username string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byName[username]
	if !ok {
		return domain.Account{}, domain.ErrUserNotFound
	}
	return account, nil
}

func (m *memAccounts) RecordFailure(_ context.Context, username string, threshold int, lockUntil, _ time.Time) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byName[username]
	if !ok {
		return domain.Account{}, domain.ErrUserNotFound
	}
	account.FailedAttempts++
	if account.FailedAttempts >= threshold {
		until := lockUntil
		account.LockedUntil = &until
	}
	m.byName[username] = account
	return account, nil
}

func (m *memAccounts) RecordSuccess(_ context.Context, username string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byName[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	account.FailedAttempts = 0
	account.LockedUntil = nil
	last := now
	account.LastLogin = &last
	m.byName[username] = account
	return nil
}

func (m *memAccounts) ClearLock(_ context.Context, username string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.byName[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	account.FailedAttempts = 0
	account.LockedUntil = nil
	m.byName[username] = account
	return nil
}

func (m *memAccounts) List(_ context.Context, limit, offset int) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.byName))
	for name := range m.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []domain.Account
	for i, name := range names {
		if i < offset {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.byName[name])
	}
	return out, nil
}

func (m *memAccounts) CountAccounts(_ context.Context) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total, active int64
	for _, account := range m.byName {
		total++
		if account.IsActive {
			active++
		}
	}
	return total, active, nil
}

type memSessions struct {
	mu   sync.Mutex
	byID map[string]domain.Session
}

func newMemSessions() *memSessions {
	return &memSessions{byID: map[string]domain.Session{}}
}

func (m *memSessions) Create(_ context.Context, params ports.SessionCreateParams) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := domain.Session{
		SessionID:    params.SessionID,
		Username:     params.Username,
		Role:         params.Role,
		Method:       params.Method,
		IPAddress:    params.IPAddress,
		UserAgent:    params.UserAgent,
		CreatedAt:    params.CreatedAt,
		ExpiresAt:    params.ExpiresAt,
		LastActivity: params.LastActivity,
	}
	m.byID[session.SessionID] = session
	return session, nil
}

func (m *memSessions) GetByID(_ context.Context, sessionID string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.byID[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (m *memSessions) TouchActivity(_ context.Context, sessionID string, touchedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.byID[sessionID]; ok {
		session.LastActivity = touchedAt
		m.byID[sessionID] = session
	}
	return nil
}

func (m *memSessions) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, sessionID)
	return nil
}

func (m *memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, session := range m.byID {
		if session.Expired(now) {
			delete(m.byID, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memSessions) ListActive(_ context.Context, now time.Time, limit, _ int) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, session := range m.byID {
		if session.Expired(now) {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, session)
	}
	return out, nil
}

func (m *memSessions) CountActive(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, session := range m.byID {
		if !session.Expired(now) {
			count++
		}
	}
	return count, nil
}

type memAttempts struct {
	mu    sync.Mutex
	items []domain.AuthAttempt
}

func (m *memAttempts) Insert(_ context.Context, attempt domain.AuthAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt.ID = int64(len(m.items) + 1)
	m.items = append(m.items, attempt)
	return nil
}

func (m *memAttempts) ListRecent(_ context.Context, username string, limit, _ int) ([]domain.AuthAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuthAttempt
	for i := len(m.items) - 1; i >= 0; i-- {
		if username != "" && m.items[i].Username != username {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.items[i])
	}
	return out, nil
}

func (m *memAttempts) CountSince(_ context.Context, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, attempt := range m.items {
		if !attempt.AttemptAt.Before(since) {
			count++
		}
	}
	return count, nil
}

type memEvents struct {
	mu    sync.Mutex
	items []domain.SecurityEvent
}

func (m *memEvents) Insert(_ context.Context, event domain.SecurityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, event)
	return nil
}

func (m *memEvents) List(_ context.Context, filter ports.SecurityEventFilter) ([]domain.SecurityEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SecurityEvent
	for _, event := range m.items {
		if filter.ServerID != nil && event.ServerID != *filter.ServerID {
			continue
		}
		if filter.Resolved != nil && event.Resolved != *filter.Resolved {
			continue
		}
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
		out = append(out, event)
	}
	return out, nil
}

func (m *memEvents) Resolve(_ context.Context, eventID uuid.UUID, resolvedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, event := range m.items {
		if event.EventID != eventID {
			continue
		}
		if !event.Resolved {
			event.Resolved = true
			at := resolvedAt
			event.ResolvedAt = &at
			m.items[i] = event
		}
		return nil
	}
	return domain.ErrNotFound
}

func (m *memEvents) CountUnresolved(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, event := range m.items {
		if !event.Resolved {
			count++
		}
	}
	return count, nil
}

type memSnapshots struct {
	mu       sync.Mutex
	byServer map[uuid.UUID][]domain.ServerAccount
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{byServer: map[uuid.UUID][]domain.ServerAccount{}}
}

func (m *memSnapshots) ReplaceForServer(_ context.Context, serverID uuid.UUID, accounts []domain.ServerAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byServer[serverID] = append([]domain.ServerAccount(nil), accounts...)
	return nil
}

func (m *memSnapshots) ListAll(_ context.Context) ([]domain.ServerAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ServerAccount
	for _, accounts := range m.byServer {
		out = append(out, accounts...)
	}
	return out, nil
}

func (m *memSnapshots) ListByServer(_ context.Context, serverID uuid.UUID) ([]domain.ServerAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ServerAccount(nil), m.byServer[serverID]...), nil
}

func (m *memSnapshots) CountDistinctIdentities(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := map[string]struct{}{}
	for _, accounts := range m.byServer {
		for _, account := range accounts {
			keys[domain.Normalize(account.Username)] = struct{}{}
		}
	}
	return int64(len(keys)), nil
}

func (m *memSnapshots) CountServers(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, accounts := range m.byServer {
		if len(accounts) > 0 {
			count++
		}
	}
	return count, nil
}

func (m *memSnapshots) CountAccounts(_ context.Context) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total, active int64
	for _, accounts := range m.byServer {
		for _, account := range accounts {
			total++
			if account.IsActive {
				active++
			}
		}
	}
	return total, active, nil
}

type memScans struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.ScanRecord
	seq  []uuid.UUID
}

func newMemScans() *memScans {
	return &memScans{byID: map[uuid.UUID]domain.ScanRecord{}}
}

func (m *memScans) Create(_ context.Context, scan domain.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[scan.ScanID] = scan
	m.seq = append(m.seq, scan.ScanID)
	return nil
}

func (m *memScans) Get(_ context.Context, scanID uuid.UUID) (domain.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	scan, ok := m.byID[scanID]
	if !ok {
		return domain.ScanRecord{}, domain.ErrNotFound
	}
	return scan, nil
}

func (m *memScans) MarkRunning(_ context.Context, scanID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	scan, ok := m.byID[scanID]
	if !ok {
		return domain.ErrNotFound
	}
	if !scan.Status.CanTransition(domain.ScanRunning) {
		return domain.ErrConflict
	}
	scan.Status = domain.ScanRunning
	scan.StartedAt = at
	m.byID[scanID] = scan
	return nil
}

func (m *memScans) Complete(_ context.Context, scanID uuid.UUID, at time.Time, users, roles, tables int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	scan, ok := m.byID[scanID]
	if !ok {
		return domain.ErrNotFound
	}
	if !scan.Status.CanTransition(domain.ScanCompleted) {
		return domain.ErrConflict
	}
	scan.Status = domain.ScanCompleted
	finished := at
	scan.FinishedAt = &finished
	scan.UsersFound = users
	scan.RolesFound = roles
	scan.TablesFound = tables
	m.byID[scanID] = scan
	return nil
}

func (m *memScans) Fail(_ context.Context, scanID uuid.UUID, at time.Time, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	scan, ok := m.byID[scanID]
	if !ok {
		return domain.ErrNotFound
	}
	if !scan.Status.CanTransition(domain.ScanFailed) {
		return domain.ErrConflict
	}
	scan.Status = domain.ScanFailed
	finished := at
	scan.FinishedAt = &finished
	scan.Error = message
	m.byID[scanID] = scan
	return nil
}

func (m *memScans) ListByServer(_ context.Context, serverID uuid.UUID, limit int) ([]domain.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ScanRecord
	for i := len(m.seq) - 1; i >= 0; i-- {
		scan := m.byID[m.seq[i]]
		if scan.ServerID != serverID {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, scan)
	}
	return out, nil
}

func (m *memScans) ListRecent(_ context.Context, limit int) ([]domain.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ScanRecord
	for i := len(m.seq) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.byID[m.seq[i]])
	}
	return out, nil
}
