package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/dbfleet/internal/domain"
	"github.com/viralforge/dbfleet/internal/ports"
)

type fixture struct {
	service   *Service
	clock     *fakeClock
	accounts  *fakeAccounts
	sessions  *fakeSessions
	attempts  *fakeAttempts
	events    *fakeEvents
	snapshots *fakeSnapshots
	scans     *fakeScans
	directory *fakeDirectory
}

func defaultTestConfig() Config {
	return Config{
		DefaultRole:          domain.RoleUser,
		DefaultDirectoryRole: domain.RoleUser,
		FailedLoginThreshold: 5,
		LockoutDuration:      30 * time.Minute,
		SessionTTL:           8 * time.Hour,
	}
}

func newFixture() *fixture {
	return newFixtureWithConfig(defaultTestConfig())
}

func newFixtureWithConfig(cfg Config) *fixture {
	accounts := &fakeAccounts{byName: map[string]domain.Account{}}
	sessions := &fakeSessions{byID: map[string]domain.Session{}}
	attempts := &fakeAttempts{}
	events := &fakeEvents{}
	snapshots := &fakeSnapshots{byServer: map[uuid.UUID][]domain.ServerAccount{}}
	scans := &fakeScans{byID: map[uuid.UUID]domain.ScanRecord{}}
	directory := &fakeDirectory{users: map[string]fakeDirectoryUser{}}

	svc := NewService(Dependencies{
		Config:    cfg,
		Accounts:  accounts,
		Sessions:  sessions,
		Attempts:  attempts,
		Events:    events,
		Snapshots: snapshots,
		Scans:     scans,
		Directory: directory,
		Hasher:    &fakeHasher{},
	})

	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc.nowFn = clock.Now

	return &fixture{
		service:   svc,
		clock:     clock,
		accounts:  accounts,
		sessions:  sessions,
		attempts:  attempts,
		events:    events,
		snapshots: snapshots,
		scans:     scans,
		directory: directory,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, string, error) {
	return "hashed:" + password, "testsalt", nil
}

func (fakeHasher) Compare(hash, _, password string) error {
	if hash != "hashed:"+password {
		return domain.ErrInvalidCredentials
	}
	return nil
}

type fakeAccounts struct {
	mu     sync.Mutex
	byName map[string]domain.Account
}

func (f *fakeAccounts) Create(_ context.Context, params ports.AccountCreateParams) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[params.Username]; ok {
		return domain.Account{}, domain.ErrDuplicateUser
	}
	a := domain.Account{
		Username:     params.Username,
		PasswordHash: params.PasswordHash,
		PasswordSalt: params.PasswordSalt,
		Role:         params.Role,
		IsActive:     true,
		CreatedAt:    params.CreatedAt,
		UpdatedAt:    params.CreatedAt,
	}
	f.byName[a.Username] = a
	return a, nil
}

func (f *fakeAccounts) GetByUsername(_ context.Context, username string) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byName[username]
	if !ok {
		return domain.Account{}, domain.ErrUserNotFound
	}
	return a, nil
}

func (f *fakeAccounts) RecordFailure(_ context.Context, username string, threshold int, lockUntil, now time.Time) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byName[username]
	if !ok {
		return domain.Account{}, domain.ErrUserNotFound
	}
	a.FailedAttempts++
	if a.FailedAttempts >= threshold {
		until := lockUntil
		a.LockedUntil = &until
	}
	a.UpdatedAt = now
	f.byName[username] = a
	return a, nil
}

func (f *fakeAccounts) RecordSuccess(_ context.Context, username string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byName[username]
	if !ok {
		return domain.ErrUserNotFound
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	last := now
	a.LastLogin = &last
	a.UpdatedAt = now
	f.byName[username] = a
	return nil
}

func (f *fakeAccounts) ClearLock(_ context.Context, username string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byName[username]
	if !ok {
		return nil
	}
	if a.LockedUntil != nil && !now.Before(*a.LockedUntil) {
		a.FailedAttempts = 0
		a.LockedUntil = nil
		a.UpdatedAt = now
		f.byName[username] = a
	}
	return nil
}

func (f *fakeAccounts) List(_ context.Context, limit, offset int) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.byName))
	for name := range f.byName {
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
		out = append(out, f.byName[name])
	}
	return out, nil
}

func (f *fakeAccounts) CountAccounts(_ context.Context) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total, active int64
	for _, a := range f.byName {
		total++
		if a.IsActive {
			active++
		}
	}
	return total, active, nil
}

// get returns the stored account for direct state assertions.
func (f *fakeAccounts) get(username string) (domain.Account, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byName[username]
	return a, ok
}

func (f *fakeAccounts) put(a domain.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byName[a.Username] = a
}

type fakeSessions struct {
	mu   sync.Mutex
	byID map[string]domain.Session
}

func (f *fakeSessions) Create(_ context.Context, params ports.SessionCreateParams) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[params.SessionID]; ok {
		return domain.Session{}, domain.ErrConflict
	}
	s := domain.Session{
		SessionID:    params.SessionID,
		Username:     params.Username,
		Role:         params.Role,
		Method:       params.Method,
		CreatedAt:    params.CreatedAt,
		ExpiresAt:    params.ExpiresAt,
		LastActivity: params.LastActivity,
		IPAddress:    params.IPAddress,
		UserAgent:    params.UserAgent,
	}
	f.byID[s.SessionID] = s
	return s, nil
}

func (f *fakeSessions) GetByID(_ context.Context, sessionID string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) TouchActivity(_ context.Context, sessionID string, touchedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.LastActivity = touchedAt
	f.byID[sessionID] = s
	return nil
}

func (f *fakeSessions) Delete(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, sessionID)
	return nil
}

func (f *fakeSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	for id, s := range f.byID {
		if s.Expired(now) {
			delete(f.byID, id)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeSessions) ListActive(_ context.Context, now time.Time, limit, offset int) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Session
	for _, s := range f.byID {
		if !s.Expired(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSessions) CountActive(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, s := range f.byID {
		if !s.Expired(now) {
			count++
		}
	}
	return count, nil
}

func (f *fakeSessions) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

type fakeAttempts struct {
	mu    sync.Mutex
	items []domain.AuthAttempt
}

func (f *fakeAttempts) Insert(_ context.Context, attempt domain.AuthAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	attempt.ID = int64(len(f.items) + 1)
	f.items = append(f.items, attempt)
	return nil
}

func (f *fakeAttempts) ListRecent(_ context.Context, username string, limit, offset int) ([]domain.AuthAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuthAttempt
	skipped := 0
	for i := len(f.items) - 1; i >= 0; i-- {
		attempt := f.items[i]
		if username != "" && attempt.Username != username {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, attempt)
	}
	return out, nil
}

func (f *fakeAttempts) CountSince(_ context.Context, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, attempt := range f.items {
		if !attempt.AttemptAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeAttempts) snapshot() []domain.AuthAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuthAttempt, len(f.items))
	copy(out, f.items)
	return out
}

type fakeEvents struct {
	mu    sync.Mutex
	items []domain.SecurityEvent
}

func (f *fakeEvents) Insert(_ context.Context, event domain.SecurityEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, event)
	return nil
}

func (f *fakeEvents) List(_ context.Context, filter ports.SecurityEventFilter) ([]domain.SecurityEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.SecurityEvent
	for _, event := range f.items {
		if filter.ServerID != nil && event.ServerID != *filter.ServerID {
			continue
		}
		if filter.Resolved != nil && event.Resolved != *filter.Resolved {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (f *fakeEvents) Resolve(_ context.Context, eventID uuid.UUID, resolvedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, event := range f.items {
		if event.EventID == eventID {
			if !event.Resolved {
				f.items[i].Resolved = true
				at := resolvedAt
				f.items[i].ResolvedAt = &at
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeEvents) CountUnresolved(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, event := range f.items {
		if !event.Resolved {
			count++
		}
	}
	return count, nil
}

func (f *fakeEvents) snapshot() []domain.SecurityEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SecurityEvent, len(f.items))
	copy(out, f.items)
	return out
}

type fakeSnapshots struct {
	mu       sync.Mutex
	byServer map[uuid.UUID][]domain.ServerAccount
}

func (f *fakeSnapshots) ReplaceForServer(_ context.Context, serverID uuid.UUID, accounts []domain.ServerAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := make([]domain.ServerAccount, len(accounts))
	copy(stored, accounts)
	f.byServer[serverID] = stored
	return nil
}

func (f *fakeSnapshots) ListAll(_ context.Context) ([]domain.ServerAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ServerAccount
	for _, accounts := range f.byServer {
		out = append(out, accounts...)
	}
	return out, nil
}

func (f *fakeSnapshots) ListByServer(_ context.Context, serverID uuid.UUID) ([]domain.ServerAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	accounts := f.byServer[serverID]
	out := make([]domain.ServerAccount, len(accounts))
	copy(out, accounts)
	return out, nil
}

func (f *fakeSnapshots) CountDistinctIdentities(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := map[string]struct{}{}
	for _, accounts := range f.byServer {
		for _, acct := range accounts {
			keys[domain.Normalize(acct.Username)] = struct{}{}
		}
	}
	return int64(len(keys)), nil
}

func (f *fakeSnapshots) CountServers(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, accounts := range f.byServer {
		if len(accounts) > 0 {
			count++
		}
	}
	return count, nil
}

func (f *fakeSnapshots) CountAccounts(_ context.Context) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total, active int64
	for _, accounts := range f.byServer {
		for _, acct := range accounts {
			total++
			if acct.IsActive {
				active++
			}
		}
	}
	return total, active, nil
}

type fakeScans struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.ScanRecord
}

func (f *fakeScans) Create(_ context.Context, scan domain.ScanRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[scan.ScanID]; ok {
		return domain.ErrConflict
	}
	f.byID[scan.ScanID] = scan
	return nil
}

func (f *fakeScans) Get(_ context.Context, scanID uuid.UUID) (domain.ScanRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	scan, ok := f.byID[scanID]
	if !ok {
		return domain.ScanRecord{}, domain.ErrNotFound
	}
	return scan, nil
}

func (f *fakeScans) MarkRunning(_ context.Context, scanID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	scan, ok := f.byID[scanID]
	if !ok {
		return domain.ErrNotFound
	}
	if !scan.Status.CanTransition(domain.ScanRunning) {
		return domain.ErrConflict
	}
	scan.Status = domain.ScanRunning
	scan.StartedAt = at
	f.byID[scanID] = scan
	return nil
}

func (f *fakeScans) Complete(_ context.Context, scanID uuid.UUID, at time.Time, users, roles, tables int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	scan, ok := f.byID[scanID]
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
	f.byID[scanID] = scan
	return nil
}

func (f *fakeScans) Fail(_ context.Context, scanID uuid.UUID, at time.Time, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	scan, ok := f.byID[scanID]
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
	f.byID[scanID] = scan
	return nil
}

func (f *fakeScans) ListByServer(_ context.Context, serverID uuid.UUID, limit int) ([]domain.ScanRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ScanRecord
	for _, scan := range f.byID {
		if scan.ServerID == serverID {
			out = append(out, scan)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeScans) ListRecent(_ context.Context, limit int) ([]domain.ScanRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ScanRecord
	for _, scan := range f.byID {
		out = append(out, scan)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeDirectoryUser struct {
	password string
	identity domain.DirectoryIdentity
}

type fakeDirectory struct {
	mu      sync.Mutex
	users   map[string]fakeDirectoryUser
	dialErr error
	calls   int
}

func (f *fakeDirectory) TestConnection(_ context.Context) (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dialErr != nil {
		return false, f.dialErr.Error()
	}
	return true, "directory bind succeeded"
}

func (f *fakeDirectory) Authenticate(_ context.Context, username, password string) (bool, *domain.DirectoryIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.dialErr != nil {
		return false, nil, f.dialErr
	}
	u, ok := f.users[username]
	if !ok || u.password != password {
		return false, nil, nil
	}
	ident := u.identity
	return true, &ident, nil
}

func (f *fakeDirectory) LookupUser(_ context.Context, username string) (*domain.DirectoryIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	u, ok := f.users[username]
	if !ok {
		return nil, nil
	}
	ident := u.identity
	return &ident, nil
}

func (f *fakeDirectory) ListUsers(_ context.Context) ([]domain.DirectoryIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	var out []domain.DirectoryIdentity
	for _, u := range f.users {
		out = append(out, u.identity)
	}
	return out, nil
}

func (f *fakeDirectory) GroupsOf(_ context.Context, dn string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	for _, u := range f.users {
		if u.identity.DN == dn {
			return u.identity.Groups, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) addUser(username, password string, identity domain.DirectoryIdentity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[username] = fakeDirectoryUser{password: password, identity: identity}
}

func (f *fakeDirectory) setDialErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialErr = err
}

func (f *fakeDirectory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
