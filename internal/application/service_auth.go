package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/viralforge/dbfleet/internal/domain"
	"github.com/viralforge/dbfleet/internal/ports"
)

// Authenticate runs the full decision flow for one credential pair: lockout
// short-circuit, then the directory when enabled, then the local store. The
// returned status carries the decision; the error return is reserved for
// metadata store failures.
func (s *Service) Authenticate(ctx context.Context, req AuthRequest) (AuthResult, error) {
	username := domain.Normalize(req.Username)
	if username == "" || req.Password == "" {
		res := AuthResult{Status: domain.AuthInvalidCredentials, Method: domain.AuthMethodUnknown}
		s.recordAttempt(ctx, req, res.Method, res.Status)
		return res, nil
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	switch {
	case err == nil:
		now := s.nowFn()
		if account.Locked(now) {
			slog.Default().WarnContext(ctx, "account lockout active",
				"service", "dbfleet",
				"module", "application",
				"layer", "application",
				"operation", "authenticate",
				"outcome", "blocked",
				"username", username,
				"locked_until", account.LockedUntil,
			)
			res := AuthResult{Status: domain.AuthAccountLocked, Method: domain.AuthMethodUnknown}
			s.recordAttempt(ctx, req, res.Method, res.Status)
			return res, nil
		}
		if account.LockedUntil != nil {
			// The lock window has passed; heal the row so later reads see a
			// clean account even if this attempt goes on to fail.
			_ = s.accounts.ClearLock(ctx, username, now)
		}
	case errors.Is(err, domain.ErrUserNotFound):
		// No local account. The directory may still know the caller.
	default:
		return AuthResult{}, err
	}

	if s.cfg.DirectoryEnabled && s.directory != nil {
		ok, identity, dirErr := s.directory.Authenticate(ctx, username, req.Password)
		switch {
		case dirErr != nil:
			slog.Default().WarnContext(ctx, "directory unreachable, falling back to local credentials",
				"service", "dbfleet",
				"module", "application",
				"layer", "application",
				"operation", "authenticate",
				"outcome", "degraded",
				"username", username,
				"error", dirErr,
			)
		case ok:
			res := AuthResult{
				Status:   domain.AuthSuccess,
				Method:   domain.AuthMethodDirectory,
				Username: username,
				Role:     s.mapGroupsToRole(identity.Groups),
			}
			s.recordAttempt(ctx, req, res.Method, res.Status)
			return res, nil
		}
	}

	return s.authenticateLocal(ctx, req, username)
}

func (s *Service) authenticateLocal(ctx context.Context, req AuthRequest, username string) (AuthResult, error) {
	result, account, err := s.verifyLocal(ctx, username, req.Password)
	if err != nil {
		return AuthResult{}, err
	}

	switch result {
	case domain.VerifyValid:
		now := s.nowFn()
		if err := s.accounts.RecordSuccess(ctx, username, now); err != nil {
			return AuthResult{}, err
		}
		res := AuthResult{
			Status:   domain.AuthSuccess,
			Method:   domain.AuthMethodLocal,
			Username: username,
			Role:     account.Role,
		}
		s.recordAttempt(ctx, req, res.Method, res.Status)
		return res, nil

	case domain.VerifyNotFound, domain.VerifyInactive:
		res := AuthResult{Status: domain.AuthUserNotFound, Method: domain.AuthMethodLocal}
		s.recordAttempt(ctx, req, res.Method, res.Status)
		return res, nil

	case domain.VerifyLocked:
		res := AuthResult{Status: domain.AuthAccountLocked, Method: domain.AuthMethodLocal}
		s.recordAttempt(ctx, req, res.Method, res.Status)
		return res, nil

	default:
		now := s.nowFn()
		lockUntil := now.Add(s.cfg.LockoutDuration)
		updated, failErr := s.accounts.RecordFailure(ctx, username, s.cfg.FailedLoginThreshold, lockUntil, now)
		if failErr != nil && !errors.Is(failErr, domain.ErrUserNotFound) {
			return AuthResult{}, failErr
		}
		if failErr == nil && updated.Locked(now) {
			s.metrics.RecordLockout()
			slog.Default().WarnContext(ctx, "account locked after repeated failures",
				"service", "dbfleet",
				"module", "application",
				"layer", "application",
				"operation", "authenticate",
				"outcome", "blocked",
				"username", username,
				"failed_attempts", updated.FailedAttempts,
				"locked_until", updated.LockedUntil,
			)
			res := AuthResult{Status: domain.AuthAccountLocked, Method: domain.AuthMethodLocal}
			s.recordAttempt(ctx, req, res.Method, res.Status)
			return res, nil
		}
		res := AuthResult{Status: domain.AuthInvalidCredentials, Method: domain.AuthMethodLocal}
		s.recordAttempt(ctx, req, res.Method, res.Status)
		return res, nil
	}
}

// verifyLocal checks a password against the local store without mutating
// counters or lock state.
func (s *Service) verifyLocal(ctx context.Context, username, password string) (domain.VerifyResult, domain.Account, error) {
	account, err := s.accounts.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.VerifyNotFound, domain.Account{}, nil
	}
	if err != nil {
		return domain.VerifyNotFound, domain.Account{}, err
	}
	if !account.IsActive {
		return domain.VerifyInactive, account, nil
	}
	if account.Locked(s.nowFn()) {
		return domain.VerifyLocked, account, nil
	}
	if err := s.hasher.Compare(account.PasswordHash, account.PasswordSalt, password); err != nil {
		return domain.VerifyInvalid, account, nil
	}
	return domain.VerifyValid, account, nil
}

// mapGroupsToRole resolves a directory group list to a local role. Rules are
// applied in configuration order and the first hit wins, so administrators
// can rank broad groups below narrow ones.
func (s *Service) mapGroupsToRole(groups []string) domain.Role {
	member := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		member[domain.Normalize(g)] = struct{}{}
	}
	for _, rule := range s.cfg.GroupRoleRules {
		if _, ok := member[domain.Normalize(rule.Group)]; ok {
			return rule.Role
		}
	}
	return s.cfg.DefaultDirectoryRole
}

// Login authenticates and, on success, opens a session. Unknown users and
// wrong passwords both surface as ErrInvalidCredentials so responses do not
// reveal which accounts exist.
func (s *Service) Login(ctx context.Context, req AuthRequest) (LoginResponse, error) {
	result, err := s.Authenticate(ctx, req)
	if err != nil {
		return LoginResponse{}, err
	}
	switch result.Status {
	case domain.AuthSuccess:
	case domain.AuthAccountLocked:
		return LoginResponse{}, domain.ErrAccountLocked
	default:
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	session, err := s.CreateSession(ctx, result, req)
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{
		SessionID: session.SessionID,
		Username:  session.Username,
		Role:      session.Role,
		Method:    string(session.Method),
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// CreateAccount registers a local account after password policy and role
// checks.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (AccountView, error) {
	username := domain.Normalize(req.Username)
	if username == "" {
		return AccountView{}, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}

	role := domain.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if role == "" {
		role = s.cfg.DefaultRole
	}
	if !domain.ValidRole(role) {
		return AccountView{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, req.Role)
	}

	if err := domain.ValidatePassword(req.Password); err != nil {
		return AccountView{}, err
	}

	hash, salt, err := s.hasher.Hash(req.Password)
	if err != nil {
		return AccountView{}, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.accounts.Create(ctx, ports.AccountCreateParams{
		Username:     username,
		PasswordHash: hash,
		PasswordSalt: salt,
		Role:         role,
		CreatedAt:    s.nowFn(),
	})
	if err != nil {
		return AccountView{}, err
	}

	slog.Default().InfoContext(ctx, "local account created",
		"service", "dbfleet",
		"module", "application",
		"layer", "application",
		"operation", "create_account",
		"outcome", "success",
		"username", account.Username,
		"role", account.Role,
	)
	return accountView(account), nil
}

func (s *Service) ListAccounts(ctx context.Context, limit, offset int) ([]AccountView, error) {
	accounts, err := s.accounts.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]AccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView(a))
	}
	return views, nil
}

// AuthHistory lists recent authentication attempts, newest first. An empty
// username returns attempts for every account.
func (s *Service) AuthHistory(ctx context.Context, username string, limit, offset int) ([]domain.AuthAttempt, error) {
	return s.attempts.ListRecent(ctx, domain.Normalize(username), limit, offset)
}

// EnsureBootstrapAccount creates the configured administrator account when
// it does not exist yet. A fresh install with no admin cannot be
// administered.
func (s *Service) EnsureBootstrapAccount(ctx context.Context) error {
	username := domain.Normalize(s.cfg.BootstrapUsername)
	if username == "" || s.cfg.BootstrapPassword == "" {
		return nil
	}

	if _, err := s.accounts.GetByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	_, err := s.CreateAccount(ctx, CreateAccountRequest{
		Username: username,
		Password: s.cfg.BootstrapPassword,
		Role:     string(domain.RoleAdmin),
	})
	if errors.Is(err, domain.ErrDuplicateUser) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("bootstrap account: %w", err)
	}

	slog.Default().InfoContext(ctx, "bootstrap administrator created",
		"service", "dbfleet",
		"module", "application",
		"layer", "application",
		"operation", "bootstrap_account",
		"outcome", "success",
		"username", username,
	)
	return nil
}

// TestDirectory reports whether the configured directory accepts the service
// bind.
func (s *Service) TestDirectory(ctx context.Context) (bool, string) {
	if !s.cfg.DirectoryEnabled || s.directory == nil {
		return false, "directory integration is disabled"
	}
	return s.directory.TestConnection(ctx)
}

func accountView(a domain.Account) AccountView {
	return AccountView{
		Username:       a.Username,
		Role:           a.Role,
		IsActive:       a.IsActive,
		FailedAttempts: a.FailedAttempts,
		LockedUntil:    a.LockedUntil,
		LastLogin:      a.LastLogin,
		CreatedAt:      a.CreatedAt,
	}
}
