package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/dbfleet/internal/domain"
	"github.com/viralforge/dbfleet/internal/ports"
)

// ReplaceSnapshot stores the account list a scan discovered on one server.
// The scan is authoritative for its server: the previous snapshot is
// replaced wholesale, never merged row by row.
func (s *Service) ReplaceSnapshot(ctx context.Context, req SnapshotRequest) (int, error) {
	if req.ServerID == uuid.Nil {
		return 0, fmt.Errorf("%w: server_id is required", domain.ErrInvalidInput)
	}

	now := s.nowFn()
	accounts := make([]domain.ServerAccount, 0, len(req.Accounts))
	for _, entry := range req.Accounts {
		// Usernames are kept exactly as the server reports them; drift
		// detection compares raw names.
		if entry.Username == "" {
			continue
		}
		accounts = append(accounts, domain.ServerAccount{
			ServerID:        req.ServerID,
			Username:        entry.Username,
			Type:            entry.Type,
			IsActive:        entry.IsActive,
			LastLogin:       entry.LastLogin,
			PermissionCount: entry.PermissionCount,
			DiscoveredAt:    now,
		})
	}

	if err := s.snapshots.ReplaceForServer(ctx, req.ServerID, accounts); err != nil {
		return 0, err
	}

	s.metrics.RecordSnapshotIngested()
	slog.Default().InfoContext(ctx, "server snapshot replaced",
		"service", "dbfleet",
		"module", "application",
		"layer", "application",
		"operation", "replace_snapshot",
		"outcome", "success",
		"server_id", req.ServerID,
		"accounts", len(accounts),
	)
	return len(accounts), nil
}

// GlobalUsers computes the fleet-wide identity view from all stored
// snapshots, keyed and sorted by normalized username. The view is recomputed
// from the snapshots on every call rather than maintained incrementally.
func (s *Service) GlobalUsers(ctx context.Context) ([]domain.GlobalIdentity, error) {
	accounts, err := s.snapshots.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	view := domain.BuildGlobalView(accounts)
	identities := make([]domain.GlobalIdentity, 0, len(view))
	for _, ident := range view {
		identities = append(identities, ident)
	}
	sort.Slice(identities, func(i, j int) bool { return identities[i].Key < identities[j].Key })
	return identities, nil
}

// DetectManualUsers compares a server's current snapshot against the
// expected baseline and raises one security event per unexpected account.
// Runs are independent: re-running over the same drift raises fresh events
// instead of deduplicating against earlier ones.
func (s *Service) DetectManualUsers(ctx context.Context, serverID uuid.UUID, baseline []string) (DriftReport, error) {
	if serverID == uuid.Nil {
		return DriftReport{}, fmt.Errorf("%w: server_id is required", domain.ErrInvalidInput)
	}

	accounts, err := s.snapshots.ListByServer(ctx, serverID)
	if err != nil {
		return DriftReport{}, err
	}
	current := make([]string, 0, len(accounts))
	for _, acct := range accounts {
		current = append(current, acct.Username)
	}

	manual := domain.DetectDrift(current, baseline)
	report := DriftReport{ServerID: serverID, ManualUsers: manual}

	now := s.nowFn()
	for _, name := range manual {
		event := domain.SecurityEvent{
			EventID:     uuid.New(),
			ServerID:    serverID,
			EventType:   domain.EventManualUserDetected,
			Severity:    domain.SeverityMedium,
			Username:    name,
			Description: fmt.Sprintf("account %q exists on the server but not in the managed baseline", name),
			CreatedAt:   now,
		}
		if err := s.events.Insert(ctx, event); err != nil {
			return report, err
		}
		report.EventsRaised++
		s.metrics.RecordSecurityEvent(domain.EventManualUserDetected)
	}

	if len(manual) > 0 {
		slog.Default().WarnContext(ctx, "manual accounts detected",
			"service", "dbfleet",
			"module", "application",
			"layer", "application",
			"operation", "detect_manual_users",
			"outcome", "drift",
			"server_id", serverID,
			"count", len(manual),
		)
	}
	return report, nil
}

func (s *Service) SecurityEvents(ctx context.Context, filter ports.SecurityEventFilter) ([]domain.SecurityEvent, error) {
	return s.events.List(ctx, filter)
}

// ResolveSecurityEvent marks an event handled. Resolving an event twice is a
// no-op; resolving an unknown event reports ErrNotFound.
func (s *Service) ResolveSecurityEvent(ctx context.Context, eventID uuid.UUID) error {
	return s.events.Resolve(ctx, eventID, s.nowFn())
}

// Statistics aggregates fleet-wide counters for the operations dashboard.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics
	var err error

	if stats.ServersScanned, err = s.snapshots.CountServers(ctx); err != nil {
		return Statistics{}, err
	}
	if stats.TotalServerAccounts, stats.ActiveServerAccounts, err = s.snapshots.CountAccounts(ctx); err != nil {
		return Statistics{}, err
	}
	if stats.DistinctIdentities, err = s.snapshots.CountDistinctIdentities(ctx); err != nil {
		return Statistics{}, err
	}
	if stats.LocalAccounts, stats.ActiveLocalAccounts, err = s.accounts.CountAccounts(ctx); err != nil {
		return Statistics{}, err
	}

	now := s.nowFn()
	if stats.ActiveSessions, err = s.sessions.CountActive(ctx, now); err != nil {
		return Statistics{}, err
	}
	if stats.AuthAttempts24h, err = s.attempts.CountSince(ctx, now.Add(-24*time.Hour)); err != nil {
		return Statistics{}, err
	}
	if stats.UnresolvedEvents, err = s.events.CountUnresolved(ctx); err != nil {
		return Statistics{}, err
	}
	return stats, nil
}
