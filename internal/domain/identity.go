package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DirectoryIdentity is a principal resolved from the directory service. It is
// ephemeral: resolved per call, optionally cached by the directory adapter,
// never persisted as a first-class record.
type DirectoryIdentity struct {
	DN          string   `json:"dn"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	Email       string   `json:"email"`
	Groups      []string `json:"groups"`
}

// ServerAccount is one discovered account on one database server, as reported
// by the most recent scan of that server. Username is kept raw; normalization
// happens only when building the cross-server view.
type ServerAccount struct {
	ServerID        uuid.UUID
	Username        string
	Type            string
	IsActive        bool
	LastLogin       *time.Time
	PermissionCount int
	DiscoveredAt    time.Time
}

// GlobalIdentity is the derived cross-server view of one logical user, keyed
// by the normalized username. It is recomputed from the current snapshot set
// on every read and never stored.
type GlobalIdentity struct {
	Key               string
	Servers           []uuid.UUID
	AppearsOnServers  int
	IsActiveSomewhere bool
	TotalPermissions  int
	FirstSeen         time.Time
	LastActivity      *time.Time
}

// Normalize canonicalizes a raw per-server username into the stable
// cross-server identity key.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// BuildGlobalView groups server accounts by normalized username and computes
// the per-identity aggregates. Pure function of its input; the result maps
// every input account to exactly one key.
func BuildGlobalView(accounts []ServerAccount) map[string]GlobalIdentity {
	type agg struct {
		servers map[uuid.UUID]struct{}
		ident   GlobalIdentity
	}

	byKey := make(map[string]*agg)
	for _, acct := range accounts {
		key := Normalize(acct.Username)
		a, ok := byKey[key]
		if !ok {
			a = &agg{
				servers: make(map[uuid.UUID]struct{}),
				ident:   GlobalIdentity{Key: key},
			}
			byKey[key] = a
		}

		a.servers[acct.ServerID] = struct{}{}
		a.ident.IsActiveSomewhere = a.ident.IsActiveSomewhere || acct.IsActive
		a.ident.TotalPermissions += acct.PermissionCount
		if !acct.DiscoveredAt.IsZero() {
			if a.ident.FirstSeen.IsZero() || acct.DiscoveredAt.Before(a.ident.FirstSeen) {
				a.ident.FirstSeen = acct.DiscoveredAt
			}
		}
		if acct.LastLogin != nil {
			if a.ident.LastActivity == nil || acct.LastLogin.After(*a.ident.LastActivity) {
				last := *acct.LastLogin
				a.ident.LastActivity = &last
			}
		}
	}

	view := make(map[string]GlobalIdentity, len(byKey))
	for key, a := range byKey {
		servers := make([]uuid.UUID, 0, len(a.servers))
		for id := range a.servers {
			servers = append(servers, id)
		}
		sort.Slice(servers, func(i, j int) bool { return servers[i].String() < servers[j].String() })

		a.ident.Servers = servers
		a.ident.AppearsOnServers = len(servers)
		view[key] = a.ident
	}
	return view
}

// DetectDrift returns the accounts present in current but absent from
// baseline, compared by raw name. Drift detection runs against one server's
// own account list, so no normalization is applied. The result is sorted.
func DetectDrift(current, baseline []string) []string {
	expected := make(map[string]struct{}, len(baseline))
	for _, name := range baseline {
		expected[name] = struct{}{}
	}

	var manual []string
	seen := make(map[string]struct{}, len(current))
	for _, name := range current {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := expected[name]; !ok {
			manual = append(manual, name)
		}
	}
	sort.Strings(manual)
	return manual
}

// Security event types and severities raised by the identity subsystem.
const (
	EventManualUserDetected = "manual_user_detected"

	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// SecurityEvent records a policy violation discovered during scan
// reconciliation. Only an explicit admin resolve transitions it to resolved.
type SecurityEvent struct {
	EventID     uuid.UUID
	ServerID    uuid.UUID
	EventType   string
	Severity    string
	Username    string
	Description string
	Resolved    bool
	ResolvedAt  *time.Time
	CreatedAt   time.Time
}
