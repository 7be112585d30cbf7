package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/viralforge/dbfleet/internal/domain"
	"github.com/viralforge/dbfleet/internal/ports"
)

// Config is the connection and search surface for the external directory.
// UserFilter is a class filter; user lookups compose it with UsernameAttr.
type Config struct {
	Server          string
	Port            int
	UseTLS          bool
	BindDN          string
	BindPassword    string
	BaseDN          string
	UserFilter      string
	GroupFilter     string
	UserSearchBase  string
	GroupSearchBase string
	UsernameAttr    string
	DisplayNameAttr string
	EmailAttr       string
	GroupAttr       string
	Timeout         time.Duration
	CacheTTL        time.Duration
}

func (c Config) url() string {
	scheme := "ldap"
	if c.UseTLS {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Server, c.Port)
}

func (c Config) userBase() string {
	if c.UserSearchBase != "" {
		return c.UserSearchBase
	}
	return c.BaseDN
}

func (c Config) groupBase() string {
	if c.GroupSearchBase != "" {
		return c.GroupSearchBase
	}
	return c.BaseDN
}

// ldapConn is the subset of *ldap.Conn this adapter uses; tests substitute a
// fake through the dial hook.
type ldapConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// LDAPDirectory implements ports.DirectoryService over an LDAP-compatible
// directory. Every operation dials a fresh connection bounded by the
// configured timeout; nothing is shared across calls.
type LDAPDirectory struct {
	cfg    Config
	cache  ports.IdentityCache
	logger *slog.Logger
	dialFn func() (ldapConn, error)
}

// NewLDAPDirectory builds the directory adapter. cache may be nil; lookups
// then always hit the directory.
func NewLDAPDirectory(cfg Config, cache ports.IdentityCache, logger *slog.Logger) *LDAPDirectory {
	if cfg.UserFilter == "" {
		cfg.UserFilter = "(objectClass=person)"
	}
	if cfg.GroupFilter == "" {
		cfg.GroupFilter = "(objectClass=group)"
	}
	if cfg.UsernameAttr == "" {
		cfg.UsernameAttr = "sAMAccountName"
	}
	if cfg.DisplayNameAttr == "" {
		cfg.DisplayNameAttr = "displayName"
	}
	if cfg.EmailAttr == "" {
		cfg.EmailAttr = "mail"
	}
	if cfg.GroupAttr == "" {
		cfg.GroupAttr = "memberOf"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &LDAPDirectory{cfg: cfg, cache: cache, logger: logger}
	d.dialFn = func() (ldapConn, error) {
		var opts []ldap.DialOpt
		if cfg.UseTLS {
			opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{ServerName: cfg.Server}))
		}
		conn, err := ldap.DialURL(cfg.url(), opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
		}
		conn.SetTimeout(cfg.Timeout)
		return conn, nil
	}
	return d
}

// TestConnection dials and binds with the service credentials. The message
// is operator-facing diagnostics, not an error value.
func (d *LDAPDirectory) TestConnection(ctx context.Context) (bool, string) {
	if err := ctx.Err(); err != nil {
		return false, err.Error()
	}
	conn, err := d.dialFn()
	if err != nil {
		return false, fmt.Sprintf("connect failed: %v", err)
	}
	defer conn.Close()

	if err := conn.Bind(d.cfg.BindDN, d.cfg.BindPassword); err != nil {
		return false, fmt.Sprintf("bind failed: %v", err)
	}
	return true, "connection successful"
}

// Authenticate locates the user with the service credentials, then binds as
// the user. Not-located and wrong-password both come back (false, nil, nil)
// so callers cannot tell them apart. A non-nil error means the directory
// itself could not be reached.
func (d *LDAPDirectory) Authenticate(ctx context.Context, username, password string) (bool, *domain.DirectoryIdentity, error) {
	if password == "" {
		return false, nil, nil
	}

	identity, err := d.searchUser(ctx, username)
	if err != nil {
		return false, nil, err
	}
	if identity == nil {
		return false, nil, nil
	}

	conn, err := d.dialFn()
	if err != nil {
		return false, nil, err
	}
	defer conn.Close()

	if err := conn.Bind(identity.DN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("%w: user bind: %v", domain.ErrDirectoryUnavailable, err)
	}
	return true, identity, nil
}

// LookupUser returns (nil, nil) when no entry matches. Results are served
// from the identity cache when one is configured; cache failures degrade to
// a directory search.
func (d *LDAPDirectory) LookupUser(ctx context.Context, username string) (*domain.DirectoryIdentity, error) {
	if d.cache != nil {
		if cached, err := d.cache.Get(ctx, username); err == nil && cached != nil {
			return cached, nil
		}
	}

	identity, err := d.searchUser(ctx, username)
	if err != nil || identity == nil {
		return identity, err
	}

	if d.cache != nil && d.cfg.CacheTTL > 0 {
		if err := d.cache.Put(ctx, username, *identity, d.cfg.CacheTTL); err != nil {
			d.logger.WarnContext(ctx, "identity cache write failed",
				"module", "directory",
				"layer", "adapter",
				"operation", "lookup_user",
				"outcome", "degraded",
				"error", err.Error(),
			)
		}
	}
	return identity, nil
}

// ListUsers returns every entry matching the configured user filter.
func (d *LDAPDirectory) ListUsers(ctx context.Context) ([]domain.DirectoryIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}
	conn, err := d.bindServiceConn()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	res, err := conn.Search(d.userSearchRequest(d.cfg.UserFilter))
	if err != nil {
		return nil, fmt.Errorf("%w: search users: %v", domain.ErrDirectoryUnavailable, err)
	}

	users := make([]domain.DirectoryIdentity, 0, len(res.Entries))
	for _, entry := range res.Entries {
		if identity := d.parseEntry(entry); identity != nil {
			users = append(users, *identity)
		}
	}
	return users, nil
}

// GroupsOf resolves group names for a member DN via a group search. It
// covers directories whose user entries do not carry a membership attribute.
func (d *LDAPDirectory) GroupsOf(ctx context.Context, dn string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}
	conn, err := d.bindServiceConn()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	filter := fmt.Sprintf("(&%s(member=%s))", d.cfg.GroupFilter, ldap.EscapeFilter(dn))
	req := ldap.NewSearchRequest(
		d.cfg.groupBase(),
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter,
		[]string{"cn"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search groups: %v", domain.ErrDirectoryUnavailable, err)
	}

	groups := make([]string, 0, len(res.Entries))
	for _, entry := range res.Entries {
		name := entry.GetAttributeValue("cn")
		if name == "" {
			name = extractCN(entry.DN)
		}
		if name != "" {
			groups = append(groups, name)
		}
	}
	return groups, nil
}

func (d *LDAPDirectory) searchUser(ctx context.Context, username string) (*domain.DirectoryIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}
	conn, err := d.bindServiceConn()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	filter := fmt.Sprintf("(&%s(%s=%s))", d.cfg.UserFilter, d.cfg.UsernameAttr, ldap.EscapeFilter(username))
	res, err := conn.Search(d.userSearchRequest(filter))
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: search user: %v", domain.ErrDirectoryUnavailable, err)
	}
	if len(res.Entries) == 0 {
		return nil, nil
	}
	return d.parseEntry(res.Entries[0]), nil
}

func (d *LDAPDirectory) bindServiceConn() (ldapConn, error) {
	conn, err := d.dialFn()
	if err != nil {
		return nil, err
	}
	if err := conn.Bind(d.cfg.BindDN, d.cfg.BindPassword); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: service bind: %v", domain.ErrDirectoryUnavailable, err)
	}
	return conn, nil
}

func (d *LDAPDirectory) userSearchRequest(filter string) *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		d.cfg.userBase(),
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter,
		[]string{d.cfg.UsernameAttr, d.cfg.DisplayNameAttr, d.cfg.EmailAttr, d.cfg.GroupAttr},
		nil,
	)
}
