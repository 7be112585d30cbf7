package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/viralforge/dbfleet/internal/domain"
)

// GroupRoleMapping binds one directory group to one application role.
// Mappings keep their configured order; the first group a principal belongs
// to decides the role.
type GroupRoleMapping struct {
	Group string
	Role  string
}

// Config is the resolved runtime configuration. It merges file defaults and
// environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int32

	PBKDF2Iterations int
	FailedThreshold  int
	LockoutDuration  time.Duration
	SessionTTL       time.Duration
	DefaultRole      string

	BootstrapUsername string
	BootstrapPassword string

	SessionSweepInterval time.Duration

	DirectoryEnabled         bool
	DirectoryServer          string
	DirectoryPort            int
	DirectoryUseTLS          bool
	DirectoryBindDN          string
	DirectoryBindPassword    string
	DirectoryBaseDN          string
	DirectoryUserFilter      string
	DirectoryGroupFilter     string
	DirectoryUserSearchBase  string
	DirectoryGroupSearchBase string
	DirectoryUsernameAttr    string
	DirectoryTimeout         time.Duration
	DirectoryCacheTTL        time.Duration
	DirectoryDefaultRole     string
	DirectoryGroupRoles      []GroupRoleMapping
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Auth struct {
		SessionHours         int    `yaml:"session_hours"`
		FailedLoginThreshold int    `yaml:"failed_login_threshold"`
		LockoutMinutes       int    `yaml:"lockout_minutes"`
		DefaultRole          string `yaml:"default_role"`
		PBKDF2Iterations     int    `yaml:"pbkdf2_iterations"`
		BootstrapUsername    string `yaml:"bootstrap_username"`
		BootstrapPassword    string `yaml:"bootstrap_password"`
	} `yaml:"auth"`
	Directory struct {
		Enabled         bool   `yaml:"enabled"`
		Server          string `yaml:"server"`
		Port            int    `yaml:"port"`
		UseTLS          bool   `yaml:"use_tls"`
		BindDN          string `yaml:"bind_dn"`
		BindPassword    string `yaml:"bind_password"`
		BaseDN          string `yaml:"base_dn"`
		UserFilter      string `yaml:"user_filter"`
		GroupFilter     string `yaml:"group_filter"`
		UserSearchBase  string `yaml:"user_search_base"`
		GroupSearchBase string `yaml:"group_search_base"`
		UsernameAttr    string `yaml:"username_attribute"`
		TimeoutSeconds  int    `yaml:"timeout_seconds"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
		DefaultRole     string `yaml:"default_role"`
		GroupRoles      []struct {
			Group string `yaml:"group"`
			Role  string `yaml:"role"`
		} `yaml:"group_roles"`
	} `yaml:"directory"`
	Maintenance struct {
		SessionSweepSeconds int `yaml:"session_sweep_seconds"`
	} `yaml:"maintenance"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:            "dbfleet-iam",
		HTTPPort:             8080,
		GRPCPort:             9090,
		MaxDBConns:           20,
		PBKDF2Iterations:     100000,
		FailedThreshold:      5,
		LockoutDuration:      30 * time.Minute,
		SessionTTL:           8 * time.Hour,
		DefaultRole:          string(domain.RoleUser),
		SessionSweepInterval: 5 * time.Minute,
		DirectoryPort:        389,
		DirectoryTimeout:     10 * time.Second,
		DirectoryCacheTTL:    5 * time.Minute,
		DirectoryDefaultRole: string(domain.RoleUser),
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		applyFile(&cfg, f)
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.PBKDF2Iterations = envInt("PBKDF2_ITERATIONS", cfg.PBKDF2Iterations)
	cfg.FailedThreshold = envInt("FAILED_LOGIN_THRESHOLD", cfg.FailedThreshold)
	cfg.LockoutDuration = time.Duration(envInt("ACCOUNT_LOCKOUT_MINUTES", int(cfg.LockoutDuration.Minutes()))) * time.Minute
	cfg.SessionTTL = time.Duration(envInt("SESSION_EXPIRY_HOURS", int(cfg.SessionTTL.Hours()))) * time.Hour
	cfg.DefaultRole = envOrDefault("DEFAULT_ROLE", cfg.DefaultRole)
	cfg.BootstrapUsername = envOrDefault("BOOTSTRAP_ADMIN_USERNAME", cfg.BootstrapUsername)
	cfg.BootstrapPassword = envOrDefault("BOOTSTRAP_ADMIN_PASSWORD", cfg.BootstrapPassword)
	cfg.SessionSweepInterval = time.Duration(envInt("SESSION_SWEEP_SECONDS", int(cfg.SessionSweepInterval.Seconds()))) * time.Second

	cfg.DirectoryEnabled = envBool("LDAP_ENABLED", cfg.DirectoryEnabled)
	cfg.DirectoryServer = envOrDefault("LDAP_SERVER", cfg.DirectoryServer)
	cfg.DirectoryPort = envInt("LDAP_PORT", cfg.DirectoryPort)
	cfg.DirectoryUseTLS = envBool("LDAP_USE_TLS", cfg.DirectoryUseTLS)
	cfg.DirectoryBindDN = envOrDefault("LDAP_BIND_DN", cfg.DirectoryBindDN)
	cfg.DirectoryBindPassword = envOrDefault("LDAP_BIND_PASSWORD", cfg.DirectoryBindPassword)
	cfg.DirectoryBaseDN = envOrDefault("LDAP_BASE_DN", cfg.DirectoryBaseDN)
	cfg.DirectoryUserFilter = envOrDefault("LDAP_USER_FILTER", cfg.DirectoryUserFilter)
	cfg.DirectoryGroupFilter = envOrDefault("LDAP_GROUP_FILTER", cfg.DirectoryGroupFilter)
	cfg.DirectoryUserSearchBase = envOrDefault("LDAP_USER_SEARCH_BASE", cfg.DirectoryUserSearchBase)
	cfg.DirectoryGroupSearchBase = envOrDefault("LDAP_GROUP_SEARCH_BASE", cfg.DirectoryGroupSearchBase)
	cfg.DirectoryUsernameAttr = envOrDefault("LDAP_USERNAME_ATTRIBUTE", cfg.DirectoryUsernameAttr)
	cfg.DirectoryTimeout = time.Duration(envInt("LDAP_TIMEOUT_SECONDS", int(cfg.DirectoryTimeout.Seconds()))) * time.Second
	cfg.DirectoryCacheTTL = time.Duration(envInt("LDAP_CACHE_TTL_SECONDS", int(cfg.DirectoryCacheTTL.Seconds()))) * time.Second
	cfg.DirectoryDefaultRole = envOrDefault("LDAP_DEFAULT_ROLE", cfg.DirectoryDefaultRole)
	if mappings, ok := envGroupRoles("LDAP_GROUP_ROLES"); ok {
		cfg.DirectoryGroupRoles = mappings
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if f.Auth.SessionHours > 0 {
		cfg.SessionTTL = time.Duration(f.Auth.SessionHours) * time.Hour
	}
	if f.Auth.FailedLoginThreshold > 0 {
		cfg.FailedThreshold = f.Auth.FailedLoginThreshold
	}
	if f.Auth.LockoutMinutes > 0 {
		cfg.LockoutDuration = time.Duration(f.Auth.LockoutMinutes) * time.Minute
	}
	if f.Auth.DefaultRole != "" {
		cfg.DefaultRole = f.Auth.DefaultRole
	}
	if f.Auth.PBKDF2Iterations > 0 {
		cfg.PBKDF2Iterations = f.Auth.PBKDF2Iterations
	}
	if f.Auth.BootstrapUsername != "" {
		cfg.BootstrapUsername = f.Auth.BootstrapUsername
	}
	if f.Auth.BootstrapPassword != "" {
		cfg.BootstrapPassword = f.Auth.BootstrapPassword
	}
	if f.Maintenance.SessionSweepSeconds > 0 {
		cfg.SessionSweepInterval = time.Duration(f.Maintenance.SessionSweepSeconds) * time.Second
	}

	cfg.DirectoryEnabled = f.Directory.Enabled
	if f.Directory.Server != "" {
		cfg.DirectoryServer = f.Directory.Server
	}
	if f.Directory.Port > 0 {
		cfg.DirectoryPort = f.Directory.Port
	}
	cfg.DirectoryUseTLS = f.Directory.UseTLS
	if f.Directory.BindDN != "" {
		cfg.DirectoryBindDN = f.Directory.BindDN
	}
	if f.Directory.BindPassword != "" {
		cfg.DirectoryBindPassword = f.Directory.BindPassword
	}
	if f.Directory.BaseDN != "" {
		cfg.DirectoryBaseDN = f.Directory.BaseDN
	}
	if f.Directory.UserFilter != "" {
		cfg.DirectoryUserFilter = f.Directory.UserFilter
	}
	if f.Directory.GroupFilter != "" {
		cfg.DirectoryGroupFilter = f.Directory.GroupFilter
	}
	if f.Directory.UserSearchBase != "" {
		cfg.DirectoryUserSearchBase = f.Directory.UserSearchBase
	}
	if f.Directory.GroupSearchBase != "" {
		cfg.DirectoryGroupSearchBase = f.Directory.GroupSearchBase
	}
	if f.Directory.UsernameAttr != "" {
		cfg.DirectoryUsernameAttr = f.Directory.UsernameAttr
	}
	if f.Directory.TimeoutSeconds > 0 {
		cfg.DirectoryTimeout = time.Duration(f.Directory.TimeoutSeconds) * time.Second
	}
	if f.Directory.CacheTTLSeconds > 0 {
		cfg.DirectoryCacheTTL = time.Duration(f.Directory.CacheTTLSeconds) * time.Second
	}
	if f.Directory.DefaultRole != "" {
		cfg.DirectoryDefaultRole = f.Directory.DefaultRole
	}
	if len(f.Directory.GroupRoles) > 0 {
		mappings := make([]GroupRoleMapping, 0, len(f.Directory.GroupRoles))
		for _, m := range f.Directory.GroupRoles {
			mappings = append(mappings, GroupRoleMapping{Group: m.Group, Role: m.Role})
		}
		cfg.DirectoryGroupRoles = mappings
	}
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if c.FailedThreshold <= 0 {
		return fmt.Errorf("failed login threshold must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if !domain.ValidRole(domain.Role(c.DefaultRole)) {
		return fmt.Errorf("unknown default role %q", c.DefaultRole)
	}
	if !domain.ValidRole(domain.Role(c.DirectoryDefaultRole)) {
		return fmt.Errorf("unknown directory default role %q", c.DirectoryDefaultRole)
	}
	for _, m := range c.DirectoryGroupRoles {
		if m.Group == "" {
			return fmt.Errorf("directory group mapping with empty group")
		}
		if !domain.ValidRole(domain.Role(m.Role)) {
			return fmt.Errorf("unknown role %q for directory group %q", m.Role, m.Group)
		}
	}
	if c.DirectoryEnabled {
		if c.DirectoryServer == "" {
			return fmt.Errorf("directory enabled but no server configured")
		}
		if c.DirectoryBaseDN == "" {
			return fmt.Errorf("directory enabled but no base_dn configured")
		}
	}
	if (c.BootstrapUsername == "") != (c.BootstrapPassword == "") {
		return fmt.Errorf("bootstrap admin requires both username and password")
	}
	return nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envGroupRoles parses "group:role" pairs from a comma-separated env var.
// Malformed segments are skipped rather than failing startup; validation
// catches unknown role names afterwards.
func envGroupRoles(name string) ([]GroupRoleMapping, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return nil, false
	}
	mappings := make([]GroupRoleMapping, 0)
	for _, part := range strings.Split(raw, ",") {
		group, role, found := strings.Cut(strings.TrimSpace(part), ":")
		if !found || group == "" || role == "" {
			continue
		}
		mappings = append(mappings, GroupRoleMapping{Group: group, Role: role})
	}
	return mappings, true
}
