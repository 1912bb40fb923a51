package config

import (
	"os"
	"strconv"
	"strings"
)

// WorkersMode specifies how the UDP front-end's socket-worker count is
// determined.
type WorkersMode int

const (
	// WorkersAuto picks one worker pool per GOMAXPROCS.
	WorkersAuto WorkersMode = iota
	// WorkersFixed uses a specific worker count.
	WorkersFixed
)

// WorkerSetting represents the workers configuration.
type WorkerSetting struct {
	Mode  WorkersMode
	Value int
}

func (w WorkerSetting) String() string {
	if w.Mode == WorkersAuto {
		return "auto"
	}
	return strconv.Itoa(w.Value)
}

// ServerConfig contains front-end bind settings: one host, one port per
// transport, TLS material shared by DoT/DoH/DoQ.
type ServerConfig struct {
	Host        string        `yaml:"host"          mapstructure:"host"`
	UDPPort     int           `yaml:"udp_port"       mapstructure:"udp_port"`
	EnableTCP   bool          `yaml:"enable_tcp"     mapstructure:"enable_tcp"`
	EnableDoT   bool          `yaml:"enable_dot"     mapstructure:"enable_dot"`
	DoTPort     int           `yaml:"dot_port"       mapstructure:"dot_port"`
	EnableDoH   bool          `yaml:"enable_doh"     mapstructure:"enable_doh"`
	DoHPort     int           `yaml:"doh_port"       mapstructure:"doh_port"`
	EnableDoQ   bool          `yaml:"enable_doq"     mapstructure:"enable_doq"`
	DoQPort     int           `yaml:"doq_port"       mapstructure:"doq_port"`
	TLSCertFile string        `yaml:"tls_cert_file"  mapstructure:"tls_cert_file"`
	TLSKeyFile  string        `yaml:"tls_key_file"   mapstructure:"tls_key_file"`
	Workers     WorkerSetting `yaml:"-"              mapstructure:"-"`
	WorkersRaw  string        `yaml:"workers"        mapstructure:"workers"`
}

// CacheConfig mirrors spec.md §8's cache_ttl/cache_max_entries keys.
type CacheConfig struct {
	DefaultTTLSeconds int `yaml:"default_ttl_seconds" mapstructure:"default_ttl_seconds"`
	MaxEntries        int `yaml:"max_entries"         mapstructure:"max_entries"`
}

// UpstreamServerConfig is one statically-configured upstream resolver,
// seeded into the upstream manager at startup.
type UpstreamServerConfig struct {
	Name    string `yaml:"name"    mapstructure:"name"    json:"name"`
	Address string `yaml:"address" mapstructure:"address" json:"address"`
	Proto   string `yaml:"proto"   mapstructure:"proto"   json:"proto"` // udp, dot, doh, doq
	Weight  uint32 `yaml:"weight"  mapstructure:"weight"  json:"weight"`
}

// UpstreamConfig contains upstream DNS server settings.
type UpstreamConfig struct {
	Servers           []UpstreamServerConfig `yaml:"servers"               mapstructure:"servers"`
	TimeoutMS         int                    `yaml:"timeout_ms"            mapstructure:"timeout_ms"`
	MaxAttempts       int                    `yaml:"max_attempts"          mapstructure:"max_attempts"`
	Strategy          string                 `yaml:"strategy"              mapstructure:"strategy"`
	DisabledRecordRaw []string               `yaml:"disabled_record_types" mapstructure:"disabled_record_types"`
}

// RewriteRuleConfig is one statically-configured rewrite rule, seeded into
// the rewrite engine at startup (in addition to anything the snapshot store
// loads).
type RewriteRuleConfig struct {
	ID        int64  `yaml:"id"         mapstructure:"id"         json:"id"`
	Pattern   string `yaml:"pattern"    mapstructure:"pattern"    json:"pattern"`
	MatchType string `yaml:"match_type" mapstructure:"match_type" json:"match_type"`
	Action    string `yaml:"action"     mapstructure:"action"     json:"action"`
	IP        string `yaml:"ip"         mapstructure:"ip"         json:"ip,omitempty"`
	CNAME     string `yaml:"cname"      mapstructure:"cname"      json:"cname,omitempty"`
	Priority  int    `yaml:"priority"   mapstructure:"priority"   json:"priority"`
	Enabled   bool   `yaml:"enabled"    mapstructure:"enabled"    json:"enabled"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level            string            `yaml:"level"             mapstructure:"level"`
	Structured       bool              `yaml:"structured"        mapstructure:"structured"`
	StructuredFormat string            `yaml:"structured_format" mapstructure:"structured_format"`
	IncludePID       bool              `yaml:"include_pid"       mapstructure:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields"      mapstructure:"extra_fields"`
}

// RateLimitConfig holds the rate-limit settings read from YAML/env. The UDP
// front-end's limiter does not read them: cmd/hydradnsd builds it with
// server.NewRateLimiterFromEnv from the HYDRADNS_RL_* variables.
type RateLimitConfig struct {
	CleanupSeconds   float64 `yaml:"cleanup_seconds"    mapstructure:"cleanup_seconds"`
	MaxIPEntries     int     `yaml:"max_ip_entries"     mapstructure:"max_ip_entries"`
	MaxPrefixEntries int     `yaml:"max_prefix_entries" mapstructure:"max_prefix_entries"`
	GlobalQPS        float64 `yaml:"global_qps"         mapstructure:"global_qps"`
	GlobalBurst      int     `yaml:"global_burst"       mapstructure:"global_burst"`
	PrefixQPS        float64 `yaml:"prefix_qps"         mapstructure:"prefix_qps"`
	PrefixBurst      int     `yaml:"prefix_burst"       mapstructure:"prefix_burst"`
	IPQPS            float64 `yaml:"ip_qps"             mapstructure:"ip_qps"`
	IPBurst          int     `yaml:"ip_burst"           mapstructure:"ip_burst"`
}

// APIConfig contains management API settings.
//
// Note: APIKey is intentionally treated as a secret and should not be
// returned by API endpoints.
type APIConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Host    string `yaml:"host"    mapstructure:"host"`
	Port    int    `yaml:"port"    mapstructure:"port"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// SnapshotConfig controls the sqlite-backed rule/server persistence layer.
// The core pipeline always boots correctly with empty state; this is purely
// an embedding-level convenience (spec.md §8, "Persisted state").
type SnapshotConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path"    mapstructure:"path"`
}

// AlertingConfig controls the webhook notifier that observes upstream
// health transitions.
type AlertingConfig struct {
	Enabled    bool   `yaml:"enabled"     mapstructure:"enabled"`
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig        `yaml:"server"     mapstructure:"server"`
	Cache     CacheConfig         `yaml:"cache"      mapstructure:"cache"`
	Upstream  UpstreamConfig      `yaml:"upstream"   mapstructure:"upstream"`
	Rewrite   []RewriteRuleConfig `yaml:"rewrite"    mapstructure:"rewrite"`
	Logging   LoggingConfig       `yaml:"logging"    mapstructure:"logging"`
	RateLimit RateLimitConfig     `yaml:"rate_limit" mapstructure:"rate_limit"`
	API       APIConfig           `yaml:"api"        mapstructure:"api"`
	Snapshot  SnapshotConfig      `yaml:"snapshot"   mapstructure:"snapshot"`
	Alerting  AlertingConfig      `yaml:"alerting"   mapstructure:"alerting"`
}

// ResolveConfigPath determines the config file path from flag or environment.
func ResolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv("HYDRADNS_CONFIG")); v != "" {
		return v
	}
	return ""
}

// Load loads configuration from a YAML file with environment variable
// overrides.
//
// Configuration priority (highest to lowest):
//  1. Environment variables (HYDRADNS_*)
//  2. Config file values
//  3. Default values
func Load(path string) (*Config, error) {
	return loadFromSource(path)
}
