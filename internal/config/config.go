// Package config provides configuration loading and validation for HydraDNS.
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Command-line flags (not handled here, see cmd/hydradnsd/main.go)
//  2. Environment variables (HYDRADNS_* prefix)
//  3. YAML config file (if specified with --config)
//  4. Hardcoded defaults
//
// Environment variables are mapped from HYDRADNS_CATEGORY_SETTING format,
// e.g., HYDRADNS_SERVER_HOST maps to server.host in YAML.
//
// All configuration is validated during Load() to ensure correctness early.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// initConfig sets up the config loader with defaults, env binding, and config file.
func initConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	// HYDRADNS_SERVER_HOST -> server.host
	v.SetEnvPrefix("HYDRADNS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// setDefaults configures all default values, matching spec.md §8's
// recognized-configuration table.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.udp_port", 1053)
	v.SetDefault("server.enable_tcp", true)
	v.SetDefault("server.enable_dot", false)
	v.SetDefault("server.dot_port", 1853)
	v.SetDefault("server.enable_doh", false)
	v.SetDefault("server.doh_port", 1443)
	v.SetDefault("server.enable_doq", false)
	v.SetDefault("server.doq_port", 1853)
	v.SetDefault("server.workers", "auto")

	v.SetDefault("cache.default_ttl_seconds", 60)
	v.SetDefault("cache.max_entries", 10000)

	v.SetDefault("upstream.servers", []UpstreamServerConfig{{Name: "google", Address: "8.8.8.8:53", Proto: "udp", Weight: 1}})
	v.SetDefault("upstream.timeout_ms", 5000)
	v.SetDefault("upstream.max_attempts", 3)
	v.SetDefault("upstream.strategy", "round_robin")
	v.SetDefault("upstream.disabled_record_types", []string{})

	v.SetDefault("rewrite", []RewriteRuleConfig{})

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.structured", false)
	v.SetDefault("logging.structured_format", "json")
	v.SetDefault("logging.include_pid", false)
	v.SetDefault("logging.extra_fields", map[string]string{})

	v.SetDefault("rate_limit.cleanup_seconds", 60.0)
	v.SetDefault("rate_limit.max_ip_entries", 65536)
	v.SetDefault("rate_limit.max_prefix_entries", 16384)
	v.SetDefault("rate_limit.global_qps", 100000.0)
	v.SetDefault("rate_limit.global_burst", 100000)
	v.SetDefault("rate_limit.prefix_qps", 10000.0)
	v.SetDefault("rate_limit.prefix_burst", 20000)
	v.SetDefault("rate_limit.ip_qps", 5000.0)
	v.SetDefault("rate_limit.ip_burst", 10000)

	// Default to disabled and bound to localhost for safety.
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.api_key", "")

	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.path", "hydradns.db")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.webhook_url", "")
}

// loadFromSource loads configuration from file and environment.
func loadFromSource(configPath string) (*Config, error) {
	v, err := initConfig(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	loadServerConfig(v, cfg)
	loadCacheConfig(v, cfg)
	loadUpstreamConfig(v, cfg)
	loadRewriteConfig(v, cfg)
	loadLoggingConfig(v, cfg)
	loadAPIConfig(v, cfg)
	loadRateLimitConfig(v, cfg)
	loadSnapshotConfig(v, cfg)
	loadAlertingConfig(v, cfg)

	if err := normalizeConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadServerConfig(v *viper.Viper, cfg *Config) {
	cfg.Server.Host = v.GetString("server.host")
	cfg.Server.UDPPort = v.GetInt("server.udp_port")
	cfg.Server.EnableTCP = v.GetBool("server.enable_tcp")
	cfg.Server.EnableDoT = v.GetBool("server.enable_dot")
	cfg.Server.DoTPort = v.GetInt("server.dot_port")
	cfg.Server.EnableDoH = v.GetBool("server.enable_doh")
	cfg.Server.DoHPort = v.GetInt("server.doh_port")
	cfg.Server.EnableDoQ = v.GetBool("server.enable_doq")
	cfg.Server.DoQPort = v.GetInt("server.doq_port")
	cfg.Server.TLSCertFile = v.GetString("server.tls_cert_file")
	cfg.Server.TLSKeyFile = v.GetString("server.tls_key_file")
	cfg.Server.WorkersRaw = v.GetString("server.workers")
	cfg.Server.Workers = parseWorkers(cfg.Server.WorkersRaw)
}

func loadCacheConfig(v *viper.Viper, cfg *Config) {
	cfg.Cache.DefaultTTLSeconds = v.GetInt("cache.default_ttl_seconds")
	cfg.Cache.MaxEntries = v.GetInt("cache.max_entries")
}

func loadUpstreamConfig(v *viper.Viper, cfg *Config) {
	if err := v.UnmarshalKey("upstream.servers", &cfg.Upstream.Servers); err != nil || len(cfg.Upstream.Servers) == 0 {
		cfg.Upstream.Servers = nil
	}
	cfg.Upstream.TimeoutMS = v.GetInt("upstream.timeout_ms")
	cfg.Upstream.MaxAttempts = v.GetInt("upstream.max_attempts")
	cfg.Upstream.Strategy = v.GetString("upstream.strategy")
	cfg.Upstream.DisabledRecordRaw = getStringSliceOrSplit(v, "upstream.disabled_record_types")
}

func loadRewriteConfig(v *viper.Viper, cfg *Config) {
	if err := v.UnmarshalKey("rewrite", &cfg.Rewrite); err != nil {
		cfg.Rewrite = nil
	}
}

func loadLoggingConfig(v *viper.Viper, cfg *Config) {
	cfg.Logging.Level = strings.ToUpper(v.GetString("logging.level"))
	cfg.Logging.Structured = v.GetBool("logging.structured")
	cfg.Logging.StructuredFormat = v.GetString("logging.structured_format")
	cfg.Logging.IncludePID = v.GetBool("logging.include_pid")
	cfg.Logging.ExtraFields = v.GetStringMapString("logging.extra_fields")
}

func loadAPIConfig(v *viper.Viper, cfg *Config) {
	cfg.API.Enabled = v.GetBool("api.enabled")
	cfg.API.Host = v.GetString("api.host")
	cfg.API.Port = v.GetInt("api.port")
	cfg.API.APIKey = v.GetString("api.api_key")
}

func loadRateLimitConfig(v *viper.Viper, cfg *Config) {
	cfg.RateLimit.CleanupSeconds = v.GetFloat64("rate_limit.cleanup_seconds")
	cfg.RateLimit.MaxIPEntries = v.GetInt("rate_limit.max_ip_entries")
	cfg.RateLimit.MaxPrefixEntries = v.GetInt("rate_limit.max_prefix_entries")
	cfg.RateLimit.GlobalQPS = v.GetFloat64("rate_limit.global_qps")
	cfg.RateLimit.GlobalBurst = v.GetInt("rate_limit.global_burst")
	cfg.RateLimit.PrefixQPS = v.GetFloat64("rate_limit.prefix_qps")
	cfg.RateLimit.PrefixBurst = v.GetInt("rate_limit.prefix_burst")
	cfg.RateLimit.IPQPS = v.GetFloat64("rate_limit.ip_qps")
	cfg.RateLimit.IPBurst = v.GetInt("rate_limit.ip_burst")
}

func loadSnapshotConfig(v *viper.Viper, cfg *Config) {
	cfg.Snapshot.Enabled = v.GetBool("snapshot.enabled")
	cfg.Snapshot.Path = v.GetString("snapshot.path")
}

func loadAlertingConfig(v *viper.Viper, cfg *Config) {
	cfg.Alerting.Enabled = v.GetBool("alerting.enabled")
	cfg.Alerting.WebhookURL = v.GetString("alerting.webhook_url")
}

// parseWorkers converts the workers string to WorkerSetting.
func parseWorkers(raw string) WorkerSetting {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" || raw == "auto" {
		return WorkerSetting{Mode: WorkersAuto}
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return WorkerSetting{Mode: WorkersFixed, Value: n}
	}
	return WorkerSetting{Mode: WorkersAuto}
}

// getStringSliceOrSplit handles both slice and comma-separated string values.
func getStringSliceOrSplit(v *viper.Viper, key string) []string {
	if slice := v.GetStringSlice(key); len(slice) > 0 {
		result := make([]string, 0, len(slice))
		for _, s := range slice {
			if s = strings.TrimSpace(s); s != "" {
				result = append(result, s)
			}
		}
		return result
	}
	if s := v.GetString(key); s != "" {
		parts := strings.Split(s, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return nil
}

// normalizeConfig validates and normalizes the configuration.
func normalizeConfig(cfg *Config) error {
	if cfg.Server.UDPPort <= 0 || cfg.Server.UDPPort > 65535 {
		return errors.New("server.udp_port must be 1..65535")
	}

	if len(cfg.Upstream.Servers) == 0 {
		cfg.Upstream.Servers = []UpstreamServerConfig{{Name: "google", Address: "8.8.8.8:53", Proto: "udp", Weight: 1}}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "json"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}

	if cfg.API.Host == "" {
		cfg.API.Host = "127.0.0.1"
	}
	if cfg.API.Enabled {
		if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
			return errors.New("api.port must be 1..65535")
		}
	}

	if (cfg.Server.EnableDoT || cfg.Server.EnableDoH || cfg.Server.EnableDoQ) &&
		(cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "") {
		return errors.New("server.tls_cert_file and server.tls_key_file are required when DoT, DoH, or DoQ is enabled")
	}

	return nil
}
