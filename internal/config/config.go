// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/f1-proxy/config.toml",
	"configs/config.toml",
}

// Canonical upstream base URLs, used when the config leaves them unset.
const (
	DefaultFlowershopURL = "https://flowershop.f1-commerce.com/api/"
	DefaultCartURL       = "https://cart.f1-commerce.com/api/"
	DefaultTreeURL       = "https://tree.f1-commerce.com/api/"
)

// DefaultOrigins is the origin allowlist used when none is configured.
// The first entry doubles as the fallback Access-Control-Allow-Origin value.
const DefaultOrigins = "http://localhost:5173"

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config     string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host       string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port       int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	F1Key      string `kong:"help='F1 API key (overrides config).',env='F1_API_KEY'"`
	F1Password string `kong:"help='F1 API password (overrides config).',env='F1_API_PASSWORD'"`
	Origins    string `kong:"help='Comma-separated CORS origin allowlist (overrides config).',env='CORS_ORIGINS'"`
	LogLevel   string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	F1       F1Config       `toml:"f1"`
	Upstream UpstreamConfig `toml:"upstream"`
	CORS     CORSConfig     `toml:"cors"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8080); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// F1Config holds the server-side Basic-Auth credentials for the F1 API.
// Both fields are required for forwarding and have no default; a missing
// key or password surfaces as a per-request 500, not a boot failure.
type F1Config struct {
	Key      string `toml:"key"`
	Password string `toml:"password"`
}

// UpstreamConfig holds the selectable upstream base URLs and connection settings.
type UpstreamConfig struct {
	FlowershopURL   string `toml:"flowershop_url"`
	CartURL         string `toml:"cart_url"`
	TreeURL         string `toml:"tree_url"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	IdleConnections int    `toml:"idle_connections"`
}

// CORSConfig holds the comma-separated origin allowlist.
type CORSConfig struct {
	Origins string `toml:"origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/f1-proxy/config.toml then configs/config.toml. The file itself is
// optional: every other field has a default, and the credentials may arrive
// via F1_API_KEY / F1_API_PASSWORD.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.normalizeUpstreams()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.F1Key != "" {
		c.F1.Key = cli.F1Key
	}
	if cli.F1Password != "" {
		c.F1.Password = cli.F1Password
	}
	if cli.Origins != "" {
		c.CORS.Origins = cli.Origins
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key. Credentials are
// never defaulted.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Upstream.FlowershopURL == "" {
		c.Upstream.FlowershopURL = DefaultFlowershopURL
	}
	if c.Upstream.CartURL == "" {
		c.Upstream.CartURL = DefaultCartURL
	}
	if c.Upstream.TreeURL == "" {
		c.Upstream.TreeURL = DefaultTreeURL
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.CORS.Origins == "" {
		c.CORS.Origins = DefaultOrigins
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	for name, raw := range c.upstreamURLs() {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("upstream.%s_url is not a valid URL: %w", name, err)
		}
		if u.Host == "" {
			return fmt.Errorf("upstream.%s_url has no host; got %q", name, raw)
		}
		// Plain HTTP is only tolerated for loopback targets (dev, tests).
		if u.Scheme != "https" && !isLoopback(u.Hostname()) {
			return fmt.Errorf("upstream.%s_url must use HTTPS; got %q", name, raw)
		}
	}

	if len(c.Origins()) == 0 {
		return fmt.Errorf("cors.origins must list at least one origin")
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/proxy", "/healthz", "/statusz"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// normalizeUpstreams forces every base URL to end with a path separator so
// the proxied path suffix can be appended verbatim.
func (c *Config) normalizeUpstreams() {
	c.Upstream.FlowershopURL = ensureTrailingSlash(c.Upstream.FlowershopURL)
	c.Upstream.CartURL = ensureTrailingSlash(c.Upstream.CartURL)
	c.Upstream.TreeURL = ensureTrailingSlash(c.Upstream.TreeURL)
}

func ensureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func (c *Config) upstreamURLs() map[string]string {
	return map[string]string{
		"flowershop": c.Upstream.FlowershopURL,
		"cart":       c.Upstream.CartURL,
		"tree":       c.Upstream.TreeURL,
	}
}

// Upstreams returns the selector → base URL mapping.
func (c *Config) Upstreams() map[string]string {
	return c.upstreamURLs()
}

// Origins returns the parsed origin allowlist, order preserved.
// The first entry is the fallback allow-origin for unlisted callers.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORS.Origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
