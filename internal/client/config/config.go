package config

import "time"

// Config holds runtime settings for the NoteLock CLI.
//
// Fields:
//   - ServerEndpointAddr: base URL of the backend HTTP API.
//   - KeyStoreDSN: SQLite DSN of the local key cache.
//   - ExportEndpointAddr: URL of the HTML-to-PDF rendering service.
//   - RequestTimeout: per-request timeout applied to backend calls.
type Config struct {
	ServerEndpointAddr string
	KeyStoreDSN        string
	ExportEndpointAddr string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.KeyStoreDSN = "notelock.db"
	c.ExportEndpointAddr = "http://127.0.0.1:8090/render"
	c.RequestTimeout = 15 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
