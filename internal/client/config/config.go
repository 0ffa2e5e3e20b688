package config

import "time"

// Config holds runtime settings for the medaccount CLI.
type Config struct {
	ServerEndpointAddr string
	StateDBPath        string
	RequestTimeout     time.Duration
	Location           string
	UserAgent          string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.StateDBPath = "medaccount.db"
	c.RequestTimeout = 10 * time.Second
	c.Location = ""
	c.UserAgent = "medaccount-cli (Desktop)"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file (if present) and command-line flags (if present). Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
