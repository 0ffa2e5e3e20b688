package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/medaccount/internal/flagx"
	"github.com/dmitrijs2005/medaccount/internal/timex"
	"gopkg.in/yaml.v2"
)

// FileConfig is a DTO used exclusively for file unmarshalling.
type FileConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	StateDBPath        string         `json:"state_db_path" yaml:"state_db_path"`
	RequestTimeout     timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	Location           string         `json:"location" yaml:"location"`
	UserAgent          string         `json:"user_agent" yaml:"user_agent"`
}

// parseFile overlays Config with values from the file named by -c or
// -config. YAML is used for .yaml/.yml files, JSON otherwise. Read or
// unmarshal errors panic.
func parseFile(cfg *Config) {
	configFile := flagx.ConfigFileFlag(os.Args[1:])
	if configFile == "" {
		return
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	if fc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = fc.ServerEndpointAddr
	}
	if fc.StateDBPath != "" {
		cfg.StateDBPath = fc.StateDBPath
	}
	if fc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.Location != "" {
		cfg.Location = fc.Location
	}
	if fc.UserAgent != "" {
		cfg.UserAgent = fc.UserAgent
	}
}
