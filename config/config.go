// Package config loads the controller configuration: host tables, instrument
// lists, monitor entry points and launch throttling.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/koa-ops/monctl/pkg/x_log"
	"github.com/koa-ops/monctl/registry"
)

// EnvConfigPath names the config file when --config is not given.
const EnvConfigPath = "MONCTL_CONFIG"

// Config holds all controller settings. The monitor daemons themselves are
// configured elsewhere; only their entry points appear here.
type Config struct {
	// MonitorCmd and MonitorDRPCmd are the interpreter command lines the
	// controller appends an instrument name to. The script path is also the
	// process-table signature for the class, so the two must stay textually
	// distinguishable.
	MonitorCmd    string `json:"monitor_cmd"`
	MonitorDRPCmd string `json:"monitor_drp_cmd"`

	// LogDir receives the per-instrument append-only monitor logs.
	LogDir string `json:"log_dir"`

	// LaunchDelaySec is the fixed wait after every launch attempt, bounding
	// simultaneous monitor startups on the host.
	LaunchDelaySec int `json:"launch_delay_sec"`

	Hosts  map[string]registry.ServerRole             `json:"hosts"`
	Roles  map[registry.ServerRole]registry.RoleLists `json:"roles"`
	Logger x_log.Config                               `json:"logger"`
}

// Default returns the shipped deployment configuration.
func Default() *Config {
	return &Config{
		MonitorCmd:     "kpython3 /usr/local/koa/dep/monitor.py",
		MonitorDRPCmd:  "kpython3 /usr/local/koa/dep/monitor_drp.py",
		LogDir:         "/usr/local/koa/log",
		LaunchDelaySec: 5,
		Hosts: map[string]registry.ServerRole{
			"vm-koaserver1": registry.RoleServer1,
			"vm-koaserver2": registry.RoleServer2,
			"vm-koadev":     registry.RoleDev,
		},
		Roles: map[registry.ServerRole]registry.RoleLists{
			registry.RoleServer1: {
				RawBase: []string{"deimos", "esi", "hires", "lris", "lris_blue", "mosfire"},
				DRPBase: []string{"deimos", "esi", "hires", "mosfire"},
			},
			registry.RoleServer2: {
				RawBase: []string{"kcwi_blue", "kcwi_red", "kpf", "nirc2", "nires", "nirspec", "osiris"},
				DRPBase: []string{"kcwi_blue", "kcwi_red", "kpf", "nires", "osiris"},
			},
		},
		Logger: x_log.Config{
			Level:     "info",
			ToConsole: true,
		},
	}
}

// Load loads config from file, expanding ${VAR} references from the
// environment first. Scalar fields left out of the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	data = replaceEnvVars(data)

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config json: %w", err)
	}

	cfg := Default()
	if err := cfg.parseFields(raw); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseFields merges the raw JSON map over the defaults.
func (c *Config) parseFields(raw map[string]any) error {
	if v, ok := raw["monitor_cmd"].(string); ok {
		c.MonitorCmd = v
	}
	if v, ok := raw["monitor_drp_cmd"].(string); ok {
		c.MonitorDRPCmd = v
	}
	if v, ok := raw["log_dir"].(string); ok {
		c.LogDir = v
	}
	if v, ok := raw["launch_delay_sec"].(float64); ok {
		c.LaunchDelaySec = int(v)
	}
	if v, ok := raw["hosts"]; ok {
		hosts := map[string]registry.ServerRole{}
		if err := mapstructure.Decode(v, &hosts); err != nil {
			return fmt.Errorf("parse hosts table: %w", err)
		}
		c.Hosts = hosts
	}
	if v, ok := raw["roles"]; ok {
		roles := map[registry.ServerRole]registry.RoleLists{}
		if err := mapstructure.Decode(v, &roles); err != nil {
			return fmt.Errorf("parse role tables: %w", err)
		}
		// merge per role so narrowing one role keeps the other's defaults
		for role, lists := range roles {
			c.Roles[role] = lists
		}
	}
	if v, ok := raw["logger"]; ok {
		if err := mapstructure.Decode(v, &c.Logger); err != nil {
			return fmt.Errorf("parse logger block: %w", err)
		}
	}
	return nil
}

// LoadWithFallback loads from path when given, else from the file named by
// MONCTL_CONFIG, else the shipped defaults. Env overrides apply either way.
func LoadWithFallback(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	var cfg *Config
	if path != "" {
		loaded, err := Load(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = Default()
	}
	cfg.applyEnv("MONCTL_")
	return cfg, nil
}

// applyEnv overrides scalar settings from environment variables.
func (c *Config) applyEnv(prefix string) {
	c.MonitorCmd = getenvStr(prefix+"MONITOR_CMD", c.MonitorCmd)
	c.MonitorDRPCmd = getenvStr(prefix+"MONITOR_DRP_CMD", c.MonitorDRPCmd)
	c.LogDir = getenvStr(prefix+"LOG_DIR", c.LogDir)
	c.LaunchDelaySec = getenvInt(prefix+"LAUNCH_DELAY_SEC", c.LaunchDelaySec)
	c.Logger.Level = getenvStr(prefix+"LOG_LEVEL", c.Logger.Level)
}

// LaunchDelay returns the inter-launch throttle as a duration.
func (c *Config) LaunchDelay() time.Duration {
	return time.Duration(c.LaunchDelaySec) * time.Second
}

// Registry builds the immutable instrument registry from the tables.
func (c *Config) Registry() (*registry.Registry, error) {
	return registry.New(c.Hosts, c.Roles)
}

// Validate rejects configurations the controller cannot act on.
func (c *Config) Validate() error {
	if c.MonitorCmd == "" {
		return errors.New("config: monitor_cmd must not be empty")
	}
	if c.MonitorDRPCmd == "" {
		return errors.New("config: monitor_drp_cmd must not be empty")
	}
	if c.LogDir == "" {
		return errors.New("config: log_dir must not be empty")
	}
	if c.LaunchDelaySec < 0 {
		return errors.New("config: launch_delay_sec must not be negative")
	}
	if len(c.Hosts) == 0 {
		return errors.New("config: hosts table must not be empty")
	}
	return nil
}
