// Package config loads and validates the shook server configuration.
package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"shook/internal/event"
	"shook/internal/security"
	"shook/pkg/cmdutil"
)

const (
	FileName = "shook.yaml"

	DefaultRemote            = "origin"
	DefaultBranch            = "main"
	DefaultPullTimeout       = 60
	DefaultRestartTimeout    = 60
	DefaultPreRestartTimeout = 300
	DefaultMaxPayloadBytes   = 25 << 20
	DefaultRateLimit         = 60
)

// ServerConfig is read once at startup and shared read-only afterwards.
type ServerConfig struct {
	Username          string       `yaml:"username"`
	RepoPath          string       `yaml:"repo_path"`
	Remote            string       `yaml:"remote"`
	Branch            string       `yaml:"branch"`
	SystemName        string       `yaml:"system_name"`
	UpdateEvents      []event.Kind `yaml:"update_events"`
	Addr              Addr         `yaml:"addr"`
	SocketGroup       string       `yaml:"socket_group,omitempty"`
	SocketUser        string       `yaml:"socket_user,omitempty"`
	PreRestartCommand string       `yaml:"pre_restart_command,omitempty"`

	PullTimeout        int   `yaml:"pull_timeout,omitempty"`
	RestartTimeout     int   `yaml:"restart_timeout,omitempty"`
	PreRestartTimeout  int   `yaml:"pre_restart_timeout,omitempty"`
	MaxPayloadBytes    int64 `yaml:"max_payload_bytes,omitempty"`
	RateLimitPerMinute *int  `yaml:"rate_limit_per_minute,omitempty"`
}

// Load reads path, applies defaults and validates the result.
func Load(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, rejecting unknown keys, and applies defaults. It does
// not validate.
func Parse(data []byte) (*ServerConfig, error) {
	var cfg ServerConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Save writes cfg to path with config file permissions.
func Save(path string, cfg *ServerConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := security.CreateSecureDir(filepath.Dir(path), security.PermDirectory); err != nil {
		return err
	}
	return security.WriteSecureFile(path, data, security.PermConfigFile)
}

// ApplyDefaults fills unset optional fields.
func (c *ServerConfig) ApplyDefaults() {
	if c.Remote == "" {
		c.Remote = DefaultRemote
	}
	if c.Branch == "" {
		c.Branch = DefaultBranch
	}
	if len(c.UpdateEvents) == 0 {
		c.UpdateEvents = []event.Kind{event.KindPush}
	}
	if c.PullTimeout == 0 {
		c.PullTimeout = DefaultPullTimeout
	}
	if c.RestartTimeout == 0 {
		c.RestartTimeout = DefaultRestartTimeout
	}
	if c.PreRestartTimeout == 0 {
		c.PreRestartTimeout = DefaultPreRestartTimeout
	}
	if c.MaxPayloadBytes == 0 {
		c.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
}

// Validate returns one line per problem; empty means valid.
func (c *ServerConfig) Validate() []string {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("  - "+format, args...))
	}

	if err := security.ValidateUsername(c.Username); err != nil {
		add("username: %v", err)
	}

	if c.RepoPath == "" {
		add("missing required 'repo_path' field")
	} else if _, err := security.SanitizePath(c.RepoPath); err != nil {
		add("repo_path: %v", err)
	} else if info, err := os.Stat(c.RepoPath); err != nil {
		add("repo_path: cannot stat '%s': %v", c.RepoPath, err)
	} else if !info.IsDir() {
		add("repo_path is not a directory: '%s'", c.RepoPath)
	} else if _, err := os.Stat(filepath.Join(c.RepoPath, ".git")); err != nil {
		add("repo_path is not a git repository (missing .git): '%s'", c.RepoPath)
	}

	if err := security.ValidateRemoteName(c.Remote); err != nil {
		add("remote: %v", err)
	}
	if err := security.ValidateBranchName(c.Branch); err != nil {
		add("branch: %v", err)
	}
	if err := security.ValidateServiceName(c.SystemName); err != nil {
		add("system_name: %v", err)
	}
	if len(c.UpdateEvents) == 0 {
		add("update_events must list at least one event")
	}

	if c.Addr.IsZero() {
		add("missing required 'addr' field")
	} else if c.Addr.IsUnix() && !filepath.IsAbs(c.Addr.Value) {
		add("addr: socket path must be absolute, got '%s'", c.Addr.Value)
	}
	if c.SocketUser != "" {
		if err := security.ValidateUsername(c.SocketUser); err != nil {
			add("socket_user: %v", err)
		}
	}
	if c.SocketGroup != "" {
		if err := security.ValidateUsername(c.SocketGroup); err != nil {
			add("socket_group: %v", err)
		}
	}

	if c.PreRestartCommand != "" {
		if _, err := cmdutil.ParseCommandString(c.PreRestartCommand); err != nil {
			add("pre_restart_command: %v", err)
		} else if security.ContainsShellMetachars(c.PreRestartCommand) {
			add("pre_restart_command is not run through a shell; wrap it as sh -c '...' to use shell syntax")
		}
	}

	for name, v := range map[string]int{
		"pull_timeout":        c.PullTimeout,
		"restart_timeout":     c.RestartTimeout,
		"pre_restart_timeout": c.PreRestartTimeout,
	} {
		if v < 0 {
			add("%s must be a positive integer, got %d", name, v)
		}
	}
	if c.MaxPayloadBytes < 0 {
		add("max_payload_bytes must be positive, got %d", c.MaxPayloadBytes)
	}
	if c.RateLimitPerMinute != nil && *c.RateLimitPerMinute < 0 {
		add("rate_limit_per_minute must be zero or positive, got %d", *c.RateLimitPerMinute)
	}

	return errs
}

// Check wraps Validate into a single error.
func (c *ServerConfig) Check() error {
	if errs := c.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

// Events returns update_events as a set.
func (c *ServerConfig) Events() event.Set {
	return event.NewSet(c.UpdateEvents...)
}

// RateLimit returns deliveries per minute per client; 0 disables limiting.
func (c *ServerConfig) RateLimit() int {
	if c.RateLimitPerMinute == nil {
		return DefaultRateLimit
	}
	return *c.RateLimitPerMinute
}

// PreRestart returns the parsed pre_restart_command, or nil.
func (c *ServerConfig) PreRestart() ([]string, error) {
	if strings.TrimSpace(c.PreRestartCommand) == "" {
		return nil, nil
	}
	return cmdutil.ParseCommandString(c.PreRestartCommand)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c *ServerConfig) PullTimeoutDuration() time.Duration       { return seconds(c.PullTimeout) }
func (c *ServerConfig) RestartTimeoutDuration() time.Duration    { return seconds(c.RestartTimeout) }
func (c *ServerConfig) PreRestartTimeoutDuration() time.Duration { return seconds(c.PreRestartTimeout) }

// Fingerprint is the blake3-256 hex digest of the canonical YAML encoding.
// It identifies which configuration handled a delivery.
func (c *ServerConfig) Fingerprint() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
