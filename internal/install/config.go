package install

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shook/internal/config"
	"shook/internal/event"
	"shook/internal/security"
	"shook/pkg/fileutil"
)

// Defaults offered by the prompts.
const (
	DefaultAddr        = "/var/run/shook.sock"
	DefaultSocketGroup = "www-data"
	DefaultSocketUser  = "www-data"
	DefaultEvents      = "push"
	DefaultServicePath = "/etc/systemd/system/shook.service"
	DefaultDBPath      = "/var/lib/shook/shook.db"
	DefaultBinaryPath  = "/usr/local/bin/shook"
)

// DefaultEnvPath is the environment file holding the webhook secret.
var DefaultEnvPath = filepath.Join(fileutil.SystemConfigDir, "shook.env")

// Config holds everything shook init needs. Empty fields are prompted for
// when stdin is a terminal and otherwise defaulted.
type Config struct {
	// ServerConfig fields
	Username          string
	RepoPath          string
	Remote            string
	Branch            string
	SystemName        string
	UpdateEvents      string // comma separated
	Addr              string
	SocketGroup       string
	SocketUser        string
	PreRestartCommand string

	// Setup only
	CloneURL      string
	GitHubRepo    string // owner/repo
	GitHubToken   string
	WebhookURL    string
	WebhookSecret string

	BinaryPath  string
	ServicePath string
	EnvPath     string
	DBPath      string
	AssumeYes   bool // replace existing files without asking
}

// NewConfig creates a new config with the file locations defaulted
func NewConfig() *Config {
	binary := DefaultBinaryPath
	if exe, err := os.Executable(); err == nil {
		binary = exe
	}
	return &Config{
		BinaryPath:  binary,
		ServicePath: DefaultServicePath,
		EnvPath:     DefaultEnvPath,
		DBPath:      DefaultDBPath,
	}
}

// LoadFromEnv loads the GitHub token and webhook secret from the
// environment if not already set
func (c *Config) LoadFromEnv() {
	if c.GitHubToken == "" {
		if token := os.Getenv("GH_TOKEN"); token != "" {
			c.GitHubToken = token
		} else if token := os.Getenv("GITHUB_TOKEN"); token != "" {
			c.GitHubToken = token
		}
	}
	if c.WebhookSecret == "" {
		c.WebhookSecret = os.Getenv("SHOOK_WEBHOOK_SECRET")
	}
}

// FillDefaults sets every optional field that is still empty.
func (c *Config) FillDefaults() {
	if c.Remote == "" {
		c.Remote = config.DefaultRemote
	}
	if c.Branch == "" {
		c.Branch = config.DefaultBranch
	}
	if c.UpdateEvents == "" {
		c.UpdateEvents = DefaultEvents
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if addr, err := config.ParseAddr(c.Addr); err == nil && addr.IsUnix() {
		if c.SocketGroup == "" {
			c.SocketGroup = DefaultSocketGroup
		}
		if c.SocketUser == "" {
			c.SocketUser = DefaultSocketUser
		}
	}
	if c.RepoPath != "" {
		if abs, err := filepath.Abs(c.RepoPath); err == nil {
			c.RepoPath = abs
		}
	}
}

// Validate ensures all required fields are set
func (c *Config) Validate() error {
	var missing []string

	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.RepoPath == "" {
		missing = append(missing, "repo-path")
	}
	if c.SystemName == "" {
		missing = append(missing, "system-name")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.GitHubRepo != "" && strings.Count(c.GitHubRepo, "/") != 1 {
		return fmt.Errorf("github-repo must be in format 'owner/repo', got: %s", c.GitHubRepo)
	}
	if c.CloneURL != "" {
		if err := security.ValidateGitURL(c.CloneURL); err != nil {
			return fmt.Errorf("clone-url: %w", err)
		}
	}
	return nil
}

// ServerConfig converts the answers into the config shook serve reads.
func (c *Config) ServerConfig() (*config.ServerConfig, error) {
	addr, err := config.ParseAddr(c.Addr)
	if err != nil {
		return nil, fmt.Errorf("addr: %w", err)
	}
	events, err := event.ParseKinds(c.UpdateEvents)
	if err != nil {
		return nil, fmt.Errorf("update-events: %w", err)
	}

	cfg := &config.ServerConfig{
		Username:          c.Username,
		RepoPath:          c.RepoPath,
		Remote:            c.Remote,
		Branch:            c.Branch,
		SystemName:        c.SystemName,
		UpdateEvents:      events,
		Addr:              addr,
		PreRestartCommand: c.PreRestartCommand,
	}
	if addr.IsUnix() {
		cfg.SocketGroup = c.SocketGroup
		cfg.SocketUser = c.SocketUser
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ConfigPath is where shook.yaml is written.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.RepoPath, config.FileName)
}

// OwnerRepo splits GitHubRepo.
func (c *Config) OwnerRepo() (string, string, error) {
	owner, repo, ok := strings.Cut(c.GitHubRepo, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid owner/repo format: %s", c.GitHubRepo)
	}
	return owner, repo, nil
}
