package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"shook/internal/config"
	"shook/internal/event"
	"shook/internal/install"
	"shook/internal/security"
	"shook/pkg/fileutil"
)

// overrideFlags are the config fields that can be set on the command line.
type overrideFlags struct {
	username          string
	repoPath          string
	remote            string
	branch            string
	systemName        string
	updateEvents      string
	addr              string
	socketGroup       string
	socketUser        string
	preRestartCommand string
}

func (o *overrideFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.username, "username", "", "User that owns the checkout and runs git")
	f.StringVar(&o.repoPath, "repo-path", "", "Path to the repository checkout")
	f.StringVar(&o.remote, "remote", "", "Remote to pull from")
	f.StringVar(&o.branch, "branch", "", "Branch to pull")
	f.StringVar(&o.systemName, "system-name", "", "systemd service to restart")
	f.StringVar(&o.updateEvents, "update-events", "", "Comma separated events that trigger a deploy")
	f.StringVar(&o.addr, "addr", "", "Unix socket path or host:port to listen on")
	f.StringVar(&o.socketGroup, "socket-group", "", "Group owning the unix socket")
	f.StringVar(&o.socketUser, "socket-user", "", "User owning the unix socket")
	f.StringVar(&o.preRestartCommand, "pre-restart-command", "", "Command run between pull and restart")
}

// overrides returns only the flags that were given explicitly, so an
// empty value on the command line still overrides the file.
func (o *overrideFlags) overrides(cmd *cobra.Command) (config.Overrides, error) {
	var ov config.Overrides
	changed := cmd.Flags().Changed

	str := func(name string, v string, dst **string) {
		if changed(name) {
			s := v
			*dst = &s
		}
	}
	str("username", o.username, &ov.Username)
	str("repo-path", o.repoPath, &ov.RepoPath)
	str("remote", o.remote, &ov.Remote)
	str("branch", o.branch, &ov.Branch)
	str("system-name", o.systemName, &ov.SystemName)
	str("socket-group", o.socketGroup, &ov.SocketGroup)
	str("socket-user", o.socketUser, &ov.SocketUser)
	str("pre-restart-command", o.preRestartCommand, &ov.PreRestartCommand)

	if changed("update-events") {
		kinds, err := event.ParseKinds(o.updateEvents)
		if err != nil {
			return ov, fmt.Errorf("--update-events: %w", err)
		}
		ov.UpdateEvents = kinds
	}
	if changed("addr") {
		addr, err := config.ParseAddr(o.addr)
		if err != nil {
			return ov, fmt.Errorf("--addr: %w", err)
		}
		ov.Addr = &addr
	}
	return ov, nil
}

// loadServerConfig finds and loads shook.yaml, applies the command line
// overrides and validates the result.
func loadServerConfig(cmd *cobra.Command, flags *overrideFlags, logger *slog.Logger) (*config.ServerConfig, string, error) {
	path, err := fileutil.ResolveConfig(configFile, config.FileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No configuration file found in default locations:\n")
		for _, p := range fileutil.DefaultConfigPaths(config.FileName) {
			fmt.Fprintf(os.Stderr, "  - %s\n", p)
		}
		fmt.Fprintf(os.Stderr, "Use --config flag to specify a custom location, or run shook init\n")
		return nil, "", err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := security.CheckConfigPermissions(path); err != nil {
		logger.Warn("Insecure config file permissions", "config", path, "error", err)
	}

	if flags != nil {
		ov, err := flags.overrides(cmd)
		if err != nil {
			return nil, "", err
		}
		merged := cfg.Merge(ov)
		cfg = &merged
	}

	if err := cfg.Check(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// webhookSecret reads the HMAC key. GITHUB_TOKEN is accepted as a fallback
// for setups that share one secret.
func webhookSecret() string {
	if s := os.Getenv(install.SecretEnvVar); s != "" {
		return s
	}
	return os.Getenv("GITHUB_TOKEN")
}
