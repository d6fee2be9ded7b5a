package install

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"shook/internal/config"
	"shook/internal/security"
	"shook/pkg/fileutil"
)

// SecretEnvVar is the variable shook serve reads the webhook secret from.
const SecretEnvVar = "SHOOK_WEBHOOK_SECRET"

// errAborted is returned when the operator declines to replace a file.
var errAborted = errors.New("aborted")

// commandFunc runs name in dir and returns its combined output.
type commandFunc func(dir, name string, args ...string) ([]byte, error)

func execCommand(dir, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// checkSystemd checks if systemd is available on the system
func checkSystemd() bool {
	if _, err := os.Stat("/run/systemd/system"); err != nil {
		return false
	}
	_, err := exec.LookPath("systemctl")
	return err == nil
}

// openInstallLog opens the installation log file for appending
func openInstallLog(logPath string) (*os.File, error) {
	if err := security.CreateSecureDir(filepath.Dir(logPath), security.PermDirectory); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, security.PermLogFile)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	fmt.Fprintf(f, "\n=== shook init started at %s ===\n\n", time.Now().Format("2006-01-02 15:04:05"))
	return f, nil
}

// logToFile writes a message to the installation log if it's open
func (i *Installer) logToFile(format string, args ...interface{}) {
	if i.log != nil {
		fmt.Fprintf(i.log, format, args...)
	}
}

// runCmd executes a command and shows progress
func (i *Installer) runCmd(description, dir, name string, args ...string) error {
	i.progress.begin(description)
	i.logToFile("[CMD] %s\n", shellquote.Join(append([]string{name}, args...)...))

	output, err := i.run(dir, name, args...)
	if len(output) > 0 {
		i.logToFile("%s\n", output)
	}

	if err != nil {
		i.progress.fail()
		fmt.Fprintf(i.out, "%s\n", output)
		i.logToFile("[ERROR] Command failed: %v\n\n", err)
		return fmt.Errorf("%s: %w", name, err)
	}

	i.logToFile("[OK] %s\n\n", description)
	i.progress.ok()
	if i.verbose && len(output) > 0 {
		fmt.Fprintf(i.out, "%s\n", output)
	}
	return nil
}

// ensureRepo clones the repository as the configured user when repo_path
// does not exist yet.
func (i *Installer) ensureRepo() error {
	c := i.config
	if fileutil.DirExists(c.RepoPath) {
		i.progress.success(fmt.Sprintf("Repository %s present", c.RepoPath))
		return nil
	}

	if !i.prompter.PromptForClone(c) {
		return fmt.Errorf("repository %s does not exist; pass --clone-url to clone it", c.RepoPath)
	}
	if err := security.ValidateGitURL(c.CloneURL); err != nil {
		return fmt.Errorf("clone-url: %w", err)
	}

	parent := filepath.Dir(c.RepoPath)
	if !fileutil.DirExists(parent) {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", parent, err)
		}
		if err := i.runCmd(fmt.Sprintf("Setting ownership on %s", parent), "", "chown", c.Username, parent); err != nil {
			return err
		}
	}

	clone := shellquote.Join("git", "clone", c.CloneURL, c.RepoPath)
	return i.runCmd(fmt.Sprintf("Cloning %s", c.CloneURL), parent,
		"su", c.Username, "-s", "/bin/sh", "-c", clone)
}

// writeConfig writes shook.yaml into the repository.
func (i *Installer) writeConfig(cfg *config.ServerConfig) error {
	path := i.config.ConfigPath()
	if fileutil.FileExists(path) && !i.confirmReplace(path) {
		return fmt.Errorf("%s exists: %w", path, errAborted)
	}

	i.progress.begin(fmt.Sprintf("Writing %s", path))
	if err := config.Save(path, cfg); err != nil {
		i.progress.fail()
		return err
	}
	i.progress.ok()
	return nil
}

// writeSecret stores the webhook secret in the environment file read by
// the systemd unit. An existing secret is reused so a re-run does not
// invalidate a webhook already registered on GitHub.
func (i *Installer) writeSecret() error {
	c := i.config

	if c.WebhookSecret == "" {
		if existing, err := readEnvSecret(c.EnvPath); err == nil && existing != "" {
			c.WebhookSecret = existing
			i.progress.success(fmt.Sprintf("Reusing webhook secret from %s", c.EnvPath))
			return nil
		}
		secret, err := security.GenerateSecret()
		if err != nil {
			return err
		}
		c.WebhookSecret = secret
		i.generatedSecret = true
	} else if err := security.ValidateSecret(c.WebhookSecret); err != nil {
		i.progress.warn(fmt.Sprintf("Webhook secret is weak: %v", err))
	}

	if err := security.CreateSecureDir(filepath.Dir(c.EnvPath), security.PermDirectory); err != nil {
		return err
	}

	i.progress.begin(fmt.Sprintf("Writing secret to %s", c.EnvPath))
	content := fmt.Sprintf("%s=%s\n", SecretEnvVar, c.WebhookSecret)
	if err := security.WriteSecureFile(c.EnvPath, []byte(content), security.PermSecretFile); err != nil {
		i.progress.fail()
		return err
	}
	i.progress.ok()
	return nil
}

// readEnvSecret returns SHOOK_WEBHOOK_SECRET from an environment file.
func readEnvSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return parseEnvSecret(bytes.NewReader(data)), nil
}

func parseEnvSecret(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		name, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(name) != SecretEnvVar {
			continue
		}
		return strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return ""
}

func (i *Installer) confirmReplace(path string) bool {
	if i.config.AssumeYes {
		return true
	}
	return i.prompter.Confirm(fmt.Sprintf("%s already exists. Replace it?", path), false)
}
