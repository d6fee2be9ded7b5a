package security

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	httpsURLPattern = regexp.MustCompile(`^https://github\.com/[a-zA-Z0-9_-]+/[a-zA-Z0-9_.-]+(?:\.git)?$`)
	sshURLPattern   = regexp.MustCompile(`^git@github\.com:[a-zA-Z0-9_-]+/[a-zA-Z0-9_.-]+(?:\.git)?$`)
	branchPattern   = regexp.MustCompile(`^[a-zA-Z0-9/_.-]+$`)
	remotePattern   = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	userPattern     = regexp.MustCompile(`^[a-z_][a-z0-9_-]*\$?$`)
	unitPattern     = regexp.MustCompile(`^[a-zA-Z0-9:_.@-]+$`)
)

// ValidateGitURL accepts GitHub clone URLs in https or scp-like ssh form.
func ValidateGitURL(rawURL string) error {
	if sshURLPattern.MatchString(rawURL) {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" || u.Host != "github.com" {
		return fmt.Errorf("only GitHub https or git@github.com: URLs allowed, got %s://%s", u.Scheme, u.Host)
	}
	if !httpsURLPattern.MatchString(rawURL) || strings.Contains(u.Path, "..") {
		return fmt.Errorf("URL contains invalid characters or format")
	}
	return nil
}

// ValidateBranchName rejects names git would refuse or that could be read
// as an option.
func ValidateBranchName(branch string) error {
	if branch == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("branch name cannot start with '-'")
	}
	if !branchPattern.MatchString(branch) {
		return fmt.Errorf("branch name contains invalid characters")
	}
	if strings.Contains(branch, "..") || strings.HasSuffix(branch, ".lock") || strings.HasSuffix(branch, "/") {
		return fmt.Errorf("branch name %q is not a valid ref", branch)
	}
	return nil
}

// ValidateRemoteName checks a git remote name such as "origin".
func ValidateRemoteName(remote string) error {
	if remote == "" {
		return fmt.Errorf("remote name cannot be empty")
	}
	if strings.HasPrefix(remote, "-") || strings.HasPrefix(remote, ".") {
		return fmt.Errorf("remote name cannot start with '-' or '.'")
	}
	if !remotePattern.MatchString(remote) {
		return fmt.Errorf("remote name contains invalid characters")
	}
	return nil
}

// ValidateUsername checks a POSIX login name.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(name) > 32 {
		return fmt.Errorf("username longer than 32 characters")
	}
	if !userPattern.MatchString(name) {
		return fmt.Errorf("username %q contains invalid characters", name)
	}
	return nil
}

// ValidateServiceName checks a systemd unit name. The ".service" suffix is
// optional.
func ValidateServiceName(name string) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("service name cannot start with '-'")
	}
	if len(name) > 255 || !unitPattern.MatchString(name) {
		return fmt.Errorf("service name %q contains invalid characters", name)
	}
	return nil
}

// SanitizePath ensures a path is absolute and doesn't contain traversal attempts.
func SanitizePath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("path must be absolute: %s", path)
	}

	// Check for .. before cleaning (filepath.Clean removes them)
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path contains traversal elements: %s", path)
	}

	return filepath.Clean(path), nil
}

// ContainsShellMetachars reports whether s uses shell syntax. Commands are
// never run through a shell, so such characters would reach the program as
// literal arguments.
func ContainsShellMetachars(s string) bool {
	return strings.ContainsAny(s, ";|&$`\n><(){}*?[]")
}
