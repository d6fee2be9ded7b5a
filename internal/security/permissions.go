package security

import (
	"fmt"
	"os"
)

const (
	// PermConfigFile is for shook.yaml. rw-r-----
	PermConfigFile os.FileMode = 0640

	// PermSecretFile is for the environment file holding the webhook secret. rw-------
	PermSecretFile os.FileMode = 0600

	// PermLogFile is for the optional log file. rw-r-----
	PermLogFile os.FileMode = 0640

	// PermDBFile is for the delivery history database. rw-r-----
	PermDBFile os.FileMode = 0640

	// PermDirectory is for state and config directories. rwxr-x---
	PermDirectory os.FileMode = 0750

	// PermUnitFile is for the installed systemd unit. rw-r--r--
	PermUnitFile os.FileMode = 0644

	// PermSocket lets a reverse proxy running as another user connect. rw-rw-rw-
	PermSocket os.FileMode = 0666

	// PermSocketDir must be traversable by the proxy. rwxr-xr-x
	PermSocketDir os.FileMode = 0755
)

// CreateSecureFile creates or truncates path and forces perm regardless of umask.
func CreateSecureFile(path string, perm os.FileMode) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return nil, fmt.Errorf("failed to create secure file: %w", err)
	}

	if err := os.Chmod(path, perm); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to set file permissions: %w", err)
	}
	return file, nil
}

// WriteSecureFile writes data to path with perm.
func WriteSecureFile(path string, data []byte, perm os.FileMode) error {
	f, err := CreateSecureFile(path, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// CreateSecureDir creates path and its parents, then forces perm on path.
// An existing directory is left as it is.
func CreateSecureDir(path string, perm os.FileMode) error {
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", path)
		}
		return nil
	}
	if err := os.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("failed to create secure directory: %w", err)
	}
	if err := os.Chmod(path, perm); err != nil {
		return fmt.Errorf("failed to set directory permissions: %w", err)
	}
	return nil
}

// IsWorldWritable checks if a file is writable by others.
func IsWorldWritable(perm os.FileMode) bool {
	return perm&0002 != 0
}

// CheckConfigPermissions fails when a config file can be modified by any
// local user, since its commands run as the deploy user.
func CheckConfigPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if perm := info.Mode().Perm(); IsWorldWritable(perm) {
		return fmt.Errorf("file %s is world-writable (%04o)", path, perm)
	}
	return nil
}
