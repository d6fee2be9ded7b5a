package install

import (
	"fmt"

	"shook/internal/security"
	"shook/pkg/fileutil"
	"shook/pkg/templates"
)

// installService renders and writes the shook unit and reloads systemd.
// Enabling and starting are left to shook daemon.
func (i *Installer) installService() error {
	c := i.config

	if fileutil.FileExists(c.ServicePath) && !i.confirmReplace(c.ServicePath) {
		return fmt.Errorf("%s exists: %w", c.ServicePath, errAborted)
	}

	i.progress.begin("Creating systemd unit file")
	unit, err := templates.RenderSystemdService(templates.ServiceData{
		SystemName: c.SystemName,
		RepoPath:   c.RepoPath,
		Binary:     c.BinaryPath,
		ConfigPath: c.ConfigPath(),
		EnvFile:    c.EnvPath,
		DBPath:     c.DBPath,
	})
	if err != nil {
		i.progress.fail()
		return fmt.Errorf("rendering systemd template: %w", err)
	}

	if err := security.WriteSecureFile(c.ServicePath, []byte(unit), security.PermUnitFile); err != nil {
		i.progress.fail()
		return fmt.Errorf("writing service file: %w", err)
	}
	i.progress.ok()

	if !i.hasSystemd {
		i.progress.skip("Reloading systemd units (no systemd)")
		return nil
	}
	return i.runCmd("Reloading systemd units", "", "systemctl", "daemon-reload")
}
