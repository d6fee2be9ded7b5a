// Package socket opens the server listener and, for unix sockets, hands the
// socket file to the reverse proxy's user and group.
package socket

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"shook/internal/config"
	"shook/internal/security"
)

// Permissions changes ownership and mode of the socket file.
type Permissions interface {
	Chown(path string, uid, gid int) error
	Chmod(path string, mode os.FileMode) error
}

// OSPermissions applies changes with os.Chown and os.Chmod.
type OSPermissions struct{}

func (OSPermissions) Chown(path string, uid, gid int) error  { return os.Chown(path, uid, gid) }
func (OSPermissions) Chmod(path string, mode os.FileMode) error { return os.Chmod(path, mode) }

// Provisioner binds listeners.
type Provisioner struct {
	Lookup IdentityLookup
	Perms  Permissions
	Mode   os.FileMode
	Logger *slog.Logger
}

// NewProvisioner uses the system account databases and real file permissions.
func NewProvisioner(logger *slog.Logger) *Provisioner {
	return &Provisioner{
		Lookup: SystemDB(),
		Perms:  OSPermissions{},
		Mode:   security.PermSocket,
		Logger: logger,
	}
}

// Provision binds addr. For unix sockets, user and group are resolved
// before binding so an unknown name never leaves a socket behind; ownership
// and mode are applied after bind and before the listener is returned. An
// empty user or group leaves that id unchanged.
func (p *Provisioner) Provision(ctx context.Context, addr config.Addr, group, user string) (net.Listener, error) {
	var lc net.ListenConfig

	if !addr.IsUnix() {
		ln, err := lc.Listen(ctx, "tcp", addr.Value)
		if err != nil {
			return nil, fmt.Errorf("listen on %s: %w", addr.Value, err)
		}
		return ln, nil
	}

	uid, gid := -1, -1
	var err error
	if user != "" {
		if uid, err = p.Lookup.UserID(user); err != nil {
			return nil, err
		}
	}
	if group != "" {
		if gid, err = p.Lookup.GroupID(group); err != nil {
			return nil, err
		}
	}

	path := addr.Value
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), security.PermSocketDir); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}

	ln, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}

	if uid != -1 || gid != -1 {
		if err := p.Perms.Chown(path, uid, gid); err != nil {
			ln.Close()
			return nil, fmt.Errorf("chown %s: %w", path, err)
		}
	}
	if err := p.Perms.Chmod(path, p.Mode); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}

	if p.Logger != nil {
		p.Logger.Info("unix socket ready", "path", path, "uid", uid, "gid", gid, "mode", fmt.Sprintf("%04o", p.Mode))
	}
	return ln, nil
}
