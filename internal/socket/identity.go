package socket

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrNotFound is wrapped by LookupError when a name has no entry.
var ErrNotFound = errors.New("no such entry")

// IdentityLookup resolves account names to numeric ids.
type IdentityLookup interface {
	UserID(name string) (int, error)
	GroupID(name string) (int, error)
}

// LookupError names the account that could not be resolved.
type LookupError struct {
	Kind     string // "user" or "group"
	Name     string
	Database string
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("socket %s %q: lookup in %s: %v", e.Kind, e.Name, e.Database, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// FileDB reads colon separated account databases: name in field 0, id in
// field 2.
type FileDB struct {
	PasswdPath string
	GroupPath  string
}

// SystemDB reads /etc/passwd and /etc/group.
func SystemDB() FileDB {
	return FileDB{PasswdPath: "/etc/passwd", GroupPath: "/etc/group"}
}

func (db FileDB) UserID(name string) (int, error) {
	return scanID(db.PasswdPath, "user", name)
}

func (db FileDB) GroupID(name string) (int, error) {
	return scanID(db.GroupPath, "group", name)
}

func scanID(path, kind, name string) (int, error) {
	fail := func(err error) (int, error) {
		return -1, &LookupError{Kind: kind, Name: name, Database: path, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return fail(err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 3 || fields[0] != name {
			continue
		}
		id, err := strconv.Atoi(fields[2])
		if err != nil {
			return fail(fmt.Errorf("malformed id %q", fields[2]))
		}
		return id, nil
	}
	if err := sc.Err(); err != nil {
		return fail(err)
	}
	return fail(ErrNotFound)
}
