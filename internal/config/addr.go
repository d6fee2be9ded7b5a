package config

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"gopkg.in/yaml.v3"
)

// Network selects how the server listens.
type Network string

const (
	NetworkTCP  Network = "tcp"
	NetworkUnix Network = "unix"
)

// DefaultSocketPath is where shook init puts the listening socket.
const DefaultSocketPath = "/var/run/shook.sock"

// Addr is either a TCP host:port or a unix socket path.
type Addr struct {
	Network Network
	Value   string
}

// TCP returns a TCP address.
func TCP(hostport string) Addr { return Addr{Network: NetworkTCP, Value: hostport} }

// Unix returns a unix socket address.
func Unix(path string) Addr { return Addr{Network: NetworkUnix, Value: path} }

// ParseAddr classifies s: anything that parses as host:port without a
// slash is TCP, everything else is a socket path.
func ParseAddr(s string) (Addr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Addr{}, fmt.Errorf("empty address")
	}
	if _, err := netip.ParseAddrPort(s); err == nil {
		return TCP(s), nil
	}
	if _, _, err := net.SplitHostPort(s); err == nil && !strings.Contains(s, "/") {
		return TCP(s), nil
	}
	return Unix(s), nil
}

// IsZero reports whether no address is set.
func (a Addr) IsZero() bool { return a.Value == "" }

// IsUnix reports whether a is a socket path.
func (a Addr) IsUnix() bool { return a.Network == NetworkUnix }

func (a Addr) String() string {
	if a.IsZero() {
		return ""
	}
	return string(a.Network) + ":" + a.Value
}

type addrNode struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// MarshalYAML writes {type, value}.
func (a Addr) MarshalYAML() (any, error) {
	if a.IsZero() {
		return nil, nil
	}
	return addrNode{Type: string(a.Network), Value: a.Value}, nil
}

// UnmarshalYAML accepts a plain string or a {type, value} mapping.
func (a *Addr) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		parsed, err := ParseAddr(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*a = parsed
		return nil
	case yaml.MappingNode:
		var n addrNode
		if err := node.Decode(&n); err != nil {
			return err
		}
		if n.Value == "" {
			return fmt.Errorf("line %d: addr value is empty", node.Line)
		}
		switch Network(strings.ToLower(n.Type)) {
		case NetworkTCP:
			*a = TCP(n.Value)
		case NetworkUnix:
			*a = Unix(n.Value)
		default:
			return fmt.Errorf("line %d: addr type must be tcp or unix, got %q", node.Line, n.Type)
		}
		return nil
	}
	return fmt.Errorf("line %d: addr must be a string or a {type, value} mapping", node.Line)
}
