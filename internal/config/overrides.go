package config

import "shook/internal/event"

// Overrides holds command-line values. A nil field was not given and keeps
// the persisted value.
type Overrides struct {
	Username          *string
	RepoPath          *string
	Remote            *string
	Branch            *string
	SystemName        *string
	UpdateEvents      []event.Kind
	Addr              *Addr
	SocketGroup       *string
	SocketUser        *string
	PreRestartCommand *string
}

// Merge returns a copy of c with every set override applied.
func (c ServerConfig) Merge(o Overrides) ServerConfig {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.Username, o.Username)
	set(&c.RepoPath, o.RepoPath)
	set(&c.Remote, o.Remote)
	set(&c.Branch, o.Branch)
	set(&c.SystemName, o.SystemName)
	set(&c.SocketGroup, o.SocketGroup)
	set(&c.SocketUser, o.SocketUser)
	set(&c.PreRestartCommand, o.PreRestartCommand)
	if o.UpdateEvents != nil {
		c.UpdateEvents = append([]event.Kind(nil), o.UpdateEvents...)
	} else {
		c.UpdateEvents = append([]event.Kind(nil), c.UpdateEvents...)
	}
	if o.Addr != nil {
		c.Addr = *o.Addr
	}
	return c
}
