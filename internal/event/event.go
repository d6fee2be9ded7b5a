// Package event models GitHub webhook events as a closed set of variants
// selected by the X-Github-Event header.
//
// Push, Ping and BranchProtectionRule carry typed payloads. Every other
// known event decodes to *Opaque, which keeps the payload verbatim.
package event

import "encoding/json"

// Event is one decoded webhook event. The implementations are *Push, *Ping,
// *BranchProtectionRule and *Opaque.
type Event interface {
	// Kind returns the event name. It never depends on payload fields.
	Kind() Kind
	isEvent()
}

// Push is sent when commits are pushed to a branch or tag.
type Push struct {
	After        string          `json:"after"`
	BaseRef      *string         `json:"base_ref"`
	Before       string          `json:"before"`
	Commits      []Commit        `json:"commits"`
	Compare      string          `json:"compare"`
	Created      bool            `json:"created"`
	Deleted      bool            `json:"deleted"`
	Enterprise   json.RawMessage `json:"enterprise,omitempty"`
	Forced       bool            `json:"forced"`
	HeadCommit   *Commit         `json:"head_commit"`
	Installation json.RawMessage `json:"installation,omitempty"`
	Organization json.RawMessage `json:"organization,omitempty"`
	Pusher       Pusher          `json:"pusher"`
	Ref          string          `json:"ref"`
	Repository   json.RawMessage `json:"repository"`
	Sender       json.RawMessage `json:"sender"`
}

// Ping is sent when a webhook is created.
type Ping struct {
	Hook         *Hook           `json:"hook"`
	HookID       *int64          `json:"hook_id"`
	Organization json.RawMessage `json:"organization,omitempty"`
	Repository   json.RawMessage `json:"repository,omitempty"`
	Sender       json.RawMessage `json:"sender,omitempty"`
	Zen          string          `json:"zen"`
}

// BranchProtectionRule is sent when a branch protection rule changes.
type BranchProtectionRule struct {
	Action       string          `json:"action"`
	Changes      json.RawMessage `json:"changes,omitempty"`
	Enterprise   json.RawMessage `json:"enterprise,omitempty"`
	Installation json.RawMessage `json:"installation,omitempty"`
	Organization json.RawMessage `json:"organization,omitempty"`
	Repository   json.RawMessage `json:"repository,omitempty"`
	Rule         ProtectionRule  `json:"rule"`
	Sender       json.RawMessage `json:"sender"`
}

// Opaque is any known event without a typed payload.
type Opaque struct {
	Name    Kind
	Payload json.RawMessage
}

func (*Push) Kind() Kind                 { return KindPush }
func (*Ping) Kind() Kind                 { return KindPing }
func (*BranchProtectionRule) Kind() Kind { return KindBranchProtectionRule }
func (o *Opaque) Kind() Kind             { return o.Name }

func (*Push) isEvent()                 {}
func (*Ping) isEvent()                 {}
func (*BranchProtectionRule) isEvent() {}
func (*Opaque) isEvent()               {}

// MarshalJSON writes the payload unchanged.
func (o *Opaque) MarshalJSON() ([]byte, error) {
	if len(o.Payload) == 0 {
		return []byte("{}"), nil
	}
	return o.Payload, nil
}

// typed maps each variant with a schema to a constructor. Kinds missing
// from this table decode to *Opaque.
var typed = map[Kind]func() Event{
	KindPush:                 func() Event { return new(Push) },
	KindPing:                 func() Event { return new(Ping) },
	KindBranchProtectionRule: func() Event { return new(BranchProtectionRule) },
}

// Branch returns the branch name for refs/heads/ refs and "" otherwise.
func (p *Push) Branch() string {
	const prefix = "refs/heads/"
	if len(p.Ref) > len(prefix) && p.Ref[:len(prefix)] == prefix {
		return p.Ref[len(prefix):]
	}
	return ""
}
