package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// DecodeError reports why a payload did not match its event schema.
// Path is the dotted location of the first failing field, rooted at the
// event name (for example "push.head_commit.author.email").
type DecodeError struct {
	Path string
	Msg  string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return e.Path + ": " + e.Msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Envelope wraps a payload as {"<name>": <payload>}.
func Envelope(name string, payload json.RawMessage) ([]byte, error) {
	return json.Marshal(map[string]json.RawMessage{name: payload})
}

// Decode reads an envelope produced by Envelope. The single key selects the
// variant whose schema validates the payload.
func Decode(envelope []byte) (Event, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(envelope, &env); err != nil {
		return nil, &DecodeError{Msg: fmt.Sprintf("invalid envelope: %v", err), Err: err}
	}
	if len(env) != 1 {
		return nil, &DecodeError{Msg: fmt.Sprintf("envelope must hold exactly one event, found %d", len(env))}
	}
	for name, payload := range env {
		return DecodePayload(name, payload)
	}
	panic("unreachable")
}

// DecodePayload decodes the payload of the event named by the X-Github-Event
// header. Unknown names are an error.
func DecodePayload(name string, payload []byte) (Event, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, &DecodeError{Path: name, Msg: "unknown event", Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, &DecodeError{Path: name, Msg: fmt.Sprintf("invalid JSON: %v", err), Err: err}
	}

	ctor, ok := typed[kind]
	if !ok {
		if _, isObject := generic.(map[string]any); !isObject {
			return nil, typeError(name, generic, "object")
		}
		return &Opaque{Name: kind, Payload: bytes.Clone(payload)}, nil
	}

	ev := ctor()
	if err := checkSchema(generic, reflect.TypeOf(ev).Elem(), name); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, ev); err != nil {
		path := name
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			path = name + "." + typeErr.Field
		}
		return nil, &DecodeError{Path: path, Msg: err.Error(), Err: err}
	}
	return ev, nil
}

// Encode writes ev back as an envelope.
func Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", ev.Kind(), err)
	}
	return Envelope(string(ev.Kind()), payload)
}
