package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"

	"shook/internal/event"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrMalformedBody          = errors.New("malformed body")
)

// MediaType strips parameters such as charset from a Content-Type value and
// rejects anything but JSON and form encoding.
func MediaType(contentType string) (string, error) {
	if contentType == "" {
		return "", fmt.Errorf("%w: empty", ErrUnsupportedContentType)
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedContentType, err)
	}
	switch mt {
	case ContentTypeJSON, ContentTypeForm:
		return mt, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, mt)
}

// Payload turns a request body into the JSON event payload.
//
// Form bodies from GitHub carry the JSON document in a single "payload"
// field. Any other form becomes an object of string values.
func Payload(contentType string, body []byte) (json.RawMessage, error) {
	mt, err := MediaType(contentType)
	if err != nil {
		return nil, err
	}

	if mt == ContentTypeJSON {
		if !json.Valid(body) {
			return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedBody)
		}
		return json.RawMessage(body), nil
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if p, ok := values["payload"]; ok && len(values) == 1 && len(p) == 1 {
		if !json.Valid([]byte(p[0])) {
			return nil, fmt.Errorf("%w: form payload field is not JSON", ErrMalformedBody)
		}
		return json.RawMessage(p[0]), nil
	}

	flat := make(map[string]string, len(values))
	for k := range values {
		flat[k] = values.Get(k)
	}
	raw, err := json.Marshal(flat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return raw, nil
}

// Decode normalizes body into an {"<name>": payload} envelope and decodes it.
func Decode(contentType, name string, body []byte) (event.Event, error) {
	payload, err := Payload(contentType, body)
	if err != nil {
		return nil, err
	}
	env, err := event.Envelope(name, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return event.Decode(env)
}
