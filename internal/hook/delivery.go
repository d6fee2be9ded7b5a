// Package hook turns an inbound GitHub webhook request into an
// authenticated, decoded Delivery.
package hook

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"shook/internal/event"
)

const (
	HeaderEvent        = "X-Github-Event"
	HeaderDelivery     = "X-Github-Delivery"
	HeaderSignature    = "X-Hub-Signature"
	HeaderSignature256 = "X-Hub-Signature-256"
)

var (
	ErrMissingHeader   = errors.New("missing required header")
	ErrInvalidHeader   = errors.New("invalid header")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrReadBody        = errors.New("reading body")
)

// Delivery is one authenticated webhook request.
type Delivery struct {
	GUID            uuid.UUID
	SignatureSHA1   string
	SignatureSHA256 string
	Event           event.Event
	RawBody         []byte
}

// Reader extracts deliveries from requests.
type Reader struct {
	Verifier *Verifier
	MaxBytes int64
}

// Read validates headers, reads at most MaxBytes of body, checks the
// signature over the raw bytes and decodes the event, in that order.
func (rd *Reader) Read(r *http.Request) (*Delivery, error) {
	name := strings.TrimSpace(r.Header.Get(HeaderEvent))
	if name == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, HeaderEvent)
	}
	rawGUID := strings.TrimSpace(r.Header.Get(HeaderDelivery))
	if rawGUID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, HeaderDelivery)
	}
	guid, err := uuid.Parse(rawGUID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidHeader, HeaderDelivery, err)
	}
	contentType := r.Header.Get("Content-Type")
	if _, err := MediaType(contentType); err != nil {
		return nil, err
	}

	d := &Delivery{
		GUID:            guid,
		SignatureSHA1:   strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderSignature))),
		SignatureSHA256: strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderSignature256))),
	}

	if rd.MaxBytes > 0 && r.ContentLength > rd.MaxBytes {
		return nil, ErrPayloadTooLarge
	}
	body, err := readBody(r.Body, rd.MaxBytes)
	if err != nil {
		return nil, err
	}
	d.RawBody = body

	if err := rd.Verifier.Check(d.SignatureSHA1, d.SignatureSHA256, body); err != nil {
		return nil, err
	}

	ev, err := Decode(contentType, name, body)
	if err != nil {
		return nil, err
	}
	d.Event = ev
	return d, nil
}

func readBody(body io.Reader, limit int64) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if limit <= 0 {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadBody, err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadBody, err)
	}
	if int64(len(data)) > limit {
		return nil, ErrPayloadTooLarge
	}
	return data, nil
}
