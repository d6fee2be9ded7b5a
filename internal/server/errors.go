package server

import (
	"errors"
	"net/http"

	"shook/internal/deployment"
	"shook/internal/event"
	"shook/internal/hook"
)

// statusForError maps delivery and deploy errors to a response status.
// Server-side faults never reveal details to the caller; the body is empty
// either way.
func statusForError(err error) int {
	var decodeErr *event.DecodeError
	var unknownErr *event.UnknownKindError

	switch {
	case errors.Is(err, hook.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, hook.ErrSecretMissing):
		return http.StatusInternalServerError
	case errors.Is(err, hook.ErrSignatureMismatch),
		errors.Is(err, hook.ErrSignatureRequired):
		return http.StatusUnauthorized
	case errors.Is(err, hook.ErrMissingHeader),
		errors.Is(err, hook.ErrInvalidHeader),
		errors.Is(err, hook.ErrUnsupportedContentType),
		errors.Is(err, hook.ErrMalformedBody),
		errors.Is(err, hook.ErrSignatureParse),
		errors.Is(err, hook.ErrReadBody),
		errors.As(err, &decodeErr),
		errors.As(err, &unknownErr):
		return http.StatusBadRequest
	case errors.Is(err, deployment.ErrQueueFull),
		errors.Is(err, deployment.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
