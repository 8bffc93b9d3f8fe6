package api

import "errors"

var (
	// ErrBadRequest marks a request body that is not valid JSON for the
	// resource. Mapped to 400 bad_request.
	ErrBadRequest = errors.New("bad request")
	// ErrPayloadTooLarge marks a body over maxBodyBytes. Mapped to 413.
	ErrPayloadTooLarge = errors.New("payload too large")
)
