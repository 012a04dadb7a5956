package mapper

import "errors"

var (
	// ErrMalformedURI is returned when the inbound URI components do not form
	// a valid absolute URI.
	ErrMalformedURI = errors.New("malformed request URI")

	// ErrBodyRead wraps I/O errors and cancellations hit while reading the
	// inbound body, on both the streamed and the multipart path.
	ErrBodyRead = errors.New("read request body")
)
