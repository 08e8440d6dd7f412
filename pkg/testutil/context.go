package testutil

import (
	"net/http"
	"time"

	"pgfnsync/pkg/requestcontext"
)

// WithRequestTime pins the request clock, as the RequestTime middleware would.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithRequestID attaches a correlation id to the request context.
func WithRequestID(req *http.Request, id string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), id))
}
