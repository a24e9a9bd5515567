package testutil

import (
	"net/http"

	"verigate/pkg/platform/middleware/device"
	"verigate/pkg/requestcontext"
)

// WithRequestID adds a request ID to the request context, as the metadata
// middleware would.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithOrigin sets the Origin header and the context origin together.
func WithOrigin(req *http.Request, origin string) *http.Request {
	req.Header.Set("Origin", origin)
	return req.WithContext(requestcontext.WithOrigin(req.Context(), origin))
}

// WithDevice attaches a parsed User-Agent without running the device middleware.
func WithDevice(req *http.Request, userAgent string) *http.Request {
	req.Header.Set("User-Agent", userAgent)
	return req.WithContext(device.WithInfo(req.Context(), device.Parse(userAgent)))
}
