// Package device derives a display label for the calling browser from its
// User-Agent. The label is attached to provider session metadata and logs.
package device

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// Info describes the calling browser.
type Info struct {
	Label  string
	Mobile bool
	Bot    bool
}

type contextKeyInfo struct{}

// FromContext returns the Info stored by Middleware, or a zero Info.
func FromContext(ctx context.Context) Info {
	if info, ok := ctx.Value(contextKeyInfo{}).(Info); ok {
		return info
	}
	return Info{}
}

// WithInfo injects info into a context.
// Useful for handler unit tests that don't run the full middleware chain.
func WithInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, contextKeyInfo{}, info)
}

// Parse inspects a raw User-Agent header.
func Parse(raw string) Info {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Info{Label: unknownDevice}
	}
	ua := useragent.New(raw)
	return Info{
		Label:  label(ua),
		Mobile: ua.Mobile(),
		Bot:    ua.Bot(),
	}
}

// ParseUserAgent returns a "Browser on OS" label.
func ParseUserAgent(raw string) string {
	return Parse(raw).Label
}

func label(ua *useragent.UserAgent) string {
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OSInfo().Name
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}

// Middleware stores the parsed User-Agent in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithInfo(r.Context(), Parse(r.Header.Get("User-Agent")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
