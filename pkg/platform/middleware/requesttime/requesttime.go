// Package requesttime captures one "now" per HTTP request so validation, verification and
// persisted claim dates all agree on the calendar day.
package requesttime

import (
	"net/http"
	"time"

	"claimverifier/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and stores it in the
// context.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock is Middleware with an injectable clock.
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
