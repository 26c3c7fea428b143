package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/playlake/dashboard/api/apierror"
)

// RateLimit limits requests per client IP. A non-positive limit disables it.
func RateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			_ = writeJSON(w, http.StatusTooManyRequests, apierror.Envelope{
				StatusCode: http.StatusTooManyRequests,
				Message:    "rate limit exceeded, try again later",
			})
		}),
	)
}
