package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/playlake/dashboard/api/apierror"
)

const readinessTimeout = 5 * time.Second

// MarkShuttingDown makes the readiness probe fail from now on.
func (a *API) MarkShuttingDown() {
	a.shuttingDown.Store(true)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz reports ready once a warehouse client can be obtained. It does not
// run a query.
func (a *API) Readyz(w http.ResponseWriter, r *http.Request) {
	if a.shuttingDown.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("shutting down"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if _, err := a.clients.Client(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("warehouse client unavailable: " + apierror.SanitizeError(err)))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
