package handlers

import (
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/goccy/go-json"
	"github.com/playlake/dashboard/api/apierror"
	"github.com/playlake/dashboard/api/metrics"
)

// writeJSON encodes v before writing the header so an encoding failure can
// still be reported as a 500 envelope.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	return nil
}

// writeError logs err with its cause and writes the error envelope. Server
// side failures are also reported to Sentry when it is configured.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	apiErr := apierror.From(err)
	status := apiErr.StatusCode()

	attrs := []any{"endpoint", endpoint, "kind", apiErr.Kind.String(), "status", status, "error", err}
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed", attrs...)
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
	} else {
		a.log.Warn("request rejected", attrs...)
	}
	metrics.RecordRequestError(endpoint, apiErr.Kind.String())

	if err := writeJSON(w, status, apierror.ToEnvelope(apiErr)); err != nil {
		slog.Error("failed to encode error envelope", "error", err)
		http.Error(w, http.StatusText(status), status)
	}
}
