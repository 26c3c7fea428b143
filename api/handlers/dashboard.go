package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/playlake/dashboard/api/apierror"
	"github.com/playlake/dashboard/api/queries"
	"github.com/playlake/dashboard/api/warehouse"
)

// ClientSource hands out warehouse clients. *warehouse.Provider implements it.
type ClientSource interface {
	Client(ctx context.Context) (warehouse.Client, error)
}

// API serves the dashboard widgets.
type API struct {
	log          *slog.Logger
	dispatcher   *queries.Dispatcher
	clients      ClientSource
	queryTimeout time.Duration

	shuttingDown atomic.Bool
}

func New(log *slog.Logger, dispatcher *queries.Dispatcher, clients ClientSource, queryTimeout time.Duration) *API {
	if queryTimeout <= 0 {
		queryTimeout = warehouse.DefaultQueryTimeout
	}
	return &API{
		log:          log,
		dispatcher:   dispatcher,
		clients:      clients,
		queryTimeout: queryTimeout,
	}
}

// Routes mounts the probes and widget endpoints on r. rateLimit, when not
// nil, applies to the widget endpoints only.
func (a *API) Routes(r chi.Router, rateLimit func(http.Handler) http.Handler) {
	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Readyz)

	r.Group(func(r chi.Router) {
		if rateLimit != nil {
			r.Use(rateLimit)
		}

		r.Get("/scorecards/{period}", a.GetScorecards)
		r.Get("/bars/{period}", a.GetBars)
		r.Get("/pie_context/{period}", a.GetPieContext)
		r.Get("/pie_artists/{period}", a.GetPieArtists)
		r.Get("/pie_release_years/{period}", a.GetPieReleaseYears)
		r.Get("/table/{period}", a.GetTable)
	})
}

// GetScorecards returns the summary metrics as a single object.
func (a *API) GetScorecards(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, queries.EndpointScorecards)
}

// GetBars returns plays per hour as [{hour, count}].
func (a *API) GetBars(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, queries.EndpointBars)
}

func (a *API) GetPieContext(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, queries.EndpointPieContext)
}

// GetPieArtists returns at most 20 artists by play count.
func (a *API) GetPieArtists(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, queries.EndpointPieArtists)
}

func (a *API) GetPieReleaseYears(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, queries.EndpointPieReleaseYears)
}

// GetTable returns the five most played tracks.
func (a *API) GetTable(w http.ResponseWriter, r *http.Request) {
	a.serve(w, r, queries.EndpointTable)
}

func (a *API) serve(w http.ResponseWriter, r *http.Request, endpoint queries.Endpoint) {
	payload, err := a.run(r.Context(), endpoint, chi.URLParam(r, "period"))
	if err != nil {
		a.writeError(w, r, string(endpoint), err)
		return
	}
	if err := writeJSON(w, http.StatusOK, payload); err != nil {
		a.writeError(w, r, string(endpoint), apierror.QueryExecution("failed to encode response", err))
	}
}

// run is the whole request pipeline: the period is validated and the SQL
// rendered before a client is requested, so a bad period never reaches the
// warehouse.
func (a *API) run(ctx context.Context, endpoint queries.Endpoint, period string) (any, error) {
	sql, err := a.dispatcher.Render(endpoint, period)
	if err != nil {
		return nil, err
	}

	client, err := a.clients.Client(ctx)
	if err != nil {
		return nil, err
	}

	a.log.Debug("running dashboard query", "endpoint", endpoint, "period", period, "engine", client.Engine())
	result, err := warehouse.Execute(ctx, client, sql, a.queryTimeout)
	if err != nil {
		return nil, err
	}

	return Normalize(endpoint, result)
}
