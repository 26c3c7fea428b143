package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORSOptions_Methods(t *testing.T) {
	t.Parallel()

	opts := corsOptions([]string{"http://localhost:3000"})
	require.Equal(t, []string{"GET", "POST", "PUT", "DELETE"}, opts.AllowedMethods)
	assert.True(t, opts.AllowCredentials)
}

func TestCORSOptions_Preflight(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Use(cors.Handler(corsOptions([]string{"http://localhost:3000"})))
	r.Get("/bars/{period}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	preflight := func(origin, method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/bars/last_24", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", method)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight("http://localhost:3000", http.MethodGet)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = preflight("http://localhost:3000", http.MethodPatch)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = preflight("https://evil.example", http.MethodGet)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
