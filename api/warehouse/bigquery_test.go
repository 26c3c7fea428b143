package warehouse

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/playlake/dashboard/api/apierror"
	laketesting "github.com/playlake/dashboard/utils/pkg/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeServiceAccount(t *testing.T, tokenURI string) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	data, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "dashboard-test",
		"private_key_id": "test-key",
		"private_key":    string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		"client_email":   "dashboard@dashboard-test.iam.gserviceaccount.com",
		"client_id":      "1",
		"token_uri":      tokenURI,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "service-account.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestNewBigQueryClient_TokenEndpointHangs(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	cfg := BigQueryConfig{ProjectID: "dashboard-test", CredentialsPath: writeServiceAccount(t, srv.URL)}

	ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	client, err := NewBigQueryClient(ctx, laketesting.NewLogger(), cfg)
	require.Error(t, err)
	require.Nil(t, client)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.ErrorIs(t, err, apierror.ErrClientInit)
	assert.Contains(t, err.Error(), "remote API unreachable")
}

func TestNewBigQueryClient_TokenRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid JWT Signature."}`))
	}))
	t.Cleanup(srv.Close)

	cfg := BigQueryConfig{ProjectID: "dashboard-test", CredentialsPath: writeServiceAccount(t, srv.URL)}

	client, err := NewBigQueryClient(t.Context(), laketesting.NewLogger(), cfg)
	require.Error(t, err)
	require.Nil(t, client)
	assert.ErrorIs(t, err, apierror.ErrClientInit)
	assert.Contains(t, err.Error(), "token refresh error")
}

func TestProvider_BigQueryTokenEndpointHangs(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	cfg := BigQueryConfig{ProjectID: "dashboard-test", CredentialsPath: writeServiceAccount(t, srv.URL)}
	log := laketesting.NewLogger()
	p := NewProvider(log, EngineBigQuery, func(ctx context.Context) (Client, error) {
		client, err := NewBigQueryClient(ctx, log, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	})

	for range 2 {
		ctx, cancel := context.WithTimeout(t.Context(), 500*time.Millisecond)
		start := time.Now()
		_, err := p.Client(ctx)
		cancel()
		require.ErrorIs(t, err, apierror.ErrClientInit)
		assert.Less(t, time.Since(start), 3*time.Second)
	}
}
