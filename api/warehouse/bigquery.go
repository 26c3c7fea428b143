package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/playlake/dashboard/api/apierror"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const EngineBigQuery = "bigquery"

// ClientInitTimeout bounds the credential check done while creating a client.
const ClientInitTimeout = 10 * time.Second

type BigQueryConfig struct {
	ProjectID       string
	CredentialsPath string
}

func (cfg *BigQueryConfig) Validate() error {
	if cfg.ProjectID == "" {
		return errors.New("project id is required")
	}
	if cfg.CredentialsPath == "" {
		return errors.New("credentials path is required")
	}
	return nil
}

type BigQueryClient struct {
	log    *slog.Logger
	client *bigquery.Client
}

// NewBigQueryClient loads service account credentials, proves they can mint a
// token and builds the client. Each way this can fail has its own message;
// all are ClientInit errors.
func NewBigQueryClient(ctx context.Context, log *slog.Logger, cfg BigQueryConfig) (*BigQueryClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apierror.ClientInit("invalid configuration", err)
	}

	// The client outlives the request that created it. Token requests made
	// through it still get a bounded HTTP client.
	baseCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, &http.Client{Timeout: ClientInitTimeout})

	creds, err := loadServiceAccount(baseCtx, cfg.CredentialsPath)
	if err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, ClientInitTimeout)
	defer cancel()
	if err := probeToken(probeCtx, creds.TokenSource); err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, apierror.ClientInit("token refresh error", err)
		}
		return nil, apierror.ClientInit("remote API unreachable", err)
	}

	client, err := bigquery.NewClient(baseCtx, cfg.ProjectID, option.WithCredentials(creds))
	if err != nil {
		return nil, apierror.ClientInit("Google API error", err)
	}

	log.Info("warehouse: bigquery client created", "project", cfg.ProjectID)
	return &BigQueryClient{log: log, client: client}, nil
}

// probeToken fetches one token, giving up when ctx ends. The token source
// has no context of its own to cancel.
func probeToken(ctx context.Context, ts oauth2.TokenSource) error {
	done := make(chan error, 1)
	go func() {
		_, err := ts.Token()
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func loadServiceAccount(ctx context.Context, path string) (*google.Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apierror.ClientInit("default credentials error: credentials file could not be read", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, bigquery.Scope)
	if err != nil {
		return nil, apierror.ClientInit("default credentials error: malformed credentials file", err)
	}
	return creds, nil
}

func (c *BigQueryClient) Engine() string {
	return EngineBigQuery
}

func (c *BigQueryClient) Close() error {
	return c.client.Close()
}

func (c *BigQueryClient) Query(ctx context.Context, sql string) (*Result, error) {
	it, err := c.client.Query(sql).Read(ctx)
	if err != nil {
		return nil, classifyBigQueryError(err)
	}

	result := &Result{Rows: []Row{}}
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classifyBigQueryError(err)
		}
		if result.Columns == nil {
			result.Columns = schemaColumns(it.Schema)
		}

		row := make([]any, len(values))
		for i, v := range values {
			row[i] = toJSONSafe(v)
		}
		result.Rows = append(result.Rows, NewRow(result.Columns, row))
	}
	if result.Columns == nil {
		result.Columns = schemaColumns(it.Schema)
	}

	return result, nil
}

func schemaColumns(schema bigquery.Schema) []string {
	columns := make([]string, len(schema))
	for i, f := range schema {
		columns[i] = f.Name
	}
	return columns
}

func classifyBigQueryError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var jobErr *bigquery.Error
	if errors.As(err, &jobErr) && jobErr.Reason == "invalidQuery" {
		return apierror.QuerySyntax(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusBadRequest {
			return apierror.QuerySyntax(err)
		}
		return apierror.QueryExecution(fmt.Sprintf("Google API error: unable to execute the query (HTTP %d)", apiErr.Code), err)
	}

	return apierror.QueryExecution("unknown error occurred while executing the query", err)
}
