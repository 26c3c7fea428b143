package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playlake/dashboard/api/apierror"
	"github.com/playlake/dashboard/api/metrics"
	"golang.org/x/sync/singleflight"
)

// DefaultQueryTimeout bounds a single warehouse query.
const DefaultQueryTimeout = 30 * time.Second

// Client is a connection to the remote query engine.
//
// Query returns *apierror.Error values for failures it can classify
// (syntax rejections in particular); anything else is treated as an
// execution failure by Execute.
type Client interface {
	Engine() string
	Query(ctx context.Context, sql string) (*Result, error)
	Close() error
}

// Factory creates a new Client. Failures should be *apierror.Error values of
// kind ClientInit.
type Factory func(ctx context.Context) (Client, error)

// Provider hands out one Client per process. A failed creation is not cached,
// so every caller that needs a client sees the creation error and the next
// call tries again. Concurrent callers share one creation attempt but each
// stops waiting when its own context ends.
type Provider struct {
	log     *slog.Logger
	engine  string
	factory Factory
	group   singleflight.Group

	mu     sync.Mutex
	client Client
	closed bool
}

func NewProvider(log *slog.Logger, engine string, factory Factory) *Provider {
	return &Provider{log: log, engine: engine, factory: factory}
}

func (p *Provider) Engine() string {
	return p.engine
}

func (p *Provider) cached() Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client
}

// Client returns the cached client, creating it on first use.
func (p *Provider) Client(ctx context.Context) (Client, error) {
	if client := p.cached(); client != nil {
		return client, nil
	}

	ch := p.group.DoChan(p.engine, func() (any, error) {
		if client := p.cached(); client != nil {
			return client, nil
		}
		return p.create(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, clientInitError(res.Err)
		}
		return res.Val.(Client), nil
	case <-ctx.Done():
		return nil, apierror.ClientInit("remote API unreachable", ctx.Err())
	}
}

func (p *Provider) create(ctx context.Context) (Client, error) {
	client, err := p.factory(ctx)
	metrics.RecordClientInit(p.engine, err)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = client.Close()
		return nil, errors.New("provider closed")
	}
	p.log.Info("warehouse: client initialized", "engine", p.engine)
	p.client = client
	return client, nil
}

func clientInitError(err error) error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apierror.ClientInit("remote API unreachable", err)
	}
	return apierror.ClientInit("unknown error", err)
}

// Close releases the cached client, if any. A client whose creation finishes
// after Close is closed immediately.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

// Execute runs sql once with a bounded wait. There is no retry. A timeout is
// reported as a query execution failure.
func Execute(ctx context.Context, client Client, sql string, timeout time.Duration) (*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := client.Query(ctx, sql)
	duration := time.Since(start)
	metrics.RecordWarehouseQuery(client.Engine(), duration, err)
	if err == nil {
		return result, nil
	}

	if errors.Is(err, apierror.ErrQuerySyntax) {
		return nil, err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, apierror.QueryExecution(fmt.Sprintf("query timed out after %s", timeout), err)
	}
	if errors.Is(err, context.Canceled) {
		return nil, apierror.QueryExecution("query cancelled", err)
	}
	return nil, apierror.From(err)
}
