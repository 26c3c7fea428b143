package warehouse

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/playlake/dashboard/api/apierror"
)

const EngineClickHouse = "clickhouse"

// ClickHouse server error codes that mean the statement itself is wrong.
var clickHouseSyntaxCodes = map[int32]bool{
	43:  true, // ILLEGAL_TYPE_OF_ARGUMENT
	46:  true, // UNKNOWN_FUNCTION
	47:  true, // UNKNOWN_IDENTIFIER
	62:  true, // SYNTAX_ERROR
	215: true, // NOT_AN_AGGREGATE
}

// ClickHouse server error codes raised for bad credentials.
var clickHouseAuthCodes = map[int32]bool{
	192: true, // UNKNOWN_USER
	193: true, // WRONG_PASSWORD
	194: true, // REQUIRED_PASSWORD
	516: true, // AUTHENTICATION_FAILED
}

type ClickHouseConfig struct {
	Addr        string
	Database    string
	Username    string
	Password    string
	Secure      bool
	DialTimeout time.Duration
}

func (cfg *ClickHouseConfig) Validate() error {
	if cfg.Addr == "" {
		return errors.New("clickhouse addr is required")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return nil
}

type ClickHouseClient struct {
	log  *slog.Logger
	conn driver.Conn
}

// NewClickHouseClient opens a connection pool and pings it so credential and
// connectivity problems surface here rather than on the first query.
func NewClickHouseClient(ctx context.Context, log *slog.Logger, cfg ClickHouseConfig) (*ClickHouseClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apierror.ClientInit("invalid configuration", err)
	}

	log.Info("warehouse: connecting to clickhouse", "addr", cfg.Addr, "database", cfg.Database, "username", cfg.Username, "secure", cfg.Secure)

	opts := &clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout:     cfg.DialTimeout,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}

	// Enable TLS for ClickHouse Cloud (port 9440)
	if cfg.Secure {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, apierror.ClientInit("invalid connection options", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, classifyClickHouseInitError(err)
	}

	return &ClickHouseClient{log: log, conn: conn}, nil
}

// NewClickHouseClientFromConn wraps an existing connection.
func NewClickHouseClientFromConn(log *slog.Logger, conn driver.Conn) *ClickHouseClient {
	return &ClickHouseClient{log: log, conn: conn}
}

func (c *ClickHouseClient) Engine() string {
	return EngineClickHouse
}

func (c *ClickHouseClient) Close() error {
	return c.conn.Close()
}

func (c *ClickHouseClient) Query(ctx context.Context, sql string) (*Result, error) {
	sql = strings.TrimSuffix(strings.TrimSpace(sql), ";")

	rows, err := c.conn.Query(ctx, sql)
	if err != nil {
		return nil, classifyClickHouseQueryError(err)
	}
	defer rows.Close()

	columnTypes := rows.ColumnTypes()
	columns := make([]string, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = ct.Name()
	}

	result := &Result{Columns: columns, Rows: []Row{}}
	for rows.Next() {
		// Create properly typed values based on column types
		values := make([]any, len(columnTypes))
		for i, ct := range columnTypes {
			values[i] = reflect.New(ct.ScanType()).Interface()
		}

		if err := rows.Scan(values...); err != nil {
			return nil, apierror.QueryExecution("failed to read query results", err)
		}

		row := make([]any, len(values))
		for i, v := range values {
			row[i] = toJSONSafe(reflect.ValueOf(v).Elem().Interface())
		}
		result.Rows = append(result.Rows, NewRow(columns, row))
	}

	if err := rows.Err(); err != nil {
		return nil, classifyClickHouseQueryError(err)
	}

	return result, nil
}

func classifyClickHouseQueryError(err error) error {
	var exception *clickhouse.Exception
	if errors.As(err, &exception) {
		if clickHouseSyntaxCodes[exception.Code] {
			return apierror.QuerySyntax(err)
		}
		return apierror.QueryExecution(fmt.Sprintf("clickhouse error: unable to execute the query (code %d)", exception.Code), err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return apierror.QueryExecution("unknown error occurred while executing the query", err)
}

func classifyClickHouseInitError(err error) error {
	var exception *clickhouse.Exception
	if errors.As(err, &exception) {
		if clickHouseAuthCodes[exception.Code] {
			return apierror.ClientInit("authentication failed", err)
		}
		return apierror.ClientInit("server rejected connection", err)
	}
	return apierror.ClientInit("remote API unreachable", err)
}
