package queries

import (
	"fmt"
	"regexp"

	"github.com/playlake/dashboard/api/apierror"
)

// Period selects the time window a dashboard widget covers.
type Period string

const (
	PeriodLast24  Period = "last_24"
	PeriodAllTime Period = "all_time"
)

// ParsePeriod validates a raw path parameter.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case PeriodLast24, PeriodAllTime:
		return p, nil
	default:
		return "", apierror.InvalidArgument("invalid period %q: must be %q or %q", s, PeriodLast24, PeriodAllTime)
	}
}

// Endpoint names one dashboard widget and therefore one query template.
type Endpoint string

const (
	EndpointScorecards      Endpoint = "scorecards"
	EndpointBars            Endpoint = "bars"
	EndpointPieContext      Endpoint = "pie_context"
	EndpointPieArtists      Endpoint = "pie_artists"
	EndpointPieReleaseYears Endpoint = "pie_release_years"
	EndpointTable           Endpoint = "table"
)

// Endpoints lists every widget in route order.
var Endpoints = []Endpoint{
	EndpointScorecards,
	EndpointBars,
	EndpointPieContext,
	EndpointPieArtists,
	EndpointPieReleaseYears,
	EndpointTable,
}

// Dialect is the SQL flavour of the warehouse the templates run against.
type Dialect string

const (
	DialectBigQuery   Dialect = "bigquery"
	DialectClickHouse Dialect = "clickhouse"
)

// Tables holds the physical table identifiers behind each period.
type Tables struct {
	// Last24 is the rolling 24 hour plays table.
	Last24 string
	// Full is the full play history.
	Full string
	// AvgHours is the pre-aggregated average plays per hour of day.
	AvgHours string
}

// TrackURLPrefix is prepended to a track id to build its public link.
const TrackURLPrefix = "https://open.spotify.com/track/"

// BigQuery identifiers are backquoted in the templates, so project ids may
// carry hyphens. ClickHouse splices them bare: [database.]table only.
var tableIdentPatterns = map[Dialect]*regexp.Regexp{
	DialectBigQuery:   regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`),
	DialectClickHouse: regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`),
}

// ValidTableIdent reports whether s can be spliced into a template of the
// given dialect.
func ValidTableIdent(dialect Dialect, s string) bool {
	pattern, ok := tableIdentPatterns[dialect]
	if !ok {
		return false
	}
	return pattern.MatchString(s)
}

// Resolve picks the table for an endpoint and period.
func (t Tables) Resolve(endpoint Endpoint, period Period) string {
	if period == PeriodLast24 {
		return t.Last24
	}
	if endpoint == EndpointBars {
		return t.AvgHours
	}
	return t.Full
}

type templateSet map[Endpoint]map[Period]string

var templatesByDialect = map[Dialect]templateSet{
	DialectBigQuery:   bigQueryTemplates,
	DialectClickHouse: clickHouseTemplates,
}

// Dispatcher renders the SQL for an endpoint and period. It holds no state
// beyond its configuration and is safe for concurrent use.
type Dispatcher struct {
	dialect   Dialect
	tables    Tables
	templates templateSet
}

func NewDispatcher(dialect Dialect, tables Tables) (*Dispatcher, error) {
	templates, ok := templatesByDialect[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	return &Dispatcher{dialect: dialect, tables: tables, templates: templates}, nil
}

func (d *Dispatcher) Dialect() Dialect {
	return d.dialect
}

// Render returns the SQL for the endpoint and raw period string. An
// unrecognized period fails with InvalidArgument before anything else is
// looked at; a missing table fails with Misconfigured.
func (d *Dispatcher) Render(endpoint Endpoint, rawPeriod string) (string, error) {
	period, err := ParsePeriod(rawPeriod)
	if err != nil {
		return "", err
	}

	byPeriod, ok := d.templates[endpoint]
	if !ok {
		return "", apierror.Misconfigured("no query template for endpoint %q", endpoint)
	}
	tmpl := byPeriod[period]

	table := d.tables.Resolve(endpoint, period)
	if table == "" {
		return "", apierror.Misconfigured("no table configured for %s/%s", endpoint, period)
	}
	if !ValidTableIdent(d.dialect, table) {
		return "", apierror.Misconfigured("invalid table identifier for %s/%s", endpoint, period)
	}

	return fmt.Sprintf(tmpl, table), nil
}
