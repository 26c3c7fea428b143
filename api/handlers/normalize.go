package handlers

import (
	"fmt"

	"github.com/playlake/dashboard/api/apierror"
	"github.com/playlake/dashboard/api/queries"
	"github.com/playlake/dashboard/api/warehouse"
)

// BarPoint is one bucket of the hourly histogram. Values are passed through
// as the warehouse returned them; the all-time table may hold averages.
type BarPoint struct {
	Hour  any `json:"hour"`
	Count any `json:"count"`
}

// Normalize reshapes a query result into the payload for endpoint.
func Normalize(endpoint queries.Endpoint, result *warehouse.Result) (any, error) {
	rows := []warehouse.Row{}
	if result != nil && result.Rows != nil {
		rows = result.Rows
	}

	switch endpoint {
	case queries.EndpointScorecards:
		if len(rows) == 0 {
			return nil, apierror.EmptyResult("no data found for scorecards")
		}
		return rows[0], nil

	case queries.EndpointBars:
		return normalizeBars(rows)

	default:
		return rows, nil
	}
}

func normalizeBars(rows []warehouse.Row) ([]BarPoint, error) {
	points := make([]BarPoint, 0, len(rows))
	for i, row := range rows {
		hour, ok := row.Get("hour_played_at")
		if !ok {
			return nil, apierror.QueryExecution(fmt.Sprintf("bars row %d has no hour_played_at column", i), nil)
		}
		count, ok := row.Get("track_count")
		if !ok {
			return nil, apierror.QueryExecution(fmt.Sprintf("bars row %d has no track_count column", i), nil)
		}
		points = append(points, BarPoint{Hour: hour, Count: count})
	}
	return points, nil
}
