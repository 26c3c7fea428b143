package queries

// GoogleSQL templates. Each takes exactly one table identifier.

const bqScorecards = `
	SELECT
		COUNT(track_id) AS count_tracks,
		COUNT(DISTINCT track_id) AS distinct_tracks,
		COUNT(DISTINCT track_artists_id) AS count_artists,
		SUM(track_duration_ms) AS total_duration_ms,
		AVG(track_popularity) AS avg_popularity
	FROM ` + "`%s`"

// Buckets are the 24 hours before now (offsets 1..24), so the current
// partial hour is never shown.
const bqBarsLast24 = `
	WITH hours AS (
		SELECT
			DATETIME_SUB(CURRENT_DATETIME('UTC'), INTERVAL hour_offset HOUR) AS date_played_at,
			EXTRACT(HOUR FROM DATETIME_SUB(CURRENT_DATETIME('UTC'), INTERVAL hour_offset HOUR)) AS hour_played_at
		FROM UNNEST(GENERATE_ARRAY(1, 24)) AS hour_offset
	)
	SELECT
		hours.date_played_at,
		hours.hour_played_at,
		COUNT(plays.track_id) AS track_count
	FROM hours
	LEFT JOIN ` + "`%s`" + ` AS plays
		ON DATE(plays.played_at) = DATE(hours.date_played_at)
		AND EXTRACT(HOUR FROM plays.played_at) = hours.hour_played_at
	GROUP BY hours.date_played_at, hours.hour_played_at
	ORDER BY hours.date_played_at, hours.hour_played_at`

const bqBarsAllTime = `
	SELECT hour_played_at, track_count
	FROM ` + "`%s`" + `
	ORDER BY hour_played_at`

const bqPieContext = `
	SELECT
		context_type AS category,
		COUNT(track_id) AS value
	FROM ` + "`%s`" + `
	GROUP BY context_type
	ORDER BY COUNT(track_id) DESC`

const bqPieArtists = `
	SELECT
		STRING_AGG(DISTINCT track_artists_name) AS category,
		COUNT(track_id) AS value
	FROM ` + "`%s`" + `
	GROUP BY track_artists_id
	ORDER BY COUNT(track_id) DESC
	LIMIT 20`

const bqPieReleaseYears = `
	SELECT
		CONCAT(SUBSTR(SPLIT(track_album_release_date, '-')[OFFSET(0)], 1, 3), '0s') AS category,
		COUNT(track_id) AS value
	FROM ` + "`%s`" + `
	GROUP BY category
	ORDER BY COUNT(track_id) DESC`

const bqTable = `
	SELECT
		STRING_AGG(DISTINCT track_album_images_url) AS album_image_url,
		STRING_AGG(DISTINCT track_name) AS track_name,
		STRING_AGG(DISTINCT track_album_name) AS album_name,
		STRING_AGG(DISTINCT track_artists_name) AS artist_name,
		CONCAT('` + TrackURLPrefix + `', track_id) AS track_url
	FROM ` + "`%s`" + `
	GROUP BY track_id
	ORDER BY COUNT(track_id) DESC, AVG(track_popularity) ASC
	LIMIT 5`

var bigQueryTemplates = templateSet{
	EndpointScorecards:      {PeriodLast24: bqScorecards, PeriodAllTime: bqScorecards},
	EndpointBars:            {PeriodLast24: bqBarsLast24, PeriodAllTime: bqBarsAllTime},
	EndpointPieContext:      {PeriodLast24: bqPieContext, PeriodAllTime: bqPieContext},
	EndpointPieArtists:      {PeriodLast24: bqPieArtists, PeriodAllTime: bqPieArtists},
	EndpointPieReleaseYears: {PeriodLast24: bqPieReleaseYears, PeriodAllTime: bqPieReleaseYears},
	EndpointTable:           {PeriodLast24: bqTable, PeriodAllTime: bqTable},
}
