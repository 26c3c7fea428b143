package queries

// ClickHouse templates. Each takes exactly one table identifier.

const chScorecards = `
	SELECT
		count(track_id) AS count_tracks,
		uniqExact(track_id) AS distinct_tracks,
		uniqExact(track_artists_id) AS count_artists,
		sum(track_duration_ms) AS total_duration_ms,
		avg(track_popularity) AS avg_popularity
	FROM %s`

// join_use_nulls makes unmatched buckets count zero instead of one
// default-valued row.
const chBarsLast24 = `
	WITH hours AS (
		SELECT toStartOfHour(now('UTC')) - toIntervalHour(number + 1) AS bucket_start
		FROM numbers(24)
	)
	SELECT
		bucket_start AS date_played_at,
		toHour(bucket_start) AS hour_played_at,
		count(plays.track_id) AS track_count
	FROM hours
	LEFT JOIN (
		SELECT track_id, toStartOfHour(toDateTime(played_at, 'UTC')) AS played_hour
		FROM %s
	) AS plays ON plays.played_hour = hours.bucket_start
	GROUP BY bucket_start
	ORDER BY bucket_start
	SETTINGS join_use_nulls = 1`

const chBarsAllTime = `
	SELECT hour_played_at, track_count
	FROM %s
	ORDER BY hour_played_at`

const chPieContext = `
	SELECT
		context_type AS category,
		count(track_id) AS value
	FROM %s
	GROUP BY context_type
	ORDER BY value DESC`

const chPieArtists = `
	SELECT
		arrayStringConcat(arraySort(groupUniqArray(track_artists_name)), ',') AS category,
		count(track_id) AS value
	FROM %s
	GROUP BY track_artists_id
	ORDER BY value DESC
	LIMIT 20`

const chPieReleaseYears = `
	SELECT
		concat(substring(splitByChar('-', track_album_release_date)[1], 1, 3), '0s') AS category,
		count(track_id) AS value
	FROM %s
	GROUP BY category
	ORDER BY value DESC`

const chTable = `
	SELECT
		arrayStringConcat(arraySort(groupUniqArray(track_album_images_url)), ',') AS album_image_url,
		arrayStringConcat(arraySort(groupUniqArray(track_name)), ',') AS track_name,
		arrayStringConcat(arraySort(groupUniqArray(track_album_name)), ',') AS album_name,
		arrayStringConcat(arraySort(groupUniqArray(track_artists_name)), ',') AS artist_name,
		concat('` + TrackURLPrefix + `', track_id) AS track_url
	FROM %s
	GROUP BY track_id
	ORDER BY count(track_id) DESC, avg(track_popularity) ASC
	LIMIT 5`

var clickHouseTemplates = templateSet{
	EndpointScorecards:      {PeriodLast24: chScorecards, PeriodAllTime: chScorecards},
	EndpointBars:            {PeriodLast24: chBarsLast24, PeriodAllTime: chBarsAllTime},
	EndpointPieContext:      {PeriodLast24: chPieContext, PeriodAllTime: chPieContext},
	EndpointPieArtists:      {PeriodLast24: chPieArtists, PeriodAllTime: chPieArtists},
	EndpointPieReleaseYears: {PeriodLast24: chPieReleaseYears, PeriodAllTime: chPieReleaseYears},
	EndpointTable:           {PeriodLast24: chTable, PeriodAllTime: chTable},
}
