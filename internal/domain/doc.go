// Package domain models the messages exchanged by the verification service.
//
// # Requests
//
// A [MetricRequest] asks for one verification metric over a time window:
//
//	{"metric": "heidke-1-5-10-20", "variable": "precip", "agg_days": 7,
//	 "forecasts": ["salient", "ecmwf_ifs_er"], "truth": "era5", "grid": "global1_5",
//	 "start": "2022-01-01T00:00:00Z", "end": "2022-12-31T00:00:00Z",
//	 "space_grouping": "continents", "time_grouping": "month_of_year"}
//
// The metric name carries its data key after the first dash: bin edges for
// categorical metrics. Each listed forecast is evaluated independently so one
// request yields a summary table across forecasts.
//
// # Results
//
// A [MetricResult] carries one [ForecastResult] per forecast with a status of
// ok, not_implemented, configuration, data_unavailable or internal. Values are
// laid out (lead, time group, cell) with nulls for invalidated groups.
//
// # ID Generation
//
// Request IDs default to a SHA-256 digest of the request fields so replays of
// the same request land on the same Kafka key. See [RequestID].
package domain
