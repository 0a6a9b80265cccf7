package models

import "time"

// StopSummary is the list representation of a stop.
type StopSummary struct {
	ID   int64    `db:"id" json:"id"`
	Name *string  `db:"name" json:"name"`
	Lat  *float64 `db:"lat" json:"lat"`
	Lon  *float64 `db:"lon" json:"lon"`
}

// NearbyStop is a stop together with its distance from a query point.
type NearbyStop struct {
	ID             int64   `json:"id"`
	Name           *string `json:"name"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// LineRef is the short form of a line embedded in other responses.
type LineRef struct {
	ID     int64   `db:"id" json:"id"`
	Name   *string `db:"name" json:"name"`
	Number *string `db:"number" json:"number"`
}

// StopVisit is a stop connection as seen from the stop detail endpoint.
type StopVisit struct {
	ID        int64    `json:"id"`
	Arrival   *string  `json:"arrival"`
	Departure *string  `json:"departure"`
	Line      *LineRef `json:"line"`
}

// StopDetail is a stop with every stop connection that visits it.
type StopDetail struct {
	ID             int64       `json:"id"`
	NameNormalized *string     `json:"nameNormalized"`
	Lat            *float64    `json:"lat"`
	Lon            *float64    `json:"lon"`
	Visits         []StopVisit `json:"stopConnections"`
}

// CarrierLines is a carrier with the lines it operates.
type CarrierLines struct {
	ID      int64     `json:"id"`
	Name    *string   `json:"name"`
	Website *string   `json:"website"`
	Lines   []LineRef `json:"lines"`
}

// ImportRun records the outcome of one import attempt.
type ImportRun struct {
	RunID           string    `db:"run_id" json:"runId"`
	Version         *string   `db:"version" json:"version"`
	VersionDate     *Date     `db:"version_date" json:"versionDate"`
	State           string    `db:"state" json:"state"`
	FailedStage     *string   `db:"failed_stage" json:"failedStage,omitempty"`
	Error           *string   `db:"error" json:"error,omitempty"`
	Carriers        int       `db:"carriers" json:"carriers"`
	Lines           int       `db:"lines" json:"lines"`
	Stops           int       `db:"stops" json:"stops"`
	Codes           int       `db:"codes" json:"codes"`
	Connections     int       `db:"connections" json:"connections"`
	StopConnections int       `db:"stop_connections" json:"stopConnections"`
	StartedAt       time.Time `db:"started_at" json:"startedAt"`
	FinishedAt      time.Time `db:"finished_at" json:"finishedAt"`
}
