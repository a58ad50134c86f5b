// Package traffic provides the street segment catalog and the live
// congestion feed domain: segments with their geometries, per-segment
// congestion samples, and the reconciliation of usual vs. actual levels.
package traffic

import (
	"errors"
	"time"
)

// Sentinel errors for traffic feed operations.
var (
	// ErrFeedUnavailable indicates the segment or congestion feed could not be fetched.
	ErrFeedUnavailable = errors.New("traffic feed unavailable")
	// ErrEmptyFeed indicates the feed was reachable but contained no usable rows.
	ErrEmptyFeed = errors.New("traffic feed contained no usable rows")
)

// Level is a congestion level as reported by the congestion feed.
//
//	0 - no data
//	1 - very fluid
//	2 - fluid
//	3 - dense
//	4 - very dense
//	5 - congested
//	6 - blocked (street cut)
type Level int

// Congestion levels.
const (
	LevelNoData    Level = 0
	LevelVeryFluid Level = 1
	LevelFluid     Level = 2
	LevelDense     Level = 3
	LevelVeryDense Level = 4
	LevelCongested Level = 5
	LevelBlocked   Level = 6
)

// Valid reports whether l is inside the feed's 0..6 range.
func (l Level) Valid() bool {
	return l >= LevelNoData && l <= LevelBlocked
}

// String returns a human-readable name for the level.
func (l Level) String() string {
	switch l {
	case LevelNoData:
		return "no-data"
	case LevelVeryFluid:
		return "very-fluid"
	case LevelFluid:
		return "fluid"
	case LevelDense:
		return "dense"
	case LevelVeryDense:
		return "very-dense"
	case LevelCongested:
		return "congested"
	case LevelBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Point is a geographic coordinate in the segment feed's lon/lat order.
type Point struct {
	Lon float64
	Lat float64
}

// Segment is a named street element with an explicit geometry, sourced
// independently of the base road network. Consecutive coordinate pairs
// describe connected sub-segments. Immutable once parsed.
type Segment struct {
	// ID is the opaque segment identifier shared with the congestion feed.
	ID string

	// Name is the street name as published by the feed.
	Name string

	// Geometry is the ordered coordinate sequence describing the segment.
	Geometry []Point
}

// CongestionSample is one reading of the congestion feed for a segment.
// The feed delivers one current sample per segment; when duplicates
// appear the last row wins.
type CongestionSample struct {
	SegmentID string
	Timestamp time.Time
	Usual     Level
	Actual    Level
}

// FeedStats reports parse results for a single feed pull.
type FeedStats struct {
	// Rows is the number of data rows seen (excluding any header).
	Rows int `json:"rows"`
	// Skipped is the number of rows dropped because they failed to parse.
	Skipped int `json:"skipped"`
	// FetchedAt is when the feed was pulled.
	FetchedAt time.Time `json:"fetched_at"`
}
