// Package geocode resolves free-text place queries to coordinates so
// routing requests can name places instead of raw lon/lat pairs.
package geocode

import (
	"context"
	"errors"
)

// Sentinel errors for geocoding.
var (
	// ErrNotFound indicates the query matched no place.
	ErrNotFound = errors.New("geocode: place not found")
	// ErrUnavailable indicates the geocoding backend could not be reached.
	ErrUnavailable = errors.New("geocode: backend unavailable")
)

// Location is a resolved place.
type Location struct {
	Lon         float64 `json:"lon"`
	Lat         float64 `json:"lat"`
	DisplayName string  `json:"display_name"`
}

// Geocoder resolves a free-text query to a location.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Location, error)
	Name() string
}
