// Package worker provides background graph maintenance for trafigo.
package worker

import (
	"time"
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Probe is a route planned after a rebuild to verify the published
// graph actually routes. Endpoints are well-known places in the
// configured city.
type Probe struct {
	// Name is the human-readable name of the probe.
	Name string

	Origin      Point
	Destination Point
}

// RebuildConfig holds configuration for the graph rebuild job.
type RebuildConfig struct {
	// Interval between scheduled rebuilds. Matches the staleness
	// threshold so queries rarely have to rebuild inline.
	// Default: 5 minutes
	Interval time.Duration

	// Timeout for a single rebuild (feed fetch plus build).
	// Default: 2 minutes
	Timeout time.Duration

	// Probes are planned after each rebuild when a planner is
	// configured. If empty, uses DefaultProbes.
	Probes []Probe
}

// DefaultRebuildConfig returns the default rebuild configuration.
func DefaultRebuildConfig() RebuildConfig {
	return RebuildConfig{
		Interval: 5 * time.Minute,
		Timeout:  2 * time.Minute,
		Probes:   DefaultProbes(),
	}
}

// DefaultProbes returns the default probe routes for Barcelona,
// crossing the city in different directions.
func DefaultProbes() []Probe {
	return []Probe{
		{
			Name:        "catalunya-sagrada-familia",
			Origin:      Point{Lat: 41.3870, Lon: 2.1701}, // Placa de Catalunya
			Destination: Point{Lat: 41.4036, Lon: 2.1744}, // Sagrada Familia
		},
		{
			Name:        "sants-barceloneta",
			Origin:      Point{Lat: 41.3792, Lon: 2.1400}, // Sants Estacio
			Destination: Point{Lat: 41.3809, Lon: 2.1896}, // Barceloneta
		},
		{
			Name:        "camp-nou-glories",
			Origin:      Point{Lat: 41.3809, Lon: 2.1228}, // Camp Nou
			Destination: Point{Lat: 41.4036, Lon: 2.1870}, // Placa de les Glories
		},
	}
}

// withDefaults fills in zero-valued fields.
func (c RebuildConfig) withDefaults() RebuildConfig {
	if c.Interval == 0 {
		c.Interval = 5 * time.Minute
	}
	if c.Timeout == 0 {
		c.Timeout = 2 * time.Minute
	}
	if len(c.Probes) == 0 {
		c.Probes = DefaultProbes()
	}
	return c
}
