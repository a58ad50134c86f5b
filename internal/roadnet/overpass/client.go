// Package overpass provides a base network provider backed by the
// Overpass API, building a drivable road network from OpenStreetMap.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/trafigo/trafigo/internal/provider/resilience"
	"github.com/trafigo/trafigo/internal/roadnet"
)

const (
	// DefaultBaseURL is the public Overpass API interpreter.
	DefaultBaseURL = "https://overpass-api.de/api/interpreter"

	// ProviderName identifies this provider.
	ProviderName = "overpass"
)

// drivableHighways lists the OSM highway classes included in the
// network, matching a car-oriented street graph.
const drivableHighways = "motorway|trunk|primary|secondary|tertiary|unclassified|residential|living_street|motorway_link|trunk_link|primary_link|secondary_link|tertiary_link"

// ClientConfig holds configuration for the Overpass client.
type ClientConfig struct {
	// BaseURL is the interpreter URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client is created.
	HTTPClient HTTPDoer

	// Timeout for the interpreter request (default: 120s; city-sized
	// extracts are large).
	Timeout time.Duration
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches road networks from the Overpass API.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a new Overpass client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 120 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:       ProviderName,
			Timeout:    timeout,
			MaxRetries: 2,
		})
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return ProviderName
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type  string            `json:"type"`
	ID    int64             `json:"id"`
	Lat   float64           `json:"lat"`
	Lon   float64           `json:"lon"`
	Nodes []int64           `json:"nodes"`
	Tags  map[string]string `json:"tags"`
}

// FetchNetwork downloads the drivable road network for a place.
func (c *Client) FetchNetwork(ctx context.Context, place string) (*roadnet.Network, error) {
	query := fmt.Sprintf(`[out:json][timeout:120];
area[name=%q]->.a;
way["highway"~"^(%s)$"](area.a);
(._;>;);
out body;`, place, drivableHighways)

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch network: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from overpass", resp.StatusCode)
	}

	var result overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	return buildNetwork(place, result.Elements), nil
}

// buildNetwork assembles a directed network from Overpass elements:
// nodes first, then one directed edge per consecutive node pair of
// each way (both directions unless the way is one-way).
func buildNetwork(place string, elements []overpassElement) *roadnet.Network {
	network := roadnet.NewNetwork(place)
	network.FetchedAt = time.Now()

	for _, el := range elements {
		if el.Type == "node" {
			network.AddNode(roadnet.Node{
				ID:  roadnet.NodeID(el.ID),
				Lon: el.Lon,
				Lat: el.Lat,
			})
		}
	}

	for _, el := range elements {
		if el.Type != "way" || len(el.Nodes) < 2 {
			continue
		}

		speeds := parseMaxSpeeds(el.Tags["maxspeed"])
		forward, backward := wayDirections(el.Tags)

		for i := 0; i+1 < len(el.Nodes); i++ {
			from := roadnet.NodeID(el.Nodes[i])
			to := roadnet.NodeID(el.Nodes[i+1])

			a, okA := network.Node(from)
			b, okB := network.Node(to)
			if !okA || !okB {
				continue
			}

			length := roadnet.Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
			if forward {
				_ = network.AddEdge(roadnet.Edge{
					From:         from,
					To:           to,
					LengthMeters: length,
					MaxSpeeds:    speeds,
					Bearing:      roadnet.InitialBearing(a.Lat, a.Lon, b.Lat, b.Lon),
				})
			}
			if backward {
				_ = network.AddEdge(roadnet.Edge{
					From:         to,
					To:           from,
					LengthMeters: length,
					MaxSpeeds:    speeds,
					Bearing:      roadnet.InitialBearing(b.Lat, b.Lon, a.Lat, a.Lon),
				})
			}
		}
	}

	return network
}

// wayDirections interprets the one-way tagging of a way.
func wayDirections(tags map[string]string) (forward, backward bool) {
	switch tags["oneway"] {
	case "yes", "true", "1":
		return true, false
	case "-1":
		return false, true
	}
	if tags["junction"] == "roundabout" {
		return true, false
	}
	return true, true
}

// parseMaxSpeeds decodes an OSM maxspeed tag into km/h values. Ways
// tagged with two values (separated by ';') keep both, modelling a
// free-flow and a congested speed.
func parseMaxSpeeds(tag string) []float64 {
	if tag == "" {
		return nil
	}

	var speeds []float64
	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		mph := strings.HasSuffix(part, "mph")
		part = strings.TrimSpace(strings.TrimSuffix(part, "mph"))

		value, err := strconv.ParseFloat(part, 64)
		if err != nil {
			continue
		}
		if mph {
			value *= 1.609344
		}
		speeds = append(speeds, value)

		if len(speeds) == 2 {
			break
		}
	}
	return speeds
}
