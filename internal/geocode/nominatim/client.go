// Package nominatim implements geocoding against the OSM Nominatim API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/trafigo/trafigo/internal/geocode"
	"github.com/trafigo/trafigo/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the public Nominatim instance.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// ProviderName identifies this provider.
	ProviderName = "nominatim"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL of the Nominatim instance (defaults to DefaultBaseURL).
	BaseURL string

	// UserAgent sent with every request; the public instance requires
	// an identifying agent.
	UserAgent string

	// ViewBox biases results towards a bounding box, typically the
	// routed city ("lon1,lat1,lon2,lat2"). Empty disables the bias.
	ViewBox string

	// HTTPClient is the HTTP client to use. If nil, a default
	// resilient client is created.
	HTTPClient HTTPDoer

	// Timeout for search requests (default: 10s).
	Timeout time.Duration
}

// Client geocodes against Nominatim.
type Client struct {
	baseURL    string
	userAgent  string
	viewBox    string
	httpClient HTTPDoer
}

// NewClient creates a Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "trafigo/1.0"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:    ProviderName,
			Timeout: timeout,
		})
	}

	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		viewBox:    cfg.ViewBox,
		httpClient: httpClient,
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return ProviderName
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves a free-text query to its best-ranked location.
func (c *Client) Geocode(ctx context.Context, query string) (geocode.Location, error) {
	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	if c.viewBox != "" {
		params.Set("viewbox", c.viewBox)
		params.Set("bounded", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return geocode.Location{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geocode.Location{}, fmt.Errorf("%w: %w", geocode.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geocode.Location{}, fmt.Errorf("%w: status %d", geocode.ErrUnavailable, resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return geocode.Location{}, fmt.Errorf("decode response: %w", err)
	}
	if len(results) == 0 {
		return geocode.Location{}, fmt.Errorf("%w: %q", geocode.ErrNotFound, query)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return geocode.Location{}, fmt.Errorf("parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return geocode.Location{}, fmt.Errorf("parse lon: %w", err)
	}

	return geocode.Location{
		Lon:         lon,
		Lat:         lat,
		DisplayName: results[0].DisplayName,
	}, nil
}
