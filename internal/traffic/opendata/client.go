// Package opendata provides a client for the municipal open-data portal
// publishing the street segment catalog and the live congestion feed.
package opendata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/trafigo/trafigo/internal/provider/resilience"
	"github.com/trafigo/trafigo/internal/traffic"
)

// ProviderName identifies this provider.
const ProviderName = "opendata"

// ClientConfig holds configuration for the open-data client.
type ClientConfig struct {
	// SegmentsURL is the URL of the street segment catalog feed.
	SegmentsURL string

	// CongestionURL is the URL of the live congestion feed.
	CongestionURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client is created.
	HTTPClient HTTPDoer

	// Timeout for individual feed requests (default: 15s).
	Timeout time.Duration

	// Logger for parse diagnostics.
	Logger zerolog.Logger
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client downloads and parses the segment and congestion feeds.
type Client struct {
	segmentsURL   string
	congestionURL string
	httpClient    HTTPDoer
	logger        zerolog.Logger
}

// NewClient creates a new open-data feed client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})
	}

	return &Client{
		segmentsURL:   cfg.SegmentsURL,
		congestionURL: cfg.CongestionURL,
		httpClient:    httpClient,
		logger:        cfg.Logger,
	}
}

// FetchSegments downloads the street segment catalog.
// Rows that fail to parse are skipped and counted in the returned stats.
func (c *Client) FetchSegments(ctx context.Context) ([]traffic.Segment, *traffic.FeedStats, error) {
	body, err := c.fetch(ctx, c.segmentsURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: segments: %s", traffic.ErrFeedUnavailable, err)
	}
	defer body.Close()

	return c.parseSegments(body)
}

// FetchCongestion downloads the live congestion feed.
// Rows that fail to parse are skipped and counted in the returned stats.
func (c *Client) FetchCongestion(ctx context.Context) ([]traffic.CongestionSample, *traffic.FeedStats, error) {
	body, err := c.fetch(ctx, c.congestionURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: congestion: %s", traffic.ErrFeedUnavailable, err)
	}
	defer body.Close()

	return c.parseCongestion(body)
}

func (c *Client) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from feed", resp.StatusCode)
	}

	return resp.Body, nil
}

// parseSegments reads the comma-delimited segment catalog. The first
// row is a header. Each data row is (id, name, coordinate list), where
// the coordinate list is a comma-separated string of alternating
// lon/lat values inside one quoted field.
func (c *Client) parseSegments(r io.Reader) ([]traffic.Segment, *traffic.FeedStats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	stats := &traffic.FeedStats{FetchedAt: time.Now()}
	var segments []traffic.Segment
	header := true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if header {
			// The header line is spent on the first read attempt even
			// when it fails to parse, so a data row is never mistaken
			// for it.
			header = false
			continue
		}
		if err != nil {
			stats.Rows++
			stats.Skipped++
			continue
		}
		stats.Rows++

		if len(record) != 3 {
			stats.Skipped++
			continue
		}

		geometry, err := parseCoordinateList(record[2])
		if err != nil {
			stats.Skipped++
			continue
		}

		segments = append(segments, traffic.Segment{
			ID:       record[0],
			Name:     record[1],
			Geometry: geometry,
		})
	}

	if stats.Skipped > 0 {
		c.logger.Warn().
			Int("rows", stats.Rows).
			Int("skipped", stats.Skipped).
			Msg("segment feed contained malformed rows")
	}

	if len(segments) == 0 {
		return nil, stats, traffic.ErrEmptyFeed
	}
	return segments, stats, nil
}

// parseCongestion reads the '#'-delimited congestion feed. Rows are
// (segment id, timestamp, usual level, actual level) with no header.
func (c *Client) parseCongestion(r io.Reader) ([]traffic.CongestionSample, *traffic.FeedStats, error) {
	reader := csv.NewReader(r)
	reader.Comma = '#'
	reader.FieldsPerRecord = -1

	stats := &traffic.FeedStats{FetchedAt: time.Now()}
	var samples []traffic.CongestionSample

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.Rows++
			stats.Skipped++
			continue
		}
		stats.Rows++

		sample, ok := parseCongestionRow(record)
		if !ok {
			stats.Skipped++
			continue
		}
		samples = append(samples, sample)
	}

	if stats.Skipped > 0 {
		c.logger.Warn().
			Int("rows", stats.Rows).
			Int("skipped", stats.Skipped).
			Msg("congestion feed contained malformed rows")
	}

	if len(samples) == 0 {
		return nil, stats, traffic.ErrEmptyFeed
	}
	return samples, stats, nil
}

// congestionTimeLayout is the compact timestamp format used by the feed.
const congestionTimeLayout = "20060102150405"

func parseCongestionRow(record []string) (traffic.CongestionSample, bool) {
	if len(record) != 4 {
		return traffic.CongestionSample{}, false
	}

	ts, err := time.Parse(congestionTimeLayout, record[1])
	if err != nil {
		return traffic.CongestionSample{}, false
	}

	usual, err := parseLevel(record[2])
	if err != nil {
		return traffic.CongestionSample{}, false
	}
	actual, err := parseLevel(record[3])
	if err != nil {
		return traffic.CongestionSample{}, false
	}

	return traffic.CongestionSample{
		SegmentID: record[0],
		Timestamp: ts,
		Usual:     usual,
		Actual:    actual,
	}, true
}

func parseLevel(s string) (traffic.Level, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return traffic.LevelNoData, err
	}
	level := traffic.Level(n)
	if !level.Valid() {
		return traffic.LevelNoData, fmt.Errorf("congestion level %d out of range", n)
	}
	return level, nil
}

// parseCoordinateList decodes "lon,lat,lon,lat,..." into points.
func parseCoordinateList(s string) ([]traffic.Point, error) {
	reader := csv.NewReader(strings.NewReader(s))
	fields, err := reader.Read()
	if err != nil {
		return nil, err
	}
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("odd coordinate count %d", len(fields))
	}

	points := make([]traffic.Point, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		lon, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		lat, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return nil, err
		}
		points = append(points, traffic.Point{Lon: lon, Lat: lat})
	}
	return points, nil
}
