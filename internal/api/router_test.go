package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafigo/trafigo/internal/api"
	"github.com/trafigo/trafigo/internal/api/models"
	"github.com/trafigo/trafigo/internal/auth"
	"github.com/trafigo/trafigo/internal/fusion"
	"github.com/trafigo/trafigo/internal/planner"
	"github.com/trafigo/trafigo/internal/roadnet"
	"github.com/trafigo/trafigo/internal/traffic"
)

type stubFeed struct {
	samples []traffic.CongestionSample
	err     error
}

func (f *stubFeed) FetchCongestion(_ context.Context) ([]traffic.CongestionSample, *traffic.FeedStats, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.samples, &traffic.FeedStats{Rows: len(f.samples), FetchedAt: time.Now()}, nil
}

func testBase() *roadnet.Network {
	n := roadnet.NewNetwork("testville")
	n.AddNode(roadnet.Node{ID: 1, Lon: 2.150, Lat: 41.380})
	n.AddNode(roadnet.Node{ID: 2, Lon: 2.151, Lat: 41.381})
	n.AddNode(roadnet.Node{ID: 3, Lon: 2.152, Lat: 41.382})
	for _, e := range []roadnet.Edge{
		{From: 1, To: 2, LengthMeters: 100},
		{From: 2, To: 3, LengthMeters: 100},
		{From: 2, To: 1, LengthMeters: 100},
		{From: 3, To: 2, LengthMeters: 100},
	} {
		if err := n.AddEdge(e); err != nil {
			panic(err)
		}
	}
	return n
}

func testTokens() *auth.TokenService {
	return auth.NewTokenService(auth.TokenConfig{
		SigningKey: "router-test-key",
		Issuer:     "https://api.test.local",
		Audience:   "trafigo-api",
	})
}

// newTestRouter wires a full stack on a tiny network, with a warm graph.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	base := testBase()
	graphs := fusion.NewService(fusion.ServiceConfig{
		Base:       base,
		Congestion: &stubFeed{},
	})
	require.NoError(t, graphs.Rebuild(context.Background()))

	plannerService := planner.NewService(planner.ServiceConfig{Graphs: graphs})

	return api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "now",
		Logger:    zerolog.Nop(),
		Tokens:    testTokens(),
		Planner:   plannerService,
		Graphs:    graphs,
	})
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_Ready(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Ready_NoGraph(t *testing.T) {
	graphs := fusion.NewService(fusion.ServiceConfig{
		Base:       testBase(),
		Congestion: &stubFeed{err: traffic.ErrFeedUnavailable},
	})
	router := api.NewRouter(api.RouterConfig{
		Logger:  zerolog.Nop(),
		Tokens:  testTokens(),
		Planner: planner.NewService(planner.ServiceConfig{Graphs: graphs}),
		Graphs:  graphs,
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_PlanRoute(t *testing.T) {
	router := newTestRouter(t)

	body, _ := json.Marshal(models.PlanRouteRequest{
		Origin:      models.RouteEndpoint{Point: &models.Point{Lat: 41.380, Lon: 2.150}},
		Destination: models.RouteEndpoint{Point: &models.Point{Lat: 41.382, Lon: 2.152}},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:plan", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.PlanRouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Waypoints, 3)
	assert.NotEmpty(t, resp.Polyline)
	assert.Greater(t, resp.TravelTime, 0.0)
	assert.InDelta(t, 200.0, resp.DistanceMeters, 1e-9)
}

func TestRouter_PlanRoute_MissingEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body := []byte(`{"origin":{"point":{"lat":41.38,"lon":2.15}},"destination":{}}`)

	req := httptest.NewRequest(http.MethodPost, "/v1/routes:plan", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "destination")
}

func TestRouter_Status(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.True(t, status.Graph.Available)
	assert.Equal(t, 3, status.Graph.Nodes)
	assert.Equal(t, 4, status.Graph.Edges)
}

func TestRouter_AdminRebuild_RequiresToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/graph:rebuild", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_AdminRebuild(t *testing.T) {
	router := newTestRouter(t)

	token, _, err := testTokens().Generate("trafigo-worker")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/graph:rebuild", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.RebuildResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.HealthStatusOK, resp.Status)
	assert.True(t, resp.Graph.Available)
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
