package nominatim_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafigo/trafigo/internal/geocode"
	"github.com/trafigo/trafigo/internal/geocode/nominatim"
)

func TestClient_Geocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Sagrada Familia", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"41.4036","lon":"2.1744","display_name":"Basilica de la Sagrada Familia, Barcelona"}]`))
	}))
	defer server.Close()

	client := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	loc, err := client.Geocode(context.Background(), "Sagrada Familia")
	require.NoError(t, err)
	assert.InDelta(t, 41.4036, loc.Lat, 1e-6)
	assert.InDelta(t, 2.1744, loc.Lon, 1e-6)
	assert.Contains(t, loc.DisplayName, "Sagrada Familia")
}

func TestClient_Geocode_ViewBoxBias(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2.05,41.32,2.23,41.47", r.URL.Query().Get("viewbox"))
		assert.Equal(t, "1", r.URL.Query().Get("bounded"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"41.38","lon":"2.17","display_name":"Barcelona"}]`))
	}))
	defer server.Close()

	client := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:    server.URL,
		ViewBox:    "2.05,41.32,2.23,41.47",
		HTTPClient: http.DefaultClient,
	})

	_, err := client.Geocode(context.Background(), "Gran Via")
	require.NoError(t, err)
}

func TestClient_Geocode_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	_, err := client.Geocode(context.Background(), "nowhere at all")
	require.Error(t, err)
	assert.ErrorIs(t, err, geocode.ErrNotFound)
}

func TestClient_Geocode_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	_, err := client.Geocode(context.Background(), "Gran Via")
	require.Error(t, err)
	assert.ErrorIs(t, err, geocode.ErrUnavailable)
}
