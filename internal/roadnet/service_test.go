package roadnet_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafigo/trafigo/internal/roadnet"
)

type mockProvider struct {
	network    *roadnet.Network
	err        error
	fetchCount atomic.Int32
}

func (m *mockProvider) FetchNetwork(_ context.Context, _ string) (*roadnet.Network, error) {
	m.fetchCount.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.network, nil
}

func (m *mockProvider) Name() string { return "mock" }

type mockRepository struct {
	stored    map[string]*roadnet.Network
	loadErr   error
	saveErr   error
	saveCount atomic.Int32
}

func newMockRepository() *mockRepository {
	return &mockRepository{stored: make(map[string]*roadnet.Network)}
}

func (m *mockRepository) LoadNetwork(_ context.Context, place string) (*roadnet.Network, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	n, ok := m.stored[place]
	if !ok {
		return nil, roadnet.ErrNetworkNotFound
	}
	return n, nil
}

func (m *mockRepository) SaveNetwork(_ context.Context, network *roadnet.Network) error {
	m.saveCount.Add(1)
	if m.saveErr != nil {
		return m.saveErr
	}
	m.stored[network.Place] = network
	return nil
}

func smallNetwork(place string) *roadnet.Network {
	n := roadnet.NewNetwork(place)
	n.AddNode(roadnet.Node{ID: 1, Lon: 2.15, Lat: 41.38})
	n.AddNode(roadnet.Node{ID: 2, Lon: 2.16, Lat: 41.39})
	_ = n.AddEdge(roadnet.Edge{From: 1, To: 2, LengthMeters: 120})
	return n
}

func TestService_GetNetwork_FetchesAndCaches(t *testing.T) {
	provider := &mockProvider{network: smallNetwork("testville")}
	repo := newMockRepository()

	service := roadnet.NewService(roadnet.ServiceConfig{
		Provider:   provider,
		Repository: repo,
	})

	network, err := service.GetNetwork(context.Background(), "testville")
	require.NoError(t, err)
	assert.Equal(t, 2, network.NodeCount())
	assert.Equal(t, int32(1), provider.fetchCount.Load())
	assert.Equal(t, int32(1), repo.saveCount.Load())

	// Second call comes out of the repository.
	_, err = service.GetNetwork(context.Background(), "testville")
	require.NoError(t, err)
	assert.Equal(t, int32(1), provider.fetchCount.Load())
}

func TestService_GetNetwork_WrappedNotFoundIsCacheMiss(t *testing.T) {
	provider := &mockProvider{network: smallNetwork("testville")}
	repo := newMockRepository()
	repo.loadErr = fmt.Errorf("lookup testville: %w", roadnet.ErrNetworkNotFound)

	var logs bytes.Buffer
	service := roadnet.NewService(roadnet.ServiceConfig{
		Provider:   provider,
		Repository: repo,
		Logger:     zerolog.New(&logs),
	})

	network, err := service.GetNetwork(context.Background(), "testville")
	require.NoError(t, err)
	assert.Equal(t, 2, network.NodeCount())
	assert.Equal(t, int32(1), provider.fetchCount.Load())

	// A wrapped not-found is an ordinary cache miss, not a cache failure.
	assert.NotContains(t, logs.String(), "cache read failed")
}

func TestService_GetNetwork_ProviderError(t *testing.T) {
	provider := &mockProvider{err: errors.New("overpass timeout")}

	service := roadnet.NewService(roadnet.ServiceConfig{Provider: provider})

	_, err := service.GetNetwork(context.Background(), "testville")
	require.Error(t, err)
	assert.ErrorIs(t, err, roadnet.ErrNetworkUnavailable)
}

func TestService_GetNetwork_SaveFailureIsNotFatal(t *testing.T) {
	provider := &mockProvider{network: smallNetwork("testville")}
	repo := newMockRepository()
	repo.saveErr = errors.New("disk full")

	service := roadnet.NewService(roadnet.ServiceConfig{
		Provider:   provider,
		Repository: repo,
	})

	network, err := service.GetNetwork(context.Background(), "testville")
	require.NoError(t, err)
	assert.Equal(t, 2, network.NodeCount())
}
