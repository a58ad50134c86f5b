package roadnet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Provider defines the interface for base network providers.
type Provider interface {
	// FetchNetwork downloads the drivable road network for a place.
	FetchNetwork(ctx context.Context, place string) (*Network, error)
	// Name returns the provider identifier for logging and health reporting.
	Name() string
}

// Repository persists fetched networks so restarts do not refetch the
// whole city from the provider.
type Repository interface {
	// LoadNetwork returns the cached network for a place, or
	// ErrNetworkNotFound when none is stored.
	LoadNetwork(ctx context.Context, place string) (*Network, error)
	// SaveNetwork stores a network, replacing any previous one for the
	// same place.
	SaveNetwork(ctx context.Context, network *Network) error
}

// ServiceConfig holds configuration for the base network service.
type ServiceConfig struct {
	// Provider is the base network source.
	Provider Provider

	// Repository caches fetched networks. Optional; when nil every
	// GetNetwork call goes to the provider.
	Repository Repository

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service provides cache-through access to base road networks.
type Service struct {
	provider Provider
	repo     Repository
	logger   zerolog.Logger
}

// NewService creates a new base network service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		provider: cfg.Provider,
		repo:     cfg.Repository,
		logger:   cfg.Logger,
	}
}

// GetNetwork returns the road network for a place, from the repository
// when available, otherwise fetched from the provider and stored.
func (s *Service) GetNetwork(ctx context.Context, place string) (*Network, error) {
	if s.repo != nil {
		network, err := s.repo.LoadNetwork(ctx, place)
		if err == nil {
			s.logger.Info().
				Str("place", place).
				Int("nodes", network.NodeCount()).
				Int("edges", network.EdgeCount()).
				Time("fetched_at", network.FetchedAt).
				Msg("base network loaded from cache")
			return network, nil
		}
		if !errors.Is(err, ErrNetworkNotFound) {
			s.logger.Warn().Err(err).Str("place", place).Msg("network cache read failed, fetching from provider")
		}
	}

	network, err := s.provider.FetchNetwork(ctx, place)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNetworkUnavailable, err)
	}
	if network.FetchedAt.IsZero() {
		network.FetchedAt = time.Now()
	}

	s.logger.Info().
		Str("place", place).
		Str("provider", s.provider.Name()).
		Int("nodes", network.NodeCount()).
		Int("edges", network.EdgeCount()).
		Msg("base network fetched from provider")

	if s.repo != nil {
		if err := s.repo.SaveNetwork(ctx, network); err != nil {
			// Cache writes are best effort; the fetched network is still valid.
			s.logger.Warn().Err(err).Str("place", place).Msg("failed to cache base network")
		}
	}

	return network, nil
}
