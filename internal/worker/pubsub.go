package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	rebuildJob       *RebuildJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RebuildJob       *RebuildJob
	Logger           zerolog.Logger
}

// RebuildMessage represents a graph maintenance job message.
type RebuildMessage struct {
	JobType string `json:"job_type"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Rebuilds are serialized behind the fusion service, so there is
	// nothing to gain from handling messages concurrently.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		rebuildJob:       cfg.RebuildJob,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	var rebuildMsg RebuildMessage
	if err := json.Unmarshal(msg.Data, &rebuildMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	var err error
	switch rebuildMsg.JobType {
	case "graph_rebuild":
		err = h.handleGraphRebuild(ctx)
	case "health_check":
		err = h.rebuildJob.HealthCheck(ctx)
	default:
		logger.Warn().Str("job_type", rebuildMsg.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	duration := time.Since(startTime)
	logger.Info().
		Str("job_type", rebuildMsg.JobType).
		Dur("duration", duration).
		Msg("job completed successfully")

	msg.Ack()
}

func (h *PubSubHandler) handleGraphRebuild(ctx context.Context) error {
	result := h.rebuildJob.Run(ctx)
	if result.Error != "" {
		if result.Graph.HasGraph {
			// A previous graph still serves traffic; ack and let the
			// next scheduled rebuild try again.
			h.logger.Warn().
				Str("error", result.Error).
				Msg("rebuild failed, stale graph still serving")
			return nil
		}
		return fmt.Errorf("graph rebuild failed: %s", result.Error)
	}
	if result.ProbesFailed > 0 {
		h.logger.Warn().
			Int("probes_failed", result.ProbesFailed).
			Int("probes_planned", result.ProbesPlanned).
			Msg("probe routes failed on fresh graph")
	}
	return nil
}
