package worker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/qoomy/notifier/internal/events"
	"github.com/qoomy/notifier/internal/room"
)

// EventHandler handles a decoded event. *events.Router satisfies it.
type EventHandler interface {
	Handle(ctx context.Context, ev events.Event) (*events.Result, error)
}

// Cleaner runs the room cleanup job. *room.CleanupJob satisfies it.
type Cleaner interface {
	Run(ctx context.Context) (*room.CleanupResult, error)
}

// Ack tells the subscriber what to do with a processed message.
type Ack int

const (
	// AckDone acknowledges the message.
	AckDone Ack = iota
	// AckRetry asks for redelivery.
	AckRetry
)

// ProcessorConfig holds configuration for creating a Processor.
type ProcessorConfig struct {
	Events  EventHandler
	Cleanup Cleaner
	Logger  zerolog.Logger
}

// Processor decodes and executes subscription messages.
type Processor struct {
	events  EventHandler
	cleanup Cleaner
	logger  zerolog.Logger
}

// NewProcessor creates a new message processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		events:  cfg.Events,
		cleanup: cfg.Cleanup,
		logger:  cfg.Logger,
	}
}

// Process handles one message body. Malformed and unknown messages are acked
// so they are not redelivered; only a failed cleanup job asks for a retry.
func (p *Processor) Process(ctx context.Context, logger zerolog.Logger, data []byte) Ack {
	startTime := time.Now()

	task, err := Decode(data)
	if err != nil {
		logger.Warn().Err(err).Msg("dropping undecodable message")
		return AckDone
	}

	if task.JobType != "" {
		return p.runJob(ctx, logger, task.JobType, startTime)
	}

	res, err := p.events.Handle(ctx, task.Event)
	if err != nil {
		logger.Warn().Err(err).Msg("dropping unhandled event")
		return AckDone
	}

	logger.Info().
		Str("event", task.Event.Name()).
		Int("recipients", res.Recipients).
		Int("delivered", res.Delivered).
		Int("pruned", res.Pruned).
		Int("failed", res.Failed).
		Bool("suppressed", res.Suppressed).
		Dur("duration", time.Since(startTime)).
		Msg("event handled")

	return AckDone
}

func (p *Processor) runJob(ctx context.Context, logger zerolog.Logger, jobType string, startTime time.Time) Ack {
	if p.cleanup == nil {
		logger.Warn().Str("job_type", jobType).Msg("cleanup job not configured")
		return AckDone
	}

	result, err := p.cleanup.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Str("job_type", jobType).Msg("job failed")
		return AckRetry
	}

	logger.Info().
		Str("job_type", jobType).
		Int("removed", result.Removed).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	return AckDone
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Processor        *Processor
	Logger           zerolog.Logger

	// MaxOutstandingMessages bounds concurrent message handling. Default: 10
	MaxOutstandingMessages int
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	maxOutstanding := cfg.MaxOutstandingMessages
	if maxOutstanding <= 0 {
		maxOutstanding = 10
	}
	subscriber.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
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
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	if h.processor.Process(ctx, logger, msg.Data) == AckRetry {
		msg.Nack()
		return
	}
	msg.Ack()
}
