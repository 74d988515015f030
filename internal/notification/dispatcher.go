package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/errgroup"

	"github.com/qoomy/notifier/internal/device"
)

const meterName = "github.com/qoomy/notifier/internal/notification"

// Dispatch errors.
var (
	// ErrTokenUnregistered marks a permanent delivery failure: the token will never work again.
	// Transports wrap it so the dispatcher can prune the token.
	ErrTokenUnregistered = errors.New("push token is no longer registered")

	ErrPlatformMismatch = errors.New("payload platform does not match token platform")
)

// Transport delivers a payload to a single token.
type Transport interface {
	Send(ctx context.Context, token device.Token, payload Payload) error
}

// Pruner removes tokens that permanently failed.
type Pruner interface {
	PruneToken(ctx context.Context, value string) error
}

// Item is one payload addressed to one token.
type Item struct {
	UserID  string
	Token   device.Token
	Payload Payload
}

// Status is the result of sending a single item.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusPruned    Status = "pruned"
	StatusFailed    Status = "failed"
)

// Outcome is the result of sending one item.
type Outcome struct {
	Item   Item
	Status Status
	Err    error
}

// Report summarizes a dispatch.
type Report struct {
	Outcomes  []Outcome
	Delivered int
	Pruned    int
	Failed    int
}

// DispatcherConfig holds configuration for creating a Dispatcher.
type DispatcherConfig struct {
	Transport Transport
	Pruner    Pruner
	Logger    zerolog.Logger
}

// Dispatcher sends payloads and prunes tokens that are permanently rejected.
type Dispatcher struct {
	transport Transport
	pruner    Pruner
	logger    zerolog.Logger
	outcomes  metric.Int64Counter
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	outcomes, err := otel.Meter(meterName).Int64Counter(
		"notification.dispatch.outcomes",
		metric.WithDescription("Push sends by platform and outcome"),
		metric.WithUnit("{send}"),
	)
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("dispatch outcome counter unavailable")
		outcomes, _ = noop.Meter{}.Int64Counter("notification.dispatch.outcomes")
	}

	return &Dispatcher{
		transport: cfg.Transport,
		pruner:    cfg.Pruner,
		logger:    cfg.Logger,
		outcomes:  outcomes,
	}
}

// Dispatch sends every item independently and concurrently.
// A failing item never affects its siblings, and Dispatch itself never fails.
func (d *Dispatcher) Dispatch(ctx context.Context, items []Item) *Report {
	report := &Report{Outcomes: make([]Outcome, len(items))}
	if len(items) == 0 {
		return report
	}

	var g errgroup.Group
	for i, item := range items {
		g.Go(func() error {
			report.Outcomes[i] = d.send(ctx, item)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // send never returns an error

	for _, o := range report.Outcomes {
		switch o.Status {
		case StatusDelivered:
			report.Delivered++
		case StatusPruned:
			report.Pruned++
		default:
			report.Failed++
		}
	}

	d.logger.Info().
		Int("total", len(items)).
		Int("delivered", report.Delivered).
		Int("pruned", report.Pruned).
		Int("failed", report.Failed).
		Msg("dispatched notifications")

	return report
}

func (d *Dispatcher) send(ctx context.Context, item Item) Outcome {
	out := Outcome{Item: item}

	switch {
	case item.Payload == nil:
		out.Status, out.Err = StatusFailed, errors.New("nil payload")
	case item.Payload.Platform() != item.Token.Platform:
		out.Status, out.Err = StatusFailed, fmt.Errorf("%w: %s payload for %s token",
			ErrPlatformMismatch, item.Payload.Platform(), item.Token.Platform)
	default:
		out.Status, out.Err = d.deliver(ctx, item)
	}

	d.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("platform", string(item.Token.Platform)),
		attribute.String("outcome", string(out.Status)),
	))

	return out
}

func (d *Dispatcher) deliver(ctx context.Context, item Item) (Status, error) {
	log := d.logger.With().
		Str("user_id", item.UserID).
		Str("platform", string(item.Token.Platform)).
		Str("token_last4", item.Token.Last4()).
		Logger()

	err := d.transport.Send(ctx, item.Token, item.Payload)
	if err == nil {
		return StatusDelivered, nil
	}

	if !errors.Is(err, ErrTokenUnregistered) {
		log.Warn().Err(err).Msg("push send failed")
		return StatusFailed, err
	}

	log.Info().Err(err).Msg("push token rejected, pruning")
	if d.pruner == nil {
		return StatusPruned, err
	}
	if perr := d.pruner.PruneToken(ctx, item.Token.Value); perr != nil {
		log.Error().Err(perr).Msg("failed to prune push token")
		return StatusFailed, errors.Join(err, perr)
	}
	return StatusPruned, err
}
