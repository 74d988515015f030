package unread

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/qoomy/notifier/internal/room"
)

const instrumentationName = "github.com/qoomy/notifier/internal/unread"

// DefaultConcurrency is the default number of rooms queried at once.
const DefaultConcurrency = 8

// Config holds configuration for creating an Aggregator.
type Config struct {
	Directory room.Directory
	Logger    zerolog.Logger

	// Concurrency limits the number of concurrent per-room message queries.
	// Default: 8
	Concurrency int
}

// Aggregator computes unread message counts.
type Aggregator struct {
	dir         room.Directory
	logger      zerolog.Logger
	concurrency int
	tracer      trace.Tracer

	duration metric.Float64Histogram
	failures metric.Int64Counter
}

// New creates a new unread aggregator.
func New(cfg Config) *Aggregator {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	a := &Aggregator{
		dir:         cfg.Directory,
		logger:      cfg.Logger,
		concurrency: concurrency,
		tracer:      otel.Tracer(instrumentationName),
	}
	a.initMetrics()
	return a
}

func (a *Aggregator) initMetrics() {
	meter := otel.Meter(instrumentationName)

	var err error
	a.duration, err = meter.Float64Histogram(
		"unread.aggregation.duration",
		metric.WithDescription("Duration of unread count aggregation in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		a.logger.Warn().Err(err).Msg("unread duration histogram unavailable")
		a.duration, _ = noop.Meter{}.Float64Histogram("unread.aggregation.duration")
	}

	a.failures, err = meter.Int64Counter(
		"unread.aggregation.failed_queries",
		metric.WithDescription("Sub-queries that failed during unread aggregation"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		a.logger.Warn().Err(err).Msg("unread failure counter unavailable")
		a.failures, _ = noop.Meter{}.Int64Counter("unread.aggregation.failed_queries")
	}
}

// ComputeUnread returns the number of unread messages of a user across all visible rooms.
// It never fails: rooms whose queries fail contribute zero.
func (a *Aggregator) ComputeUnread(ctx context.Context, userID string) int {
	return a.Breakdown(ctx, userID).Total
}

// Breakdown returns the unread total of a user together with the per-room counts.
func (a *Aggregator) Breakdown(ctx context.Context, userID string) *Breakdown {
	ctx, span := a.tracer.Start(ctx, "unread.Breakdown",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	start := time.Now()
	log := a.logger.With().Str("user_id", userID).Logger()
	failed := &failureCounter{}

	codes := a.visibleRooms(ctx, userID, log, failed)

	lastRead, err := a.dir.LastReadTimes(ctx, userID)
	if err != nil {
		// Without read state every room would count in full, so report nothing.
		log.Warn().Err(err).Msg("failed to load read state")
		failed.add(1)
		return a.finish(ctx, span, start, &Breakdown{Rooms: []RoomUnread{}, FailedQueries: failed.value()})
	}

	counts := make([]int, len(codes))

	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)
	for i, code := range codes {
		g.Go(func() error {
			var after *time.Time
			if at, ok := lastRead[code]; ok {
				after = &at
			}

			msgs, err := a.dir.ListMessages(ctx, code, after)
			if err != nil {
				log.Warn().Err(err).Str("room_code", code).Msg("failed to count unread messages")
				failed.add(1)
				return nil
			}

			n := 0
			for _, m := range msgs {
				if m.SenderID != userID {
					n++
				}
			}
			counts[i] = n
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return an error

	result := &Breakdown{Rooms: make([]RoomUnread, 0, len(codes))}
	for i, code := range codes {
		if counts[i] == 0 {
			continue
		}
		result.Total += counts[i]
		result.Rooms = append(result.Rooms, RoomUnread{RoomCode: code, Count: counts[i]})
	}
	result.FailedQueries = failed.value()

	log.Debug().
		Int("rooms", len(codes)).
		Int("unread", result.Total).
		Int("failed_queries", result.FailedQueries).
		Msg("computed unread count")

	return a.finish(ctx, span, start, result)
}

func (a *Aggregator) finish(ctx context.Context, span trace.Span, start time.Time, b *Breakdown) *Breakdown {
	span.SetAttributes(
		attribute.Int("unread.total", b.Total),
		attribute.Int("unread.failed_queries", b.FailedQueries),
	)
	a.duration.Record(ctx, time.Since(start).Seconds())
	if b.FailedQueries > 0 {
		a.failures.Add(ctx, int64(b.FailedQueries))
	}
	return b
}

// visibleRooms resolves hosted, joined and team rooms of a user, sorted and deduplicated.
func (a *Aggregator) visibleRooms(ctx context.Context, userID string, log zerolog.Logger, failed *failureCounter) []string {
	var (
		mu  sync.Mutex
		set = make(map[string]struct{})
	)
	collect := func(source string, codes []string, err error) {
		if err != nil {
			log.Warn().Err(err).Str("source", source).Msg("failed to resolve rooms")
			failed.add(1)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, c := range codes {
			set[c] = struct{}{}
		}
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		codes, err := a.dir.ListHostedRooms(ctx, userID)
		collect("hosted", codes, err)
		return nil
	})
	g.Go(func() error {
		codes, err := a.dir.ListJoinedRooms(ctx, userID)
		collect("joined", codes, err)
		return nil
	})
	g.Go(func() error {
		teamIDs, err := a.dir.ListTeamIDs(ctx, userID)
		if err != nil {
			collect("teams", nil, err)
			return nil
		}
		for _, batch := range chunk(teamIDs, room.MaxInFilterValues) {
			codes, err := a.dir.ListRoomsByTeams(ctx, batch)
			collect("team_rooms", codes, err)
		}
		return nil
	})
	_ = g.Wait() //nolint:errcheck // workers never return an error

	codes := make([]string, 0, len(set))
	for c := range set {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// chunk splits ids into batches of at most size elements.
func chunk(ids []string, size int) [][]string {
	var batches [][]string
	for len(ids) > size {
		batches = append(batches, ids[:size:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		batches = append(batches, ids)
	}
	return batches
}

type failureCounter struct {
	mu sync.Mutex
	n  int
}

func (c *failureCounter) add(n int) {
	c.mu.Lock()
	c.n += n
	c.mu.Unlock()
}

func (c *failureCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
