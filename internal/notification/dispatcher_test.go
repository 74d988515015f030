package notification_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qoomy/notifier/internal/device"
	"github.com/qoomy/notifier/internal/notification"
)

type fakeTransport struct {
	mu   sync.Mutex
	errs map[string]error
	sent []string
}

func (f *fakeTransport) Send(_ context.Context, token device.Token, _ notification.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.errs[token.Value]; ok {
		return err
	}
	f.sent = append(f.sent, token.Value)
	return nil
}

func newDispatcher(t *testing.T, transport notification.Transport, pruner notification.Pruner) *notification.Dispatcher {
	t.Helper()
	return notification.NewDispatcher(notification.DispatcherConfig{
		Transport: transport,
		Pruner:    pruner,
		Logger:    zerolog.Nop(),
	})
}

func itemFor(t *testing.T, userID string, token device.Token) notification.Item {
	t.Helper()
	b := notification.NewBuilder(notification.BuilderConfig{})
	p, err := b.Build(notification.Trigger{Kind: notification.KindBadgeSync, RoomCode: "ABCD"},
		notification.Recipient{UserID: userID, Token: token}, 1)
	require.NoError(t, err)
	return notification.Item{UserID: userID, Token: token, Payload: p}
}

func TestDispatch_PrunesUnregisteredTokenOnly(t *testing.T) {
	ctx := context.Background()
	registry := device.NewRegistry(device.RegistryConfig{
		Repository: device.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})

	dead := device.Token{Value: "dead-token", Platform: device.PlatformAndroid}
	alive := device.Token{Value: "alive-token", Platform: device.PlatformIOS}
	for _, tok := range []device.Token{dead, alive} {
		_, err := registry.Register(ctx, "u1", tok.Value, tok.Platform)
		require.NoError(t, err)
	}

	transport := &fakeTransport{errs: map[string]error{
		dead.Value: fmt.Errorf("registration-token-not-registered: %w", notification.ErrTokenUnregistered),
	}}

	report := newDispatcher(t, transport, registry).Dispatch(ctx, []notification.Item{
		itemFor(t, "u1", dead),
		itemFor(t, "u1", alive),
	})

	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 1, report.Pruned)
	assert.Zero(t, report.Failed)
	assert.Equal(t, notification.StatusPruned, report.Outcomes[0].Status)
	assert.Equal(t, notification.StatusDelivered, report.Outcomes[1].Status)

	tokens, err := registry.ListTokens(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []device.Token{alive}, tokens)
}

func TestDispatch_TransientFailureKeepsToken(t *testing.T) {
	ctx := context.Background()
	registry := device.NewRegistry(device.RegistryConfig{
		Repository: device.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})

	flaky := device.Token{Value: "flaky-token", Platform: device.PlatformIOS}
	_, err := registry.Register(ctx, "u1", flaky.Value, flaky.Platform)
	require.NoError(t, err)

	transport := &fakeTransport{errs: map[string]error{flaky.Value: errors.New("quota exceeded")}}

	report := newDispatcher(t, transport, registry).Dispatch(ctx, []notification.Item{itemFor(t, "u1", flaky)})
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Pruned)

	tokens, err := registry.ListTokens(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []device.Token{flaky}, tokens)
}

func TestDispatch_FailuresDoNotStopSiblings(t *testing.T) {
	transport := &fakeTransport{errs: map[string]error{}}

	var items []notification.Item
	for i := 0; i < 20; i++ {
		tok := device.Token{Value: fmt.Sprintf("tok-%02d", i), Platform: device.PlatformAndroid}
		if i%2 == 0 {
			transport.errs[tok.Value] = errors.New("unavailable")
		}
		items = append(items, itemFor(t, "u1", tok))
	}

	report := newDispatcher(t, transport, nil).Dispatch(context.Background(), items)
	assert.Equal(t, 10, report.Delivered)
	assert.Equal(t, 10, report.Failed)
	assert.Len(t, transport.sent, 10)
}

func TestDispatch_PlatformMismatchIsNotSent(t *testing.T) {
	transport := &fakeTransport{}
	item := itemFor(t, "u1", device.Token{Value: "a", Platform: device.PlatformAndroid})
	item.Token.Platform = device.PlatformIOS

	report := newDispatcher(t, transport, nil).Dispatch(context.Background(), []notification.Item{item})
	require.Len(t, report.Outcomes, 1)
	assert.ErrorIs(t, report.Outcomes[0].Err, notification.ErrPlatformMismatch)
	assert.Empty(t, transport.sent)
}

func TestDispatch_Empty(t *testing.T) {
	report := newDispatcher(t, &fakeTransport{}, nil).Dispatch(context.Background(), nil)
	assert.Empty(t, report.Outcomes)
	assert.Zero(t, report.Delivered+report.Pruned+report.Failed)
}
