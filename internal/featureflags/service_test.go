package featureflags_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/qoomy/notifier/internal/featureflags"
)

func newService(repo featureflags.Repository, ttl time.Duration) *featureflags.Service {
	return featureflags.NewService(featureflags.ServiceConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
		CacheTTL:   ttl,
	})
}

func TestService_Defaults(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository(), time.Minute)
	ctx := context.Background()

	if service.IsPushSendingDisabled(ctx) {
		t.Error("expected push sending to be enabled by default")
	}
	if !service.IsBackgroundSummaryEnabled(ctx) {
		t.Error("expected background summary to be enabled by default")
	}
	if !service.IsBadgeSyncEnabled(ctx) {
		t.Error("expected badge sync to be enabled by default")
	}
}

func TestService_NilServiceUsesDefaults(t *testing.T) {
	var service *featureflags.Service
	ctx := context.Background()

	if service.IsPushSendingDisabled(ctx) {
		t.Error("expected nil service to allow push sending")
	}
	if !service.IsBackgroundSummaryEnabled(ctx) {
		t.Error("expected nil service to enable the background summary")
	}
}

func TestService_SetFlag(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository(), time.Minute)
	ctx := context.Background()

	err := service.SetFlag(ctx, &featureflags.Flag{
		Key:   featureflags.FlagDisablePushSending,
		Value: true,
	})
	if err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}

	if !service.IsPushSendingDisabled(ctx) {
		t.Error("expected push sending to be disabled after update")
	}
}

func TestService_SetFlag_UnknownKey(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository(), time.Minute)

	err := service.SetFlag(context.Background(), &featureflags.Flag{Key: "made_up", Value: true})
	if !errors.Is(err, featureflags.ErrUnknownFlag) {
		t.Errorf("expected ErrUnknownFlag, got %v", err)
	}
}

func TestService_SetFlags(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository(), time.Minute)
	ctx := context.Background()

	err := service.SetFlags(ctx, []*featureflags.Flag{
		{Key: featureflags.FlagBackgroundSummary, Value: false},
		{Key: featureflags.FlagReadStateBadgeSync, Value: false},
	})
	if err != nil {
		t.Fatalf("failed to set flags: %v", err)
	}

	if service.IsBackgroundSummaryEnabled(ctx) {
		t.Error("expected background summary to be disabled")
	}
	if service.IsBadgeSyncEnabled(ctx) {
		t.Error("expected badge sync to be disabled")
	}
}

func TestService_GetAllFlags(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepositoryWithFlags(nil), time.Minute)
	flags := service.GetAllFlags(context.Background())

	for _, key := range []string{
		featureflags.FlagDisablePushSending,
		featureflags.FlagBackgroundSummary,
		featureflags.FlagReadStateBadgeSync,
	} {
		if _, ok := flags[key]; !ok {
			t.Errorf("expected flag %q to be present", key)
		}
	}
}

func TestService_InvalidateCache(t *testing.T) {
	repo := featureflags.NewInMemoryRepository()
	service := newService(repo, time.Hour)
	ctx := context.Background()

	_ = service.GetFlag(ctx, featureflags.FlagDisablePushSending)

	_ = repo.SetFlag(ctx, &featureflags.Flag{
		Key:   featureflags.FlagDisablePushSending,
		Value: true,
	})

	if service.IsPushSendingDisabled(ctx) {
		t.Error("expected cached value before invalidation")
	}

	service.InvalidateCache()

	if !service.IsPushSendingDisabled(ctx) {
		t.Error("expected updated value after cache invalidation")
	}
}

func TestFlag_ValueHelpers(t *testing.T) {
	tests := []struct {
		name       string
		value      interface{}
		wantBool   bool
		wantString string
		wantInt    int
	}{
		{name: "boolean true", value: true, wantBool: true, wantString: "default", wantInt: 42},
		{name: "string value", value: "hello", wantBool: false, wantString: "hello", wantInt: 42},
		{name: "float64 from JSON", value: float64(3), wantBool: true, wantString: "default", wantInt: 3},
		{name: "int64 from Firestore", value: int64(0), wantBool: false, wantString: "default", wantInt: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := &featureflags.Flag{Key: "test", Value: tt.value}

			if got := flag.BoolValue(false); got != tt.wantBool {
				t.Errorf("BoolValue() = %v, want %v", got, tt.wantBool)
			}
			if got := flag.StringValue("default"); got != tt.wantString {
				t.Errorf("StringValue() = %v, want %v", got, tt.wantString)
			}
			if got := flag.IntValue(42); got != tt.wantInt {
				t.Errorf("IntValue() = %v, want %v", got, tt.wantInt)
			}
		})
	}
}

func TestFlag_NilFlag(t *testing.T) {
	var flag *featureflags.Flag

	if flag.BoolValue(true) != true {
		t.Error("expected default value for nil flag")
	}
	if flag.StringValue("default") != "default" {
		t.Error("expected default value for nil flag")
	}
	if flag.IntValue(42) != 42 {
		t.Error("expected default value for nil flag")
	}
}

func TestInMemoryRepository_DeleteFlag(t *testing.T) {
	repo := featureflags.NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.DeleteFlag(ctx, featureflags.FlagBackgroundSummary); err != nil {
		t.Fatalf("failed to delete flag: %v", err)
	}

	_, err := repo.GetFlag(ctx, featureflags.FlagBackgroundSummary)
	if !errors.Is(err, featureflags.ErrFlagNotFound) {
		t.Errorf("expected ErrFlagNotFound after delete, got %v", err)
	}

	err = repo.DeleteFlag(ctx, "nonexistent")
	if !errors.Is(err, featureflags.ErrFlagNotFound) {
		t.Errorf("expected ErrFlagNotFound for non-existent flag, got %v", err)
	}
}
