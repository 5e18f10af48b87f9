package redis

import (
	"context"
	"testing"
	"time"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

func TestStatusRegistryPutGet(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedis(t)
	registry, err := NewStatusRegistry(rdb, time.Hour)
	if err != nil {
		t.Fatalf("NewStatusRegistry() error = %v", err)
	}

	ctx := context.Background()
	rate := 0.3
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	want := domain.BatchStatus{
		Status:            domain.StatusCompleted,
		Total:             3,
		Sent:              2,
		Failed:            1,
		StartTime:         start,
		FailedRecipients:  []domain.FailedRecipient{{Address: "B", Error: "boom"}},
		DurationSeconds:   10,
		MessagesPerSecond: &rate,
	}

	if err := registry.Put(ctx, "b1", want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := registry.Get(ctx, " b1 ")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Status != domain.StatusCompleted || got.Sent != 2 || got.Failed != 1 || got.Total != 3 {
		t.Fatalf("Get() = %+v", got)
	}
	if !got.StartTime.Equal(start) {
		t.Fatalf("StartTime = %s, want %s", got.StartTime, start)
	}
	if len(got.FailedRecipients) != 1 || got.FailedRecipients[0].Address != "B" {
		t.Fatalf("FailedRecipients = %+v", got.FailedRecipients)
	}
	if got.MessagesPerSecond == nil || *got.MessagesPerSecond != 0.3 {
		t.Fatalf("MessagesPerSecond = %v, want 0.3", got.MessagesPerSecond)
	}
}

func TestStatusRegistryGetUnknown(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedis(t)
	registry, _ := NewStatusRegistry(rdb, time.Hour)

	_, ok, err := registry.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Fatal("Get() ok = true for unknown batch")
	}
}

func TestStatusRegistryEviction(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestRedis(t)
	registry, _ := NewStatusRegistry(rdb, time.Hour)
	ctx := context.Background()

	if err := registry.Put(ctx, "b1", domain.BatchStatus{Status: domain.StatusCompleted, Total: 1, Sent: 1}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := registry.ScheduleEviction(ctx, "b1", 5*time.Minute); err != nil {
		t.Fatalf("ScheduleEviction() error = %v", err)
	}

	mr.FastForward(4 * time.Minute)
	if _, ok, _ := registry.Get(ctx, "b1"); !ok {
		t.Fatal("status evicted before retention elapsed")
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := registry.Get(ctx, "b1"); ok {
		t.Fatal("status still present after retention elapsed")
	}
}

func TestStatusRegistryReuseClearsPendingEviction(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestRedis(t)
	registry, _ := NewStatusRegistry(rdb, time.Hour)
	ctx := context.Background()

	_ = registry.Put(ctx, "b1", domain.BatchStatus{Status: domain.StatusCompleted})
	_ = registry.ScheduleEviction(ctx, "b1", time.Minute)

	if err := registry.Put(ctx, "b1", domain.BatchStatus{Status: domain.StatusProcessing, Total: 5}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	mr.FastForward(2 * time.Minute)
	got, ok, _ := registry.Get(ctx, "b1")
	if !ok {
		t.Fatal("reused batch evicted by the previous run's timer")
	}
	if got.Status != domain.StatusProcessing || got.Total != 5 {
		t.Fatalf("Get() = %+v", got)
	}
}

func TestStatusRegistryProcessingEntryExpiresWhenOrphaned(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestRedis(t)
	registry, _ := NewStatusRegistry(rdb, time.Hour)
	ctx := context.Background()

	if err := registry.Put(ctx, "crashed", domain.BatchStatus{Status: domain.StatusProcessing, Total: 10, Sent: 4}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if ttl := mr.TTL(statusKey("crashed")); ttl != time.Hour {
		t.Fatalf("TTL = %s, want %s", ttl, time.Hour)
	}

	mr.FastForward(30 * time.Minute)
	if _, ok, _ := registry.Get(ctx, "crashed"); !ok {
		t.Fatal("processing entry expired before the orphan TTL")
	}

	mr.FastForward(31 * time.Minute)
	if _, ok, _ := registry.Get(ctx, "crashed"); ok {
		t.Fatal("orphaned processing entry never expired")
	}
}

func TestNewStatusRegistryDefaultsOrphanTTL(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedis(t)
	registry, err := NewStatusRegistry(rdb, 0)
	if err != nil {
		t.Fatalf("NewStatusRegistry() error = %v", err)
	}
	if registry.orphanTTL != DefaultOrphanTTL {
		t.Fatalf("orphanTTL = %s, want %s", registry.orphanTTL, DefaultOrphanTTL)
	}
}

func TestStatusRegistryMarkCancelled(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestRedis(t)
	registry, _ := NewStatusRegistry(rdb, time.Hour)
	ctx := context.Background()

	ok, err := registry.MarkCancelled(ctx, "missing")
	if err != nil {
		t.Fatalf("MarkCancelled() error = %v", err)
	}
	if ok {
		t.Fatal("MarkCancelled() = true for unknown batch")
	}

	_ = registry.Put(ctx, "b1", domain.BatchStatus{Status: domain.StatusCompleted, Total: 2, Sent: 2})
	_ = registry.ScheduleEviction(ctx, "b1", time.Minute)

	ok, err = registry.MarkCancelled(ctx, "b1")
	if err != nil {
		t.Fatalf("MarkCancelled() error = %v", err)
	}
	if !ok {
		t.Fatal("MarkCancelled() = false for existing batch")
	}

	got, _, _ := registry.Get(ctx, "b1")
	if got.Status != domain.StatusCancelled || got.Sent != 2 {
		t.Fatalf("Get() = %+v, want cancelled with counters kept", got)
	}
	if ttl := mr.TTL(statusKey("b1")); ttl <= 0 {
		t.Fatalf("TTL = %s, want pending eviction kept", ttl)
	}
}

func TestNewStatusRegistryRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := NewStatusRegistry(nil, time.Hour); err == nil {
		t.Fatal("expected error for nil client")
	}
}
