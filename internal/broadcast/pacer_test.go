package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewPacerAppliesDefaults(t *testing.T) {
	t.Parallel()

	p := NewPacer(-1, -1)
	if p.MessageDelay != DefaultMessageDelay {
		t.Fatalf("MessageDelay = %s, want %s", p.MessageDelay, DefaultMessageDelay)
	}
	if p.GroupDelay != DefaultGroupDelay {
		t.Fatalf("GroupDelay = %s, want %s", p.GroupDelay, DefaultGroupDelay)
	}

	d := DefaultPacer()
	if d.MessageDelay != 100*time.Millisecond || d.GroupDelay != 2*time.Second {
		t.Fatalf("DefaultPacer() = %s/%s, want 100ms/2s", d.MessageDelay, d.GroupDelay)
	}
}

func TestPacerDelegatesToSleep(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	p := NewPacer(100*time.Millisecond, 2*time.Second)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	if err := p.InterMessageDelay(context.Background()); err != nil {
		t.Fatalf("InterMessageDelay() error = %v", err)
	}
	if err := p.InterBatchDelay(context.Background()); err != nil {
		t.Fatalf("InterBatchDelay() error = %v", err)
	}

	if len(waits) != 2 || waits[0] != 100*time.Millisecond || waits[1] != 2*time.Second {
		t.Fatalf("waits = %v, want [100ms 2s]", waits)
	}
}

func TestPacerZeroDelaySkipsSleep(t *testing.T) {
	t.Parallel()

	p := NewPacer(0, 0)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatal("sleep should not be called for zero delay")
		return nil
	}

	if err := p.InterMessageDelay(context.Background()); err != nil {
		t.Fatalf("InterMessageDelay() error = %v", err)
	}
}

func TestPacerWaitHonorsContext(t *testing.T) {
	t.Parallel()

	p := NewPacer(time.Hour, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.InterBatchDelay(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("InterBatchDelay() error = %v, want %v", err, context.DeadlineExceeded)
	}
}
