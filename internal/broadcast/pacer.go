package broadcast

import (
	"context"
	"time"
)

const (
	DefaultMessageDelay = 100 * time.Millisecond
	DefaultGroupDelay   = 2 * time.Second
)

// Pacer spaces out sends to stay under provider-side throttling. MessageDelay
// follows every attempt except the last one of a batch; GroupDelay separates
// consecutive groups.
type Pacer struct {
	MessageDelay time.Duration
	GroupDelay   time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewPacer(messageDelay, groupDelay time.Duration) *Pacer {
	if messageDelay < 0 {
		messageDelay = DefaultMessageDelay
	}
	if groupDelay < 0 {
		groupDelay = DefaultGroupDelay
	}

	return &Pacer{
		MessageDelay: messageDelay,
		GroupDelay:   groupDelay,
		sleep:        sleepWithContext,
	}
}

func DefaultPacer() *Pacer {
	return NewPacer(DefaultMessageDelay, DefaultGroupDelay)
}

func (p *Pacer) InterMessageDelay(ctx context.Context) error {
	return p.wait(ctx, p.MessageDelay)
}

func (p *Pacer) InterBatchDelay(ctx context.Context) error {
	return p.wait(ctx, p.GroupDelay)
}

func (p *Pacer) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sleep := p.sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	return sleep(ctx, d)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
