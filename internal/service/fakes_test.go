package service

import (
	"context"
	"time"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"github.com/kursadbilgin/broadcast-engine/internal/provider"
	"github.com/kursadbilgin/broadcast-engine/internal/queue"
)

type fakeBroadcastRepo struct {
	createFn         func(ctx context.Context, r *domain.BroadcastReport) error
	updateProgressFn func(ctx context.Context, id string, sent int, failed int, startedAt time.Time) error
	completeFn       func(ctx context.Context, result domain.BatchResult, startedAt time.Time, completedAt time.Time) error
	getByIDFn        func(ctx context.Context, id string) (*domain.BroadcastReport, error)
	listFailuresFn   func(ctx context.Context, id string) ([]domain.FailedRecipient, error)
}

func (f *fakeBroadcastRepo) Create(ctx context.Context, r *domain.BroadcastReport) error {
	if f.createFn != nil {
		return f.createFn(ctx, r)
	}
	return nil
}

func (f *fakeBroadcastRepo) UpdateProgress(ctx context.Context, id string, sent int, failed int, startedAt time.Time) error {
	if f.updateProgressFn != nil {
		return f.updateProgressFn(ctx, id, sent, failed, startedAt)
	}
	return nil
}

func (f *fakeBroadcastRepo) Complete(ctx context.Context, result domain.BatchResult, startedAt time.Time, completedAt time.Time) error {
	if f.completeFn != nil {
		return f.completeFn(ctx, result, startedAt, completedAt)
	}
	return nil
}

func (f *fakeBroadcastRepo) GetByID(ctx context.Context, id string) (*domain.BroadcastReport, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return &domain.BroadcastReport{ID: id, Status: domain.StatusProcessing}, nil
}

func (f *fakeBroadcastRepo) ListFailures(ctx context.Context, id string) ([]domain.FailedRecipient, error) {
	if f.listFailuresFn != nil {
		return f.listFailuresFn(ctx, id)
	}
	return nil, nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.BroadcastMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.BroadcastMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	return nil
}

type fakeProvider struct {
	sendFn func(ctx context.Context, delivery domain.Delivery) (*provider.ProviderResponse, error)
}

func (f *fakeProvider) Send(ctx context.Context, delivery domain.Delivery) (*provider.ProviderResponse, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, delivery)
	}
	return &provider.ProviderResponse{StatusCode: 200}, nil
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, channel string) (bool, error)
	waitFn  func(ctx context.Context, channel string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, channel string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, channel)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, channel string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, channel)
	}
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConsumer) Close() error {
	return nil
}
