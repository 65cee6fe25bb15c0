// Package worker recomputes persisted report snapshots when the
// definitions or the fleet change. It subscribes to the definition
// topics on the event bus and debounces bursts of updates into a
// single recomputation.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/openfreight/milepost/internal/domain"
	"github.com/openfreight/milepost/internal/engine"
	"github.com/openfreight/milepost/internal/report"
	"github.com/openfreight/milepost/internal/snapshot"
)

// Worker listens for change events and refreshes report snapshots.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	engine    *engine.Engine
	builder   *report.Builder
	snapshots *snapshot.Service

	debounce time.Duration

	mu            sync.Mutex
	pending       bool
	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// Debounce batches change events arriving within the window into
	// one recomputation. Zero recomputes on every event.
	Debounce time.Duration
}

// NewWorker creates an async report worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, eng *engine.Engine, builder *report.Builder, snapshots *snapshot.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		engine:    eng,
		builder:   builder,
		snapshots: snapshots,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the change topics.
func (w *Worker) Start(cfg Config) error {
	w.debounce = cfg.Debounce

	topics := []string{
		domain.TopicLoadIngested,
		domain.TopicMetricUpdated,
		domain.TopicSegmentUpdated,
		domain.TopicOverrideUpdated,
	}
	for _, topic := range topics {
		sub, err := w.bus.Subscribe(w.ctx, topic, w.handleChange)
		if err != nil {
			return err
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("report worker started", "topics", len(topics), "debounce", w.debounce)
	return nil
}

// handleChange reloads definitions touched by the event and schedules
// a snapshot recomputation.
func (w *Worker) handleChange(ctx context.Context, msg *domain.Message) error {
	slog.Debug("change event received", "topic", msg.Topic, "message_id", msg.ID)

	switch msg.Topic {
	case domain.TopicMetricUpdated:
		defs, err := w.repo.ListMetricDefinitions(ctx)
		if err != nil {
			slog.Error("failed to reload metric definitions", "error", err)
			return err
		}
		if err := w.engine.ReloadMetrics(defs); err != nil {
			slog.Error("failed to reload metrics into engine", "error", err)
			return err
		}
	case domain.TopicSegmentUpdated:
		segs, err := w.repo.ListSegments(ctx)
		if err != nil {
			slog.Error("failed to reload segments", "error", err)
			return err
		}
		if err := w.engine.ReloadSegments(segs); err != nil {
			slog.Error("failed to reload segments into engine", "error", err)
			return err
		}
	case domain.TopicOverrideUpdated:
		overrides, err := w.repo.ListOverrides(ctx)
		if err != nil {
			slog.Error("failed to reload overrides", "error", err)
			return err
		}
		w.engine.ReloadOverrides(overrides)
	case domain.TopicLoadIngested:
		w.snapshots.Invalidate()
	}

	w.schedule()
	return nil
}

// schedule coalesces recomputations within the debounce window.
func (w *Worker) schedule() {
	w.mu.Lock()
	if w.pending {
		w.mu.Unlock()
		return
	}
	w.pending = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if w.debounce > 0 {
			select {
			case <-time.After(w.debounce):
			case <-w.ctx.Done():
				return
			}
		}
		w.mu.Lock()
		w.pending = false
		w.mu.Unlock()

		w.Recompute(w.ctx)
	}()
}

// Recompute rebuilds and persists every report snapshot, then
// announces completion on the bus.
func (w *Worker) Recompute(ctx context.Context) {
	start := time.Now()

	rs, err := w.snapshots.RecordSet(ctx, time.Time{})
	if err != nil {
		slog.Error("failed to load record set for recompute", "error", err)
		return
	}

	snaps, err := w.builder.Snapshots(ctx, rs, domain.TimePeriod{})
	if err != nil {
		slog.Error("failed to build report snapshots", "error", err)
		return
	}

	saved := 0
	for _, snap := range snaps {
		if err := w.repo.SaveReportSnapshot(ctx, snap); err != nil {
			slog.Error("failed to save report snapshot", "kind", snap.Kind, "key", snap.Key, "error", err)
			continue
		}
		saved++
	}

	if err := w.bus.Publish(ctx, domain.TopicReportUpdated, []byte(rs.Version())); err != nil {
		slog.Warn("failed to announce report refresh", "error", err)
	}

	slog.Info("report snapshots recomputed",
		"snapshots", saved,
		"record_set", rs.Version(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Stop cancels subscriptions and waits for in-flight recomputations.
func (w *Worker) Stop() {
	w.cancel()
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("failed to unsubscribe", "topic", sub.Topic(), "error", err)
		}
	}
	w.wg.Wait()
	slog.Info("report worker stopped")
}
