package service

import (
	"context"
	"log/slog"
	"time"

	"veritas/internal/audit/metrics"
	"veritas/internal/audit/models"
	"veritas/internal/audit/siem"
	"veritas/internal/audit/store/archive"
)

// Fanout mirrors committed events to the archival store and the SIEM sink
// off the submit path. It owns a bounded buffer and a single worker
// goroutine; mirror failures are logged and counted but never travel back to
// the submitter, and never unwind a committed primary write.
type Fanout struct {
	archive archive.Store
	sink    siem.Sink
	breaker *siem.CircuitBreaker

	buffer  *ringBuffer
	notify  chan struct{}
	done    chan struct{}
	stopped chan struct{}

	deliverTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// FanoutOption configures the dispatcher.
type FanoutOption func(*Fanout)

// WithFanoutLogger sets the logger.
func WithFanoutLogger(logger *slog.Logger) FanoutOption {
	return func(f *Fanout) { f.logger = logger }
}

// WithFanoutMetrics sets the metrics collector.
func WithFanoutMetrics(m *metrics.Metrics) FanoutOption {
	return func(f *Fanout) { f.metrics = m }
}

// WithFanoutBuffer sets the buffer capacity.
func WithFanoutBuffer(capacity int) FanoutOption {
	return func(f *Fanout) { f.buffer = newRingBuffer(capacity) }
}

// WithFanoutBreaker sets the circuit breaker guarding SIEM delivery.
func WithFanoutBreaker(cb *siem.CircuitBreaker) FanoutOption {
	return func(f *Fanout) { f.breaker = cb }
}

// WithFanoutDeliverTimeout bounds each individual mirror write.
func WithFanoutDeliverTimeout(d time.Duration) FanoutOption {
	return func(f *Fanout) { f.deliverTimeout = d }
}

// NewFanout builds the dispatcher and starts its worker. Either destination
// may be nil, in which case that mirror is skipped.
func NewFanout(archiveStore archive.Store, sink siem.Sink, opts ...FanoutOption) *Fanout {
	f := &Fanout{
		archive:        archiveStore,
		sink:           sink,
		breaker:        siem.NewCircuitBreaker(5, time.Minute),
		buffer:         newRingBuffer(0),
		notify:         make(chan struct{}, 1),
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
		deliverTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	go f.run()
	return f
}

// Enqueue hands a committed event to the dispatcher. Never blocks.
func (f *Fanout) Enqueue(event models.Event) {
	if f.buffer.enqueue(event) && f.metrics != nil {
		f.metrics.FanoutDropped.Inc()
	}
	if f.metrics != nil {
		f.metrics.FanoutQueueDepth.Set(float64(f.buffer.len()))
	}
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// Close stops the worker after draining the buffer.
func (f *Fanout) Close() error {
	close(f.done)
	<-f.stopped
	return nil
}

func (f *Fanout) run() {
	defer close(f.stopped)
	for {
		select {
		case <-f.notify:
			f.drain()
		case <-f.done:
			f.drain()
			return
		}
	}
}

func (f *Fanout) drain() {
	for {
		batch := f.buffer.dequeueBatch(64)
		if len(batch) == 0 {
			if f.metrics != nil {
				f.metrics.FanoutQueueDepth.Set(0)
			}
			return
		}
		for _, event := range batch {
			f.mirror(event)
		}
		if f.metrics != nil {
			f.metrics.FanoutQueueDepth.Set(float64(f.buffer.len()))
		}
	}
}

func (f *Fanout) mirror(event models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), f.deliverTimeout)
	defer cancel()

	if f.archive != nil {
		if err := f.archive.Archive(ctx, event); err != nil {
			if f.metrics != nil {
				f.metrics.ArchiveFailures.Inc()
			}
			if f.logger != nil {
				archErr := &models.ArchivalError{EventID: event.EventID, Err: err}
				f.logger.Error("archive mirror failed",
					"tenant_id", event.Context.TenantID,
					"event_id", event.EventID,
					"error", archErr)
			}
		}
	}

	if f.sink == nil {
		return
	}
	if !f.breaker.Allow() {
		if f.metrics != nil {
			f.metrics.SIEMBreakerDropped.Inc()
		}
		return
	}
	if err := f.sink.Deliver(ctx, event); err != nil {
		f.breaker.RecordFailure()
		if f.metrics != nil {
			f.metrics.SIEMFailures.Inc()
		}
		if f.logger != nil {
			delErr := &models.DeliveryError{EventID: event.EventID, Err: err}
			f.logger.Error("siem delivery failed",
				"tenant_id", event.Context.TenantID,
				"event_id", event.EventID,
				"error", delErr)
		}
		return
	}
	f.breaker.RecordSuccess()
}
