package observer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/itsadi-24/smart-note/internal/analyzer"
)

// DefaultSinkTimeout bounds a single Append call
const DefaultSinkTimeout = 5 * time.Second

// EventSink is an append-only destination for lifecycle events
type EventSink interface {
	Name() string
	Append(ctx context.Context, event AnalysisEvent) error
	Close() error
}

// SinkObserver forwards events to an EventSink on a shared worker pool so
// that slow I/O never runs on the request goroutine.
type SinkObserver struct {
	sink    EventSink
	pool    *analyzer.WorkerPool
	timeout time.Duration
	logger  *logrus.Logger
	failed  atomic.Int64
}

// NewSinkObserver wraps sink. The pool must already be started.
func NewSinkObserver(sink EventSink, pool *analyzer.WorkerPool, logger *logrus.Logger) *SinkObserver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SinkObserver{
		sink:    sink,
		pool:    pool,
		timeout: DefaultSinkTimeout,
		logger:  logger,
	}
}

// OnEvent queues the append. A full queue drops the event.
func (o *SinkObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	// the append outlives the request
	bg := context.WithoutCancel(ctx)

	queued := o.pool.TrySubmit(func() {
		ctx, cancel := context.WithTimeout(bg, o.timeout)
		defer cancel()

		if err := o.sink.Append(ctx, event); err != nil {
			o.failed.Add(1)
			o.logger.WithError(err).WithFields(logrus.Fields{
				"sink":       o.sink.Name(),
				"event_type": event.EventType,
				"request_id": event.RequestID,
			}).Warn("Failed to append event")
		}
	})
	if !queued {
		o.logger.WithFields(logrus.Fields{
			"sink":       o.sink.Name(),
			"event_type": event.EventType,
			"request_id": event.RequestID,
		}).Warn("Event queue full, dropping event")
	}
}

// GetObserverName returns the observer name
func (o *SinkObserver) GetObserverName() string {
	return "sink_observer:" + o.sink.Name()
}

// FailedAppends counts Append calls that returned an error
func (o *SinkObserver) FailedAppends() int64 {
	return o.failed.Load()
}

// Close releases the sink. Drain the pool first so no queued append races it.
func (o *SinkObserver) Close() error {
	return o.sink.Close()
}
