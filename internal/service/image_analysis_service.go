package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/itsadi-24/smart-note/internal/analyzer"
	apperrors "github.com/itsadi-24/smart-note/internal/errors"
	"github.com/itsadi-24/smart-note/internal/imagedata"
	"github.com/itsadi-24/smart-note/internal/observer"
	"github.com/itsadi-24/smart-note/pkg/models"
)

// ImageAnalysisService runs one analysis request end to end and answers
// liveness checks. Neither method returns an error: every result is data.
type ImageAnalysisService interface {
	Analyze(ctx context.Context, requestID, payload string) analyzer.Outcome
	Health(ctx context.Context, requestID string) HealthReport
	Variant() string
	Model() string
}

// HealthReport is the result of a liveness check
type HealthReport struct {
	Healthy bool
	// Error is the client-facing failure text, empty when healthy
	Error string
	Stats models.HealthStats
}

// Dependencies wires the service. Metrics and Pool are optional and only
// feed the health statistics.
type Dependencies struct {
	Decoder       *imagedata.Decoder
	Analyzer      analyzer.ImageAnalyzer
	Events        observer.Subject
	Metrics       *observer.MetricsObserver
	Pool          *analyzer.WorkerPool
	Variant       string
	HealthTimeout time.Duration
}

type imageAnalysisService struct {
	decoder       *imagedata.Decoder
	analyzer      analyzer.ImageAnalyzer
	events        observer.Subject
	metrics       *observer.MetricsObserver
	pool          *analyzer.WorkerPool
	variant       string
	healthTimeout time.Duration
	now           func() time.Time
}

// NewImageAnalysisService creates a new image analysis service
func NewImageAnalysisService(deps Dependencies) (ImageAnalysisService, error) {
	if deps.Decoder == nil || deps.Analyzer == nil {
		return nil, apperrors.NewConfigurationError("decoder and analyzer are required", nil)
	}
	if deps.Events == nil {
		deps.Events = observer.NewEventPublisher(nil)
	}
	if deps.HealthTimeout <= 0 {
		deps.HealthTimeout = 15 * time.Second
	}

	return &imageAnalysisService{
		decoder:       deps.Decoder,
		analyzer:      deps.Analyzer,
		events:        deps.Events,
		metrics:       deps.Metrics,
		pool:          deps.Pool,
		variant:       deps.Variant,
		healthTimeout: deps.HealthTimeout,
		now:           time.Now,
	}, nil
}

func (s *imageAnalysisService) Variant() string { return s.variant }

func (s *imageAnalysisService) Model() string { return s.analyzer.Model() }

// Analyze decodes the payload and asks the model about it. A payload that
// cannot be decoded is a client error; anything that goes wrong afterwards
// is a soft failure.
func (s *imageAnalysisService) Analyze(ctx context.Context, requestID, payload string) (out analyzer.Outcome) {
	s.publish(ctx, requestID, observer.RequestReceived, func(e *observer.AnalysisEvent) {
		e.Success = true
		e.Metadata = map[string]interface{}{"payload_chars": len(payload)}
	})

	decoded, err := s.decoder.Decode(payload)
	if err != nil {
		out = analyzer.ClientError(err)
		s.publish(ctx, requestID, observer.ImageRejected, func(e *observer.AnalysisEvent) {
			e.ErrorMessage = out.Message
		})
		return out
	}

	meta := models.ImageMetadata{
		Format: decoded.Format,
		Width:  decoded.Width(),
		Height: decoded.Height(),
		Bytes:  decoded.Size,
	}
	s.publish(ctx, requestID, observer.ImageDecoded, func(e *observer.AnalysisEvent) {
		e.Success = true
		e.Metadata = meta.Fields()
	})

	s.publish(ctx, requestID, observer.ModelInvoked, func(e *observer.AnalysisEvent) {
		e.Success = true
	})

	start := s.now()
	defer func() {
		if r := recover(); r != nil {
			out = analyzer.SoftFailure(fmt.Sprint(r), apperrors.NewInternalError("analysis panicked", nil))
		}

		elapsed := s.now().Sub(start)
		if out.Kind == analyzer.OutcomeSuccess {
			s.publish(ctx, requestID, observer.ModelResponded, func(e *observer.AnalysisEvent) {
				e.Success = true
				e.Duration = elapsed
				e.Metadata = map[string]interface{}{"result_chars": len(out.Text)}
			})
			return
		}
		s.publish(ctx, requestID, observer.AnalysisFailed, func(e *observer.AnalysisEvent) {
			e.Duration = elapsed
			e.ErrorMessage = out.Message
			if out.Err != nil {
				e.Metadata = map[string]interface{}{
					"cause":     out.Err.Error(),
					"timed_out": apperrors.IsType(out.Err, apperrors.ErrorTypeTimeout),
				}
			}
		})
	}()

	return s.analyzer.Analyze(ctx, decoded.Bitmap)
}

// Health sends the text-only probe under the health timeout
func (s *imageAnalysisService) Health(ctx context.Context, requestID string) HealthReport {
	probeCtx, cancel := context.WithTimeout(ctx, s.healthTimeout)
	defer cancel()

	start := s.now()
	err := s.analyzer.Probe(probeCtx)
	elapsed := s.now().Sub(start)

	report := HealthReport{Healthy: err == nil}
	if err != nil {
		report.Error = healthErrorText(ctx, probeCtx, err, s.healthTimeout)
	}

	s.publish(ctx, requestID, observer.HealthChecked, func(e *observer.AnalysisEvent) {
		e.Success = report.Healthy
		e.Duration = elapsed
		e.ErrorMessage = report.Error
	})

	report.Stats = s.stats()
	return report
}

func (s *imageAnalysisService) stats() models.HealthStats {
	var st models.HealthStats
	if s.metrics != nil {
		m := s.metrics.GetMetrics()
		st.StartedAt = m.StartedAt
		st.TotalRequests = m.TotalRequests
		st.Successful = m.Successful
		st.SoftFailures = m.SoftFailures
		st.RejectedImages = m.RejectedImages
		st.HealthChecks = m.HealthChecks
		st.AvgModelLatencyMS = m.AvgModelLatencyMS
	}
	if s.pool != nil {
		ps := s.pool.GetStats()
		st.EventsQueued = ps.TotalJobs
		st.EventsDropped = ps.DroppedJobs
	}
	return st
}

func (s *imageAnalysisService) publish(ctx context.Context, requestID string, eventType observer.EventType, fill func(*observer.AnalysisEvent)) {
	event := observer.AnalysisEvent{
		ID:        uuid.NewString(),
		RequestID: requestID,
		EventType: eventType,
		Timestamp: s.now().UTC(),
		Variant:   s.variant,
		Model:     s.analyzer.Model(),
	}
	if fill != nil {
		fill(&event)
	}
	s.events.NotifyObservers(ctx, event)
}

// healthErrorText reports the underlying cause rather than the wrapper
func healthErrorText(parent, probeCtx context.Context, err error, timeout time.Duration) string {
	if reason, expired := analyzer.DeadlineReason(parent, probeCtx, timeout); expired {
		return reason
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Cause.Error()
	}
	return err.Error()
}
