package analyzer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	apperrors "github.com/itsadi-24/smart-note/internal/errors"
	"github.com/itsadi-24/smart-note/internal/imagedata"
)

// coreAnalyzer implements ImageAnalyzer on top of a VisionModel
type coreAnalyzer struct {
	model   VisionModel
	options AnalysisOptions
}

// NewImageAnalyzer creates an analyzer bound to one model and prompt
func NewImageAnalyzer(model VisionModel, options AnalysisOptions) (ImageAnalyzer, error) {
	if model == nil {
		return nil, apperrors.NewConfigurationError("vision model is required", nil)
	}
	if options.Prompt == "" {
		return nil, apperrors.NewConfigurationError("analysis prompt is required", nil)
	}
	if options.Timeout <= 0 {
		options.Timeout = DefaultOptions().Timeout
	}
	if options.JPEGQuality == 0 {
		options.JPEGQuality = DefaultOptions().JPEGQuality
	}

	return &coreAnalyzer{model: model, options: options}, nil
}

// Analyze encodes the bitmap, sends it with the prompt and maps any failure
// to a soft failure. It never returns a client error: by the time a bitmap
// exists the payload has already been accepted.
func (ca *coreAnalyzer) Analyze(ctx context.Context, img image.Image) Outcome {
	data, err := imagedata.EncodeJPEG(img, ca.options.JPEGQuality)
	if err != nil {
		return SoftFailure(err.Error(), apperrors.NewInternalError("prepare upload image", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, ca.options.Timeout)
	defer cancel()

	text, err := ca.model.Describe(callCtx, ca.options.Prompt, data)
	if err != nil {
		if reason, expired := DeadlineReason(ctx, callCtx, ca.options.Timeout); expired {
			return SoftFailure(reason, apperrors.NewTimeoutError(reason, err))
		}
		return SoftFailure(err.Error(), apperrors.NewUpstreamError("model call failed", err))
	}

	return Success(text)
}

// Probe performs the text-only connectivity check
func (ca *coreAnalyzer) Probe(ctx context.Context) error {
	if err := ca.model.Ping(ctx); err != nil {
		return apperrors.NewUpstreamError("model probe failed", err)
	}
	return nil
}

func (ca *coreAnalyzer) Model() string {
	return ca.model.Model()
}

// DeadlineReason names the deadline that ended call, which was derived from
// parent with the given timeout. It reports false when call has not hit a
// deadline. A parent deadline no later than the timeout's is blamed instead
// of the timeout.
func DeadlineReason(parent, call context.Context, timeout time.Duration) (string, bool) {
	if !errors.Is(call.Err(), context.DeadlineExceeded) {
		return "", false
	}
	if pd, ok := parent.Deadline(); ok {
		if cd, _ := call.Deadline(); !pd.After(cd) {
			return "request deadline exceeded before the model responded", true
		}
	}
	return fmt.Sprintf("model did not respond within %s", timeout), true
}
