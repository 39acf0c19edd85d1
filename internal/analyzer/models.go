package analyzer

import (
	"errors"

	apperrors "github.com/itsadi-24/smart-note/internal/errors"
)

// OutcomeKind tags the three ways an analysis request can end
type OutcomeKind int

const (
	// OutcomeSuccess carries the model's answer
	OutcomeSuccess OutcomeKind = iota
	// OutcomeSoftFailure is a failure after the image was accepted; it is
	// reported to the client with a success status and an error message.
	OutcomeSoftFailure
	// OutcomeClientError means the payload itself was unusable
	OutcomeClientError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSoftFailure:
		return "soft_failure"
	case OutcomeClientError:
		return "client_error"
	default:
		return "unknown"
	}
}

// SoftFailurePrefix starts every soft failure message
const SoftFailurePrefix = "Analysis failed: "

// Outcome is the result of one analysis request
type Outcome struct {
	Kind OutcomeKind
	// Text is the model answer; set only on success
	Text string
	// Message is the client-facing error text; empty on success
	Message string
	// Err is the underlying cause, kept for logging
	Err error
}

// Success wraps the model's answer
func Success(text string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Text: text}
}

// SoftFailure builds a failure whose message is "Analysis failed: <reason>"
func SoftFailure(reason string, cause error) Outcome {
	return Outcome{Kind: OutcomeSoftFailure, Message: SoftFailurePrefix + reason, Err: cause}
}

// ClientError reports a rejected payload. AppErrors contribute their detail
// text; any other error its plain message and is wrapped as a validation error.
func ClientError(err error) Outcome {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return Outcome{Kind: OutcomeClientError, Message: appErr.Detail(), Err: err}
	}
	return Outcome{Kind: OutcomeClientError, Message: err.Error(), Err: apperrors.NewValidationError("rejected payload", err)}
}

// Failed reports whether the outcome carries an error message
func (o Outcome) Failed() bool {
	return o.Kind != OutcomeSuccess
}
