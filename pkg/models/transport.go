package models

// AnalyzeRequest is the body of POST /analyze. ImageData is base64 text,
// optionally prefixed with a data URL header such as "data:image/png;base64,".
type AnalyzeRequest struct {
	ImageData string `json:"imageData" binding:"required"`
}

// AnalysisResponse is returned with status 200 for both a successful analysis
// and a soft failure. Error is null on success.
type AnalysisResponse struct {
	Result string  `json:"result"`
	Error  *string `json:"error"`
}

// NewSuccessResponse wraps the model's answer
func NewSuccessResponse(result string) AnalysisResponse {
	return AnalysisResponse{Result: result, Error: nil}
}

// NewSoftFailureResponse carries an error message with an empty result
func NewSoftFailureResponse(message string) AnalysisResponse {
	return AnalysisResponse{Result: "", Error: &message}
}

// ErrorResponse represents a rejected request. Detail is the primary field;
// Error repeats it for clients that read the same key on every endpoint.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// NewErrorResponse builds an ErrorResponse with both fields set to message
func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Detail: message, Error: message}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status       string       `json:"status"`
	GeminiStatus string       `json:"gemini_status,omitempty"`
	Variant      string       `json:"variant,omitempty"`
	Model        string       `json:"model,omitempty"`
	Error        string       `json:"error,omitempty"`
	Stats        *HealthStats `json:"stats,omitempty"`
}

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
	GeminiStatusConnected = "connected"
)
