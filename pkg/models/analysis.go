package models

// ImageMetadata describes a decoded image without its pixels
type ImageMetadata struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int    `json:"bytes"`
}

// Fields flattens the metadata for structured logs and event records
func (m ImageMetadata) Fields() map[string]interface{} {
	return map[string]interface{}{
		"format": m.Format,
		"width":  m.Width,
		"height": m.Height,
		"bytes":  m.Bytes,
	}
}

// HealthStats summarizes the process since start
type HealthStats struct {
	StartedAt         string  `json:"started_at"`
	TotalRequests     int64   `json:"total_requests"`
	Successful        int64   `json:"successful"`
	SoftFailures      int64   `json:"soft_failures"`
	RejectedImages    int64   `json:"rejected_images"`
	HealthChecks      int64   `json:"health_checks"`
	AvgModelLatencyMS float64 `json:"avg_model_latency_ms"`
	EventsQueued      int64   `json:"events_queued"`
	EventsDropped     int64   `json:"events_dropped"`
}
