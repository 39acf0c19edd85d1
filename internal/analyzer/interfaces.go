package analyzer

import (
	"context"
	"image"
)

// VisionModel is the external multimodal model the analyzer delegates to.
type VisionModel interface {
	// Describe sends the prompt and a JPEG image and returns the answer text
	Describe(ctx context.Context, prompt string, jpegData []byte) (string, error)

	// Ping issues a minimal text-only request
	Ping(ctx context.Context) error

	// Model returns the model identifier, for logs and health output
	Model() string
}

// ImageAnalyzer turns a decoded bitmap into an Outcome
type ImageAnalyzer interface {
	Analyze(ctx context.Context, img image.Image) Outcome

	// Probe checks the model is reachable
	Probe(ctx context.Context) error

	Model() string
}
