package analyzer

import "time"

// AnalysisOptions configures how an image is sent to the model
type AnalysisOptions struct {
	// Prompt is sent verbatim ahead of the image
	Prompt string

	// Timeout bounds a single Analyze call, retries included
	Timeout time.Duration

	// JPEGQuality is used when re-encoding the bitmap for upload
	JPEGQuality int
}

// DefaultOptions returns default analysis options. The prompt is left empty;
// it always comes from the active variant.
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		Timeout:     60 * time.Second,
		JPEGQuality: 90,
	}
}

// WithPrompt returns options using the given prompt
func (opts AnalysisOptions) WithPrompt(prompt string) AnalysisOptions {
	opts.Prompt = prompt
	return opts
}

// WithTimeout returns options with a different per-call timeout
func (opts AnalysisOptions) WithTimeout(timeout time.Duration) AnalysisOptions {
	opts.Timeout = timeout
	return opts
}

// WithJPEGQuality sets the upload quality, clamped to 1..100
func (opts AnalysisOptions) WithJPEGQuality(quality int) AnalysisOptions {
	switch {
	case quality < 1:
		quality = 1
	case quality > 100:
		quality = 100
	}
	opts.JPEGQuality = quality
	return opts
}
