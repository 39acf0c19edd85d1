// Package gemini is a thin wrapper over the Google Generative AI SDK for the
// two calls the service makes: describe an image, and a text-only probe.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// PingPrompt is the fixed text-only prompt used to check connectivity.
const PingPrompt = "Test"

// ErrEmptyResponse is returned when the model answers without any text part.
var ErrEmptyResponse = errors.New("gemini: empty response")

type generateFunc func(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)

// Client holds a single SDK client shared by all requests. A GenerativeModel
// handle is cheap and is built per call.
type Client struct {
	cl          *genai.Client
	model       string
	maxAttempts int
	backoff     time.Duration
	generate    generateFunc
}

// New dials the SDK with an API key. maxAttempts below 1 is treated as 1.
func New(ctx context.Context, apiKey, model string, maxAttempts int) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: API key is empty")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("gemini: model is empty")
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	c := &Client{
		cl:          cl,
		model:       model,
		maxAttempts: maxAttempts,
		backoff:     300 * time.Millisecond,
	}
	c.generate = func(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
		return c.cl.GenerativeModel(c.model).GenerateContent(ctx, parts...)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Describe sends the prompt followed by a JPEG image and returns the text of
// the first candidate.
func (c *Client) Describe(ctx context.Context, prompt string, jpegData []byte) (string, error) {
	resp, err := c.call(ctx, genai.Text(prompt), genai.ImageData("jpeg", jpegData))
	if err != nil {
		return "", err
	}
	txt := firstText(resp)
	if txt == "" {
		return "", emptyResponseError(resp)
	}
	return txt, nil
}

// Ping issues the text-only probe. Only transport or API errors count as a
// failure; the content of the answer is ignored.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, genai.Text(PingPrompt))
	return err
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.cl == nil {
		return nil
	}
	return c.cl.Close()
}

func (c *Client) call(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.generate(ctx, parts...)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == c.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
	return nil, lastErr
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok && strings.TrimSpace(string(t)) != "" {
				return string(t)
			}
		}
	}
	return ""
}

func emptyResponseError(resp *genai.GenerateContentResponse) error {
	if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return fmt.Errorf("%w: prompt blocked (%v)", ErrEmptyResponse, resp.PromptFeedback.BlockReason)
	}
	if resp != nil && len(resp.Candidates) > 0 {
		return fmt.Errorf("%w: finish reason %v", ErrEmptyResponse, resp.Candidates[0].FinishReason)
	}
	return ErrEmptyResponse
}
