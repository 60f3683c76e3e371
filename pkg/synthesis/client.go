package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/skadi/skadi/pkg/engine"
	"github.com/skadi/skadi/pkg/interpreter"
	"github.com/skadi/skadi/pkg/telemetry"
)

const (
	// DefaultModel is the model used when none is configured.
	DefaultModel = "anthropic/claude-haiku-4.5"

	// DefaultBaseURL is the OpenRouter endpoint used when no custom
	// OpenAI-compatible provider is configured.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	defaultTimeout      = 60 * time.Second
	defaultSystemPrompt = "You are an expert quantum computing assistant specialized in PennyLane."
)

// Synthesizer turns a prompt into program source. errorFeedback, when not
// empty, describes why the previous attempt was rejected.
type Synthesizer interface {
	Generate(ctx context.Context, prompt, errorFeedback string) (string, error)
}

// SynthesizerFunc adapts a function to the Synthesizer interface.
type SynthesizerFunc func(ctx context.Context, prompt, errorFeedback string) (string, error)

// Generate calls f.
func (f SynthesizerFunc) Generate(ctx context.Context, prompt, errorFeedback string) (string, error) {
	return f(ctx, prompt, errorFeedback)
}

// Config configures a Client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string

	// Timeout bounds each completion request.
	Timeout time.Duration

	// RequestsPerMinute limits the call rate. Zero disables limiting.
	RequestsPerMinute int

	Temperature  float32
	MaxTokens    int
	SystemPrompt string
}

// Client is a Synthesizer backed by an OpenAI-compatible chat completion
// endpoint.
type Client struct {
	api     *openai.Client
	cfg     Config
	limiter *rate.Limiter
	tel     *telemetry.Telemetry
}

var _ Synthesizer = (*Client)(nil)

// NewClient creates a client. An API key is required.
func NewClient(cfg Config, tel *telemetry.Telemetry) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("API key not found: set SKADI_API_KEY or configure synthesis.api_key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	c := &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		cfg:     cfg,
		limiter: limiter,
		tel:     tel.Component("synthesis"),
	}
	c.tel.Logger.WithFields(map[string]interface{}{
		"model":    cfg.Model,
		"base_url": apiCfg.BaseURL,
	}).Debug("Initializing synthesis client")
	return c, nil
}

// Model returns the configured model id.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Generate sends one chat completion request and returns the reply with
// any surrounding code fence removed. Transport and API failures are
// returned as retryable synthesis errors; context errors are returned
// unchanged.
func (c *Client) Generate(ctx context.Context, prompt, errorFeedback string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", engine.NewSynthesisError(err)
	}

	ctx, span := c.tel.Tracer.StartSpan(ctx, "synthesis.generate")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.cfg.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: WithFeedback(prompt, errorFeedback)},
		},
		Temperature: c.cfg.Temperature,
	}
	if c.cfg.MaxTokens > 0 {
		req.MaxCompletionTokens = c.cfg.MaxTokens
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("completion returned no choices")
	}
	c.tel.Metrics.RecordSynthesisCall(c.cfg.Model, err, time.Since(start))
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		c.tel.Logger.WithError(err).WithField("model", c.cfg.Model).Warn("Synthesis call failed")
		return "", engine.NewSynthesisError(err)
	}

	telemetry.RecordSuccess(span)
	c.tel.Logger.WithFields(map[string]interface{}{
		"model":         c.cfg.Model,
		"finish_reason": string(resp.Choices[0].FinishReason),
		"tokens":        resp.Usage.TotalTokens,
	}).Debug("Received completion")
	return interpreter.StripFences(resp.Choices[0].Message.Content), nil
}
