package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eduguide",
		Subsystem: "ai",
		Name:      "completion_duration_seconds",
		Help:      "Duration of AI completion requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eduguide",
		Subsystem: "ai",
		Name:      "completion_failures_total",
		Help:      "Number of AI completion failures by reason",
	}, []string{"model", "reason"})
)

const pingPrompt = "Hello"

// OpenAIConfig defines configuration options for an OpenAI-compatible completion endpoint.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// OpenAICompleter implements Completer against the chat completion API.
type OpenAICompleter struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAICompleter builds a completer. A missing API key does not fail construction;
// every call reports ErrNotConfigured instead.
func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 600
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	var client *openai.Client
	if strings.TrimSpace(cfg.APIKey) != "" {
		config := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			config.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
		}
		// The context deadline fires first; the client timeout only guards stuck connections.
		config.HTTPClient = &http.Client{Timeout: cfg.Timeout + 5*time.Second}
		client = openai.NewClientWithConfig(config)
	}

	return &OpenAICompleter{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/eduguide-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "ai_completer").Logger(),
	}
}

// Configured reports whether a credential was supplied.
func (c *OpenAICompleter) Configured() bool {
	return c.client != nil
}

// Complete sends a single-turn prompt and returns the generated text unmodified.
func (c *OpenAICompleter) Complete(parent context.Context, prompt string) (string, error) {
	return c.complete(parent, "ai.complete", prompt, c.cfg.MaxTokens)
}

// Probe issues a minimal completion and discards the output.
func (c *OpenAICompleter) Probe(parent context.Context) error {
	_, err := c.complete(parent, "ai.ping", pingPrompt, 1)
	return err
}

func (c *OpenAICompleter) complete(parent context.Context, spanName, prompt string, maxTokens int) (string, error) {
	if c.client == nil {
		return "", ErrNotConfigured
	}

	ctx, span := c.tracer.Start(parent, spanName, trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
		attribute.Int("prompt.length", len(prompt)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	aiDuration.WithLabelValues(c.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		classified := classify(ctx, err)
		c.fail(span, classified)
		c.logger.Warn().Err(err).Str("span", spanName).Msg("completion request failed")
		return "", classified
	}

	if len(resp.Choices) == 0 {
		classified := fmt.Errorf("%w: no choices returned", ErrCompletionFailed)
		c.fail(span, classified)
		return "", classified
	}

	span.SetStatus(codes.Ok, "completed")
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAICompleter) fail(span trace.Span, err error) {
	aiFailures.WithLabelValues(c.cfg.Model, reasonLabel(err)).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// classify maps provider and transport failures onto the package sentinels.
func classify(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrCompletionTimeout, err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	message := strings.ToLower(err.Error())
	switch {
	case status == http.StatusTooManyRequests, strings.Contains(message, "quota"), strings.Contains(message, "rate limit"):
		return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		strings.Contains(message, "api key not valid"), strings.Contains(message, "incorrect api key"),
		strings.Contains(message, "invalid api key"):
		return fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	default:
		return fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "quota"
	case errors.Is(err, ErrInvalidCredential):
		return "credential"
	case errors.Is(err, ErrCompletionTimeout):
		return "timeout"
	default:
		return "other"
	}
}
