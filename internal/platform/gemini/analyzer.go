package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/capture-api/internal/config"
	"github.com/phrazzld/capture-api/internal/redact"
	"github.com/phrazzld/capture-api/internal/vision"
	"google.golang.org/genai"
)

const userInstruction = "Analyze this screenshot and extract any event information. " +
	"If you find events, extract all available details. Respond with the JSON format specified."

// contentGenerator is the subset of the genai Models service the analyzer uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Analyzer implements vision.Analyzer using the Gemini API.
type Analyzer struct {
	logger         *slog.Logger
	config         config.LLMConfig
	promptTemplate *template.Template
	generator      contentGenerator
	model          string

	// now and backoff are replaceable in tests. backoff receives the rng of
	// the current call; a *rand.Rand must not be shared between goroutines.
	now     func() time.Time
	backoff func(rng *rand.Rand, attempt int) time.Duration
}

var _ vision.Analyzer = (*Analyzer)(nil)

// NewAnalyzer creates an Analyzer backed by a Gemini API client.
func NewAnalyzer(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Analyzer, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", vision.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", vision.ErrInvalidConfig, err)
	}

	return newAnalyzer(logger, cfg, client.Models)
}

func newAnalyzer(logger *slog.Logger, cfg config.LLMConfig, generator contentGenerator) (*Analyzer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", vision.ErrInvalidConfig)
	}

	tmpl, err := loadPromptTemplate(cfg.PromptTemplatePath)
	if err != nil {
		return nil, err
	}

	a := &Analyzer{
		logger:         logger.With("component", "gemini_analyzer", "model", cfg.ModelName),
		config:         cfg,
		promptTemplate: tmpl,
		generator:      generator,
		model:          cfg.ModelName,
		now:            time.Now,
	}
	a.backoff = a.jitteredDelay
	return a, nil
}

// Analyze sends image to Gemini and converts the answer into events.
func (a *Analyzer) Analyze(ctx context.Context, image []byte) (*vision.Result, error) {
	if len(image) == 0 {
		return nil, vision.ErrEmptyImage
	}

	systemPrompt, err := renderPrompt(a.promptTemplate, a.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vision.ErrAnalysisFailed, err)
	}

	mimeType := detectImageType(image)
	a.logger.DebugContext(ctx, "Analyzing screenshot",
		"image_bytes", len(image),
		"mime_type", mimeType)

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: userInstruction},
			{InlineData: &genai.Blob{Data: image, MIMEType: mimeType}},
		},
	}}
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		ResponseMIMEType:  "application/json",
	}

	response, err := a.callWithRetry(ctx, contents, genConfig)
	if err != nil {
		return nil, err
	}

	result := toResult(ctx, a.logger, response)
	a.logger.InfoContext(ctx, "Screenshot analyzed",
		"found", result.Found,
		"event_count", len(result.Events))
	return result, nil
}

// callWithRetry calls the API up to MaxRetries+1 times, backing off between
// transient failures. Safety blocks and unparseable responses are returned
// without retrying.
func (a *Analyzer) callWithRetry(
	ctx context.Context,
	contents []*genai.Content,
	genConfig *genai.GenerateContentConfig,
) (*responseSchema, error) {
	maxRetries := a.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attemptNum := attempt + 1

		resp, err := a.generator.GenerateContent(ctx, a.model, contents, genConfig)
		if err != nil {
			lastErr = err
			a.logger.ErrorContext(ctx, "Gemini API call error",
				"error", redact.Error(err),
				"attempt", attemptNum)
		} else {
			parsed, err := interpret(resp)
			if err != nil {
				a.logger.WarnContext(ctx, "Permanent error occurred, not retrying",
					"error", err,
					"attempt", attemptNum)
				return nil, err
			}
			return parsed, nil
		}

		if attempt >= maxRetries {
			break
		}

		delay := a.backoff(rng, attempt)
		a.logger.InfoContext(ctx, "Retrying after delay",
			"attempt", attemptNum,
			"delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", vision.ErrTransientFailure, ctx.Err())
		}
	}

	a.logger.WarnContext(ctx, "Maximum retry attempts reached", "max_retries", maxRetries)
	return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %s",
		vision.ErrTransientFailure, maxRetries, redact.Error(lastErr))
}

// interpret validates a successful API response and decodes its JSON body.
func interpret(resp *genai.GenerateContentResponse) (*responseSchema, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", vision.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", vision.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", vision.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", vision.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", vision.ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	return decodeResponse(text.String())
}

// jitteredDelay returns baseDelay * 2^attempt scaled by a random factor
// in [0.5, 1.0).
func (a *Analyzer) jitteredDelay(rng *rand.Rand, attempt int) time.Duration {
	base := a.config.RetryDelaySeconds
	if base < 1 {
		base = 2
	}
	backoffSeconds := float64(base) * math.Pow(2, float64(attempt))
	jitterFactor := 0.5 + rng.Float64()*0.5
	return time.Duration(backoffSeconds * jitterFactor * float64(time.Second))
}

// detectImageType sniffs the MIME type, defaulting to JPEG for anything the
// sniffer does not recognize as an image.
func detectImageType(image []byte) string {
	mimeType := http.DetectContentType(image)
	if strings.HasPrefix(mimeType, "image/") {
		return mimeType
	}
	return "image/jpeg"
}
