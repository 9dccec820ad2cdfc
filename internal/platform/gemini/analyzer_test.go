package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/capture-api/internal/config"
	"github.com/phrazzld/capture-api/internal/vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// fakeGenerator replays scripted responses and records what it was sent.
type fakeGenerator struct {
	mu        sync.Mutex
	calls     int
	responses []fakeResponse
	lastModel string
	lastParts []*genai.Part
	lastCfg   *genai.GenerateContentConfig
}

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeGenerator) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastModel = model
	f.lastCfg = cfg
	if len(contents) > 0 {
		f.lastParts = contents[0].Parts
	}

	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i].resp, f.responses[i].err
}

func textResponse(text string) fakeResponse {
	return fakeResponse{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}}
}

func newTestAnalyzer(t *testing.T, gen *fakeGenerator, mutate func(*config.LLMConfig)) *Analyzer {
	t.Helper()

	cfg := config.LLMConfig{
		GeminiAPIKey:      "test-key",
		ModelName:         "gemini-test",
		MaxRetries:        2,
		RetryDelaySeconds: 1,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := newAnalyzer(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg, gen)
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }
	a.backoff = func(*rand.Rand, int) time.Duration { return 0 }
	return a
}

func TestAnalyzeMultipleEvents(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{textResponse(`{
		"found_event": true,
		"events": [
			{"title": "Dinner with Max", "date": "2026-10-20", "start_time": "19:00", "timezone": "Europe/Berlin", "confidence": 0.9},
			{"title": "Tax return due", "date": "2026-10-31", "start_time": "23:59", "is_deadline": true}
		],
		"raw_text": "dinner tues 7? also taxes due 31st"
	}`)}}
	a := newTestAnalyzer(t, gen, nil)

	result, err := a.Analyze(context.Background(), pngHeader)
	require.NoError(t, err)

	assert.True(t, result.Found)
	require.Len(t, result.Events, 2)
	assert.Equal(t, "Dinner with Max", result.Events[0].Title)
	assert.False(t, result.Events[0].IsAllDay)
	assert.Equal(t, 0.9, result.Events[0].Confidence)
	assert.True(t, result.Events[1].IsDeadline)
	assert.True(t, result.Events[1].IsAllDay)
	assert.Equal(t, "23:59", result.Events[1].DeadlineTime)
	assert.Equal(t, "dinner tues 7? also taxes due 31st", result.RawText)

	assert.Equal(t, "gemini-test", gen.lastModel)
	require.Len(t, gen.lastParts, 2)
	assert.Equal(t, "image/png", gen.lastParts[1].InlineData.MIMEType)
	assert.Equal(t, "application/json", gen.lastCfg.ResponseMIMEType)
	assert.Contains(t, gen.lastCfg.SystemInstruction.Parts[0].Text, "TODAY'S DATE: 2026-10-17 (Saturday)")
}

func TestAnalyzeSingleEventInfoShape(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{textResponse("```json\n" + `{
		"found_event": true,
		"event_info": {"title": "Coffee with Sarah", "date": "2026-10-18", "start_time": null, "is_all_day": null},
		"raw_text": "coffee tomorrow?"
	}` + "\n```")}}
	a := newTestAnalyzer(t, gen, nil)

	result, err := a.Analyze(context.Background(), []byte("not really an image"))
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	ev := result.Events[0]
	assert.Equal(t, "Coffee with Sarah", ev.Title)
	assert.True(t, ev.IsAllDay, "no start time and no explicit flag means all-day")
	assert.Equal(t, "UTC", ev.Timezone)
	assert.Equal(t, 0.5, ev.Confidence)
	assert.Equal(t, "image/jpeg", gen.lastParts[1].InlineData.MIMEType)
}

func TestAnalyzeNoEvents(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{textResponse(`{"found_event": false, "event_info": null, "raw_text": "a cat"}`)}}
	a := newTestAnalyzer(t, gen, nil)

	result, err := a.Analyze(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Empty(t, result.Events)
	assert.Equal(t, "a cat", result.RawText)
}

func TestAnalyzeDropsInvalidEvents(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{textResponse(`{
		"found_event": true,
		"events": [
			{"title": "", "date": "2026-10-20"},
			{"title": "Party", "date": "next friday"},
			{"title": "Brunch", "date": "2026-10-25", "start_time": "11:00"}
		]
	}`)}}
	a := newTestAnalyzer(t, gen, nil)

	result, err := a.Analyze(context.Background(), pngHeader)
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "Brunch", result.Events[0].Title)
}

func TestAnalyzeAllEventsInvalidMeansNotFound(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{textResponse(`{"found_event": true, "event_info": {"title": "x"}}`)}}
	a := newTestAnalyzer(t, gen, nil)

	result, err := a.Analyze(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestAnalyzeEmptyImage(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{textResponse(`{}`)}}
	a := newTestAnalyzer(t, gen, nil)

	_, err := a.Analyze(context.Background(), nil)
	assert.ErrorIs(t, err, vision.ErrEmptyImage)
	assert.Equal(t, 0, gen.calls)
}

func TestAnalyzeRetriesTransientErrors(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{
		{err: errors.New("503 service unavailable")},
		textResponse(`{"found_event": true, "events": [{"title": "Gym", "date": "2026-10-19"}]}`),
	}}
	a := newTestAnalyzer(t, gen, nil)

	result, err := a.Analyze(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, 2, gen.calls)
}

func TestAnalyzeGivesUpAfterMaxRetries(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{{err: errors.New("503 service unavailable")}}}
	a := newTestAnalyzer(t, gen, func(cfg *config.LLMConfig) { cfg.MaxRetries = 2 })

	_, err := a.Analyze(context.Background(), pngHeader)
	assert.ErrorIs(t, err, vision.ErrTransientFailure)
	assert.Equal(t, 3, gen.calls)
}

func TestAnalyzeConcurrentRetries(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{{err: errors.New("503 service unavailable")}}}
	a := newTestAnalyzer(t, gen, func(cfg *config.LLMConfig) { cfg.MaxRetries = 3 })

	// Real jittered delays, scaled down to microseconds.
	a.backoff = func(rng *rand.Rand, attempt int) time.Duration {
		return a.jitteredDelay(rng, attempt) / 100000
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = a.Analyze(context.Background(), pngHeader)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, vision.ErrTransientFailure)
	}
	assert.Equal(t, callers*4, gen.calls)
}

func TestJitteredDelayBounds(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{textResponse(`{}`)}}
	a := newTestAnalyzer(t, gen, func(cfg *config.LLMConfig) { cfg.RetryDelaySeconds = 2 })
	rng := rand.New(rand.NewSource(1))

	for attempt := 0; attempt < 3; attempt++ {
		full := time.Duration(2<<attempt) * time.Second
		delay := a.jitteredDelay(rng, attempt)
		assert.GreaterOrEqual(t, delay, full/2)
		assert.Less(t, delay, full)
	}
}

func TestAnalyzePermanentErrorsAreNotRetried(t *testing.T) {
	testCases := []struct {
		name    string
		resp    fakeResponse
		wantErr error
	}{
		{
			name: "safety block",
			resp: fakeResponse{resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
			}},
			wantErr: vision.ErrContentBlocked,
		},
		{
			name:    "no candidates",
			resp:    fakeResponse{resp: &genai.GenerateContentResponse{}},
			wantErr: vision.ErrInvalidResponse,
		},
		{
			name:    "malformed JSON",
			resp:    textResponse(`{"found_event": tru`),
			wantErr: vision.ErrInvalidResponse,
		},
		{
			name:    "empty text",
			resp:    textResponse("   "),
			wantErr: vision.ErrInvalidResponse,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &fakeGenerator{responses: []fakeResponse{tc.resp}}
			a := newTestAnalyzer(t, gen, nil)

			_, err := a.Analyze(context.Background(), pngHeader)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, 1, gen.calls)
		})
	}
}

func TestAnalyzeHonorsContextDuringBackoff(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{{err: errors.New("unavailable")}}}
	a := newTestAnalyzer(t, gen, nil)
	a.backoff = func(*rand.Rand, int) time.Duration { return time.Hour }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.Analyze(ctx, pngHeader)
	assert.ErrorIs(t, err, vision.ErrTransientFailure)
	assert.Equal(t, 1, gen.calls)
}

func TestNewAnalyzerValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := newAnalyzer(nil, config.LLMConfig{ModelName: "m"}, &fakeGenerator{})
	assert.Error(t, err)

	_, err = newAnalyzer(logger, config.LLMConfig{}, &fakeGenerator{})
	assert.ErrorIs(t, err, vision.ErrInvalidConfig)

	_, err = newAnalyzer(logger, config.LLMConfig{ModelName: "m", PromptTemplatePath: "/does/not/exist.tmpl"}, &fakeGenerator{})
	assert.ErrorIs(t, err, vision.ErrInvalidConfig)

	_, err = NewAnalyzer(context.Background(), logger, config.LLMConfig{ModelName: "m"})
	assert.ErrorIs(t, err, vision.ErrInvalidConfig)
}

func TestCustomPromptTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("Custom prompt for {{.Today}} in {{.Year}}"), 0o600))

	gen := &fakeGenerator{responses: []fakeResponse{textResponse(`{"found_event": false}`)}}
	a := newTestAnalyzer(t, gen, func(cfg *config.LLMConfig) { cfg.PromptTemplatePath = path })

	_, err := a.Analyze(context.Background(), pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "Custom prompt for 2026-10-17 in 2026", gen.lastCfg.SystemInstruction.Parts[0].Text)
}

func TestDefaultPromptRenders(t *testing.T) {
	tmpl, err := loadPromptTemplate("")
	require.NoError(t, err)

	prompt, err := renderPrompt(tmpl, time.Date(2026, 12, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Contains(t, prompt, "CURRENT YEAR: 2026")
	assert.Contains(t, prompt, "then 2027")
	assert.True(t, strings.Contains(prompt, `"is_deadline"`))
}
