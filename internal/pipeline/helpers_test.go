package pipeline

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/capture-api/internal/config"
	"github.com/phrazzld/capture-api/internal/device"
	"github.com/phrazzld/capture-api/internal/domain"
	"github.com/phrazzld/capture-api/internal/events"
	"github.com/phrazzld/capture-api/internal/job"
	"github.com/phrazzld/capture-api/internal/push"
	"github.com/phrazzld/capture-api/internal/quota"
	"github.com/phrazzld/capture-api/internal/task"
	"github.com/phrazzld/capture-api/internal/vision"
	"github.com/stretchr/testify/require"
)

var (
	testImage       = []byte("\x89PNG\r\n\x1a\nscreenshot")
	testDeviceToken = strings.Repeat("ab", 32)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeAnalyzer returns whatever fn returns and counts calls.
type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, image []byte) (*vision.Result, error)
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, image []byte) (*vision.Result, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return a.fn(ctx, image)
}

func (a *fakeAnalyzer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func returnsEvents(titles ...string) *fakeAnalyzer {
	return &fakeAnalyzer{fn: func(ctx context.Context, image []byte) (*vision.Result, error) {
		result := &vision.Result{Found: len(titles) > 0, Events: []domain.ExtractedEvent{}}
		for _, title := range titles {
			ev, err := domain.NewExtractedEvent(domain.EventInput{Title: title, Date: "2026-10-20", StartTime: "18:00"})
			if err != nil {
				return nil, err
			}
			result.Events = append(result.Events, ev)
		}
		return result, nil
	}}
}

func returnsError(err error) *fakeAnalyzer {
	return &fakeAnalyzer{fn: func(ctx context.Context, image []byte) (*vision.Result, error) {
		return nil, err
	}}
}

// pushRequest is one notification the fake provider received.
type pushRequest struct {
	Path string
	Body map[string]interface{}
}

func (r pushRequest) Title() string {
	aps, _ := r.Body["aps"].(map[string]interface{})
	alert, _ := aps["alert"].(map[string]interface{})
	title, _ := alert["title"].(string)
	return title
}

// fakeProvider stands in for the push provider and answers 200 unless
// reason is set.
type fakeProvider struct {
	mu       sync.Mutex
	requests []pushRequest
	status   int
	reason   string
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	p.mu.Lock()
	p.requests = append(p.requests, pushRequest{Path: r.URL.Path, Body: body})
	status, reason := p.status, p.reason
	p.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if reason != "" {
		_, _ = w.Write([]byte(`{"reason":"` + reason + `"}`))
	}
}

func (p *fakeProvider) Requests() []pushRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pushRequest(nil), p.requests...)
}

func configuredCredentials(t *testing.T) push.Credentials {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return push.NewCredentials("TEAM123456", "KEY1234567", "com.example.capture", key)
}

// harness wires the real components around a fake analyzer and a fake push
// provider.
type harness struct {
	pipeline *Pipeline
	tracker  *quota.Tracker
	jobs     *job.Store
	devices  *device.Registry
	runner   *task.TaskRunner
	provider *fakeProvider
	analyzer *fakeAnalyzer
}

type harnessOptions struct {
	limits      quota.Limits
	credentials *push.Credentials
	maxBytes    int
}

func newHarness(t *testing.T, analyzer *fakeAnalyzer, opts harnessOptions) *harness {
	t.Helper()
	logger := testLogger()

	if opts.limits == (quota.Limits{}) {
		opts.limits = quota.Limits{GlobalDaily: 100, PerUserDaily: 10}
	}
	if opts.maxBytes == 0 {
		opts.maxBytes = 1024
	}
	creds := configuredCredentials(t)
	if opts.credentials != nil {
		creds = *opts.credentials
	}

	provider := &fakeProvider{}
	server := httptest.NewServer(provider)
	t.Cleanup(server.Close)

	dispatcher := push.NewDispatcher(creds,
		config.PushConfig{TokenRefreshMinutes: 50, TimeoutSeconds: 5},
		logger,
		push.WithHTTPClient(server.Client()),
		push.WithEndpoints(server.URL+"/sandbox", server.URL+"/production"),
	)

	devices := device.NewRegistry(logger)
	notifier, err := NewPushNotifier(devices, dispatcher, 5*time.Second, logger)
	require.NoError(t, err)

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(notifier)

	tracker := quota.NewTracker(opts.limits)
	jobs := job.NewStore(logger)
	runner := task.NewTaskRunner(task.TaskRunnerConfig{WorkerCount: 2, QueueSize: 10}, logger)
	require.NoError(t, runner.Start())
	t.Cleanup(runner.Stop)

	p, err := New(Config{MaxImageBytes: opts.maxBytes, AnalyzeTimeout: 5 * time.Second}, Dependencies{
		Quota:    tracker,
		Jobs:     jobs,
		Runner:   runner,
		Analyzer: analyzer,
		Emitter:  emitter,
	}, logger)
	require.NoError(t, err)

	return &harness{
		pipeline: p,
		tracker:  tracker,
		jobs:     jobs,
		devices:  devices,
		runner:   runner,
		provider: provider,
		analyzer: analyzer,
	}
}

// drain waits for every accepted task to finish.
func (h *harness) drain() {
	h.runner.Stop()
}
