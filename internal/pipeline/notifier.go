package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/capture-api/internal/domain"
	"github.com/phrazzld/capture-api/internal/events"
	"github.com/phrazzld/capture-api/internal/push"
)

// DeviceDirectory is the subset of *device.Registry the notifier uses.
type DeviceDirectory interface {
	Lookup(userID string) (domain.Device, bool)
	UnregisterToken(userID, token string) bool
}

// PushSender is the subset of *push.Dispatcher the notifier uses.
type PushSender interface {
	SendEventsFound(ctx context.Context, dev domain.Device, jobID string, events []domain.ExtractedEvent) push.Result
	SendNoEvents(ctx context.Context, dev domain.Device, jobID string) push.Result
	SendError(ctx context.Context, dev domain.Device, jobID string, errText string) push.Result
}

// PushNotifier sends a push notification for every finished job whose user
// has a registered device.
type PushNotifier struct {
	devices DeviceDirectory
	sender  PushSender
	timeout time.Duration
	logger  *slog.Logger
}

var _ events.EventHandler = (*PushNotifier)(nil)

// NewPushNotifier creates a PushNotifier. A positive timeout bounds each send.
func NewPushNotifier(
	devices DeviceDirectory,
	sender PushSender,
	timeout time.Duration,
	logger *slog.Logger,
) (*PushNotifier, error) {
	if devices == nil {
		return nil, errors.New("device directory cannot be nil")
	}
	if sender == nil {
		return nil, errors.New("push sender cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PushNotifier{
		devices: devices,
		sender:  sender,
		timeout: timeout,
		logger:  logger.With("component", "push_notifier"),
	}, nil
}

// HandleEvent implements events.EventHandler. Delivery failures are logged,
// not returned: the job result stays available through the status read.
func (n *PushNotifier) HandleEvent(ctx context.Context, event *events.JobFinishedEvent) error {
	job := event.Job
	log := n.logger.With("job_id", job.ID, "user_id", job.UserID)

	dev, ok := n.devices.Lookup(job.UserID)
	if !ok {
		log.DebugContext(ctx, "no registered device, skipping push")
		return nil
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	var result push.Result
	switch {
	case job.Status == domain.JobStatusFailed:
		result = n.sender.SendError(ctx, dev, job.ID, job.Error)
	case len(job.Events) == 0:
		result = n.sender.SendNoEvents(ctx, dev, job.ID)
	default:
		result = n.sender.SendEventsFound(ctx, dev, job.ID, job.Events)
	}

	if result.Delivered() {
		log.InfoContext(ctx, "push delivered", "event_type", event.Type)
		return nil
	}

	log.WarnContext(ctx, "push not delivered",
		"outcome", result.Outcome,
		"reason", result.Reason,
		"status_code", result.StatusCode)

	if result.TokenRejected() && n.devices.UnregisterToken(job.UserID, dev.Token) {
		log.InfoContext(ctx, "stale device token removed", "outcome", result.Outcome)
	}
	return nil
}
