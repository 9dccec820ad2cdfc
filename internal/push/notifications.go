package push

import (
	"context"
	"fmt"

	"github.com/phrazzld/capture-api/internal/domain"
)

// Actions carried in the custom data of each notification.
const (
	ActionEventsFound = "events_found"
	ActionNoEvents    = "no_events"
	ActionError       = "error"
)

// MaxErrorBodyLength bounds the error text included in a failure alert.
const MaxErrorBodyLength = 100

// SendEventsFound tells dev that jobID produced events. Only the job ID is
// sent; the client fetches the events themselves from the status endpoint.
func (d *Dispatcher) SendEventsFound(
	ctx context.Context,
	dev domain.Device,
	jobID string,
	events []domain.ExtractedEvent,
) Result {
	if len(events) == 0 {
		return d.SendNoEvents(ctx, dev, jobID)
	}

	title := "Event Found"
	body := events[0].Title
	if len(events) > 1 {
		title = fmt.Sprintf("%d Events Found", len(events))
		body = fmt.Sprintf("%s and %d more", events[0].Title, len(events)-1)
	}

	return d.Send(ctx, Notification{
		DeviceToken: dev.Token,
		Environment: dev.Environment,
		Title:       title,
		Body:        body,
		Data:        map[string]string{"action": ActionEventsFound, "job_id": jobID},
	})
}

// SendNoEvents tells dev that jobID finished without finding anything.
func (d *Dispatcher) SendNoEvents(ctx context.Context, dev domain.Device, jobID string) Result {
	return d.Send(ctx, Notification{
		DeviceToken: dev.Token,
		Environment: dev.Environment,
		Title:       "No Events Found",
		Body:        "Couldn't detect events in the screenshot",
		Data:        map[string]string{"action": ActionNoEvents, "job_id": jobID},
	})
}

// SendError tells dev that jobID failed.
func (d *Dispatcher) SendError(ctx context.Context, dev domain.Device, jobID string, errText string) Result {
	return d.Send(ctx, Notification{
		DeviceToken: dev.Token,
		Environment: dev.Environment,
		Title:       "Capture Failed",
		Body:        TruncateError(errText),
		Data:        map[string]string{"action": ActionError, "job_id": jobID},
	})
}

// TruncateError shortens text to MaxErrorBodyLength runes, appending "..."
// when anything was cut.
func TruncateError(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxErrorBodyLength {
		return text
	}
	return string(runes[:MaxErrorBodyLength]) + "..."
}
