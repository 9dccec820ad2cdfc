package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/capture-api/internal/domain"
	"github.com/phrazzld/capture-api/internal/redact"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// PrimaryCalendarID addresses the user's default calendar.
const PrimaryCalendarID = "primary"

// DefaultEventDuration is used for timed events without an end time.
const DefaultEventDuration = time.Hour

// DeadlineReminderMinutes schedules the deadline popup one day ahead.
const DeadlineReminderMinutes = 24 * 60

const createdByNote = "---\nCreated by Capture"

// ErrCalendarWrite is returned when an event could not be created.
var ErrCalendarWrite = errors.New("failed to create calendar event")

// CreatedEvent identifies an event written to the user's calendar.
type CreatedEvent struct {
	ID       string `json:"id"`
	HTMLLink string `json:"html_link"`
}

// CalendarWriter inserts extracted events into the user's primary calendar.
type CalendarWriter struct {
	logger *slog.Logger
	opts   []option.ClientOption
}

// NewCalendarWriter creates a CalendarWriter. opts are appended to every
// client.
func NewCalendarWriter(logger *slog.Logger, opts ...option.ClientOption) *CalendarWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarWriter{
		logger: logger.With("component", "calendar_writer"),
		opts:   opts,
	}
}

// CreateEvent writes ev to the primary calendar of the owner of accessToken.
func (w *CalendarWriter) CreateEvent(
	ctx context.Context,
	accessToken string,
	ev domain.ExtractedEvent,
) (CreatedEvent, error) {
	if strings.TrimSpace(accessToken) == "" {
		return CreatedEvent{}, ErrInvalidAccessToken
	}

	body, err := BuildEvent(ev)
	if err != nil {
		return CreatedEvent{}, fmt.Errorf("%w: %v", ErrCalendarWrite, err)
	}

	svc, err := calendar.NewService(ctx, userClientOptions(ctx, accessToken, w.opts)...)
	if err != nil {
		return CreatedEvent{}, fmt.Errorf("%w: failed to create calendar client: %v", ErrCalendarWrite, err)
	}

	created, err := svc.Events.Insert(PrimaryCalendarID, body).Context(ctx).Do()
	if err != nil {
		if isUnauthorized(err) {
			return CreatedEvent{}, ErrInvalidAccessToken
		}
		w.logger.ErrorContext(ctx, "calendar insert failed",
			"title", ev.Title,
			"error", redact.Error(err))
		return CreatedEvent{}, fmt.Errorf("%w: %s", ErrCalendarWrite, redact.Error(err))
	}

	w.logger.InfoContext(ctx, "calendar event created", "event_id", created.Id)
	return CreatedEvent{ID: created.Id, HTMLLink: created.HtmlLink}, nil
}

// BuildEvent converts ev into a Calendar API event.
//
// All-day events and deadlines span one day; the API treats the end date as
// exclusive. Deadlines get their time of day in the description and a popup
// reminder one day before. Timed events without an end time last
// DefaultEventDuration, and an end time earlier than the start is taken to
// fall on the next day.
func BuildEvent(ev domain.ExtractedEvent) (*calendar.Event, error) {
	loc, err := time.LoadLocation(ev.Timezone)
	if err != nil {
		loc = time.UTC
	}
	tz := loc.String()

	out := &calendar.Event{
		Summary:     ev.Title,
		Location:    ev.Location,
		Description: buildDescription(ev),
	}

	if ev.IsAllDay || ev.IsDeadline || ev.StartTime == "" {
		day, err := time.Parse(domain.DateLayout, ev.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid event date %q: %w", ev.Date, err)
		}
		out.Start = &calendar.EventDateTime{Date: ev.Date, TimeZone: tz}
		out.End = &calendar.EventDateTime{Date: day.AddDate(0, 0, 1).Format(domain.DateLayout), TimeZone: tz}
	} else {
		start, err := time.ParseInLocation(domain.DateLayout+" "+domain.TimeLayout, ev.Date+" "+ev.StartTime, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid event start: %w", err)
		}

		end := start.Add(DefaultEventDuration)
		if ev.EndTime != "" {
			end, err = time.ParseInLocation(domain.DateLayout+" "+domain.TimeLayout, ev.Date+" "+ev.EndTime, loc)
			if err != nil {
				return nil, fmt.Errorf("invalid event end: %w", err)
			}
			if !end.After(start) {
				end = end.AddDate(0, 0, 1)
			}
		}

		out.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: tz}
		out.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: tz}
	}

	if ev.IsDeadline {
		out.Reminders = &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: DeadlineReminderMinutes},
			},
			ForceSendFields: []string{"UseDefault"},
		}
	}

	return out, nil
}

func buildDescription(ev domain.ExtractedEvent) string {
	var parts []string
	if ev.IsDeadline && ev.DeadlineTime != "" {
		parts = append(parts, "Deadline: "+ev.DeadlineTime)
	}
	if ev.Description != "" {
		parts = append(parts, ev.Description)
	}
	parts = append(parts, createdByNote)
	return strings.Join(parts, "\n\n")
}
