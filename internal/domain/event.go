package domain

import (
	"fmt"
	"strings"
	"time"
)

// Layouts used on the wire for event dates and times.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Defaults applied when the analyzer omits a value.
const (
	DefaultTimezone   = "UTC"
	DefaultConfidence = 0.5
)

// Validation errors for ExtractedEvent.
var (
	ErrEmptyEventTitle   = fmt.Errorf("%w: event title cannot be empty", ErrValidation)
	ErrEmptyEventDate    = fmt.Errorf("%w: event date cannot be empty", ErrValidation)
	ErrInvalidEventDate  = fmt.Errorf("%w: event date must be YYYY-MM-DD", ErrValidation)
	ErrInvalidEventTime  = fmt.Errorf("%w: event time must be HH:MM", ErrValidation)
	ErrInvalidConfidence = fmt.Errorf("%w: confidence must be between 0 and 1", ErrValidation)
)

// EventInput is the loosely-typed shape an analyzer produces. Pointer fields
// distinguish "not provided" from zero values, which matters for all-day
// inference and the confidence default.
type EventInput struct {
	Title        string
	Date         string
	StartTime    string
	EndTime      string
	Location     string
	Description  string
	Timezone     string
	IsAllDay     *bool
	IsDeadline   bool
	Confidence   *float64
	AttendeeName string
	SourceApp    string
}

// ExtractedEvent is a calendar-worthy event found in a screenshot.
//
// Deadlines are always all-day. Their time of day, when known, is carried in
// DeadlineTime rather than StartTime so a consumer never has to decide
// whether an all-day event with a start time is timed.
type ExtractedEvent struct {
	Title        string  `json:"title"`
	Date         string  `json:"date"`
	StartTime    string  `json:"start_time,omitempty"`
	EndTime      string  `json:"end_time,omitempty"`
	Location     string  `json:"location,omitempty"`
	Description  string  `json:"description,omitempty"`
	Timezone     string  `json:"timezone"`
	IsAllDay     bool    `json:"is_all_day"`
	IsDeadline   bool    `json:"is_deadline"`
	DeadlineTime string  `json:"deadline_time,omitempty"`
	Confidence   float64 `json:"confidence"`
	AttendeeName string  `json:"attendee_name,omitempty"`
	SourceApp    string  `json:"source_app,omitempty"`
}

// NewExtractedEvent validates in and applies the defaulting rules:
// timezone defaults to UTC, confidence to 0.5, an event with no start time
// and no explicit all-day flag is all-day, and a deadline is all-day with its
// start time moved to DeadlineTime.
func NewExtractedEvent(in EventInput) (ExtractedEvent, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return ExtractedEvent{}, ErrEmptyEventTitle
	}

	date := strings.TrimSpace(in.Date)
	if date == "" {
		return ExtractedEvent{}, ErrEmptyEventDate
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return ExtractedEvent{}, fmt.Errorf("%w: %q", ErrInvalidEventDate, date)
	}

	start, err := normalizeTime(in.StartTime)
	if err != nil {
		return ExtractedEvent{}, err
	}
	end, err := normalizeTime(in.EndTime)
	if err != nil {
		return ExtractedEvent{}, err
	}

	confidence := DefaultConfidence
	if in.Confidence != nil {
		confidence = *in.Confidence
	}
	if confidence < 0 || confidence > 1 {
		return ExtractedEvent{}, fmt.Errorf("%w: %v", ErrInvalidConfidence, confidence)
	}

	timezone := strings.TrimSpace(in.Timezone)
	if timezone == "" {
		timezone = DefaultTimezone
	}

	allDay := start == ""
	if in.IsAllDay != nil {
		allDay = *in.IsAllDay
	}

	ev := ExtractedEvent{
		Title:        title,
		Date:         date,
		StartTime:    start,
		EndTime:      end,
		Location:     strings.TrimSpace(in.Location),
		Description:  strings.TrimSpace(in.Description),
		Timezone:     timezone,
		IsAllDay:     allDay,
		IsDeadline:   in.IsDeadline,
		Confidence:   confidence,
		AttendeeName: strings.TrimSpace(in.AttendeeName),
		SourceApp:    strings.TrimSpace(in.SourceApp),
	}

	if ev.IsDeadline {
		ev.IsAllDay = true
		ev.DeadlineTime = ev.StartTime
		ev.StartTime = ""
		ev.EndTime = ""
	}

	return ev, nil
}

// StartDateTime returns the event start in its timezone. All-day events start
// at midnight. Unknown timezones fall back to UTC.
func (e ExtractedEvent) StartDateTime() (time.Time, error) {
	clock := e.StartTime
	if e.IsAllDay || clock == "" {
		clock = "00:00"
	}
	return time.ParseInLocation(DateLayout+" "+TimeLayout, e.Date+" "+clock, e.location())
}

func (e ExtractedEvent) location() *time.Location {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// normalizeTime accepts "H:MM" or "HH:MM" and returns zero-padded HH:MM.
func normalizeTime(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	// The hour field accepts a single digit, so "9:30" becomes "09:30".
	t, err := time.Parse(TimeLayout, value)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEventTime, value)
	}
	return t.Format(TimeLayout), nil
}
