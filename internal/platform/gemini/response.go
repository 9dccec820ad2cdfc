package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/capture-api/internal/domain"
	"github.com/phrazzld/capture-api/internal/vision"
)

// responseSchema is the JSON document the prompt asks for. The single
// event_info form is accepted as well as the events list.
type responseSchema struct {
	FoundEvent bool          `json:"found_event"`
	Events     []eventSchema `json:"events"`
	EventInfo  *eventSchema  `json:"event_info"`
	RawText    string        `json:"raw_text"`
}

// eventSchema is one event as the model reports it.
type eventSchema struct {
	Title        string   `json:"title"`
	Date         string   `json:"date"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	Location     string   `json:"location"`
	Description  string   `json:"description"`
	Timezone     string   `json:"timezone"`
	IsAllDay     *bool    `json:"is_all_day"`
	IsDeadline   bool     `json:"is_deadline"`
	Confidence   *float64 `json:"confidence"`
	AttendeeName string   `json:"attendee_name"`
	SourceApp    string   `json:"source_app"`
}

func (e eventSchema) input() domain.EventInput {
	return domain.EventInput{
		Title:        e.Title,
		Date:         e.Date,
		StartTime:    e.StartTime,
		EndTime:      e.EndTime,
		Location:     e.Location,
		Description:  e.Description,
		Timezone:     e.Timezone,
		IsAllDay:     e.IsAllDay,
		IsDeadline:   e.IsDeadline,
		Confidence:   e.Confidence,
		AttendeeName: e.AttendeeName,
		SourceApp:    e.SourceApp,
	}
}

// decodeResponse parses the model's text, tolerating a markdown code fence.
func decodeResponse(text string) (*responseSchema, error) {
	text = stripCodeFence(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response text", vision.ErrInvalidResponse)
	}

	var parsed responseSchema
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", vision.ErrInvalidResponse, err)
	}
	return &parsed, nil
}

// toResult converts a decoded response into a vision.Result, dropping events
// that fail validation.
func toResult(ctx context.Context, logger *slog.Logger, response *responseSchema) *vision.Result {
	candidates := response.Events
	if len(candidates) == 0 && response.EventInfo != nil {
		candidates = []eventSchema{*response.EventInfo}
	}
	if !response.FoundEvent && len(response.Events) == 0 {
		candidates = nil
	}

	events := make([]domain.ExtractedEvent, 0, len(candidates))
	for i, candidate := range candidates {
		event, err := domain.NewExtractedEvent(candidate.input())
		if err != nil {
			logger.WarnContext(ctx, "Dropping invalid event from model response",
				"index", i,
				"error", err)
			continue
		}
		events = append(events, event)
	}

	return &vision.Result{
		Found:   len(events) > 0,
		Events:  events,
		RawText: strings.TrimSpace(response.RawText),
	}
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
