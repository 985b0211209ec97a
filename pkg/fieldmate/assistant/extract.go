package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

const extractPrompt = `You read a meeting transcript or voice note and pull
out every concrete appointment mentioned. Reply with a JSON array and nothing
else:
  [{"title": "...", "startTime": "...", "endTime": "...", "location": "...", "description": "..."}]
Dates may be natural language as spoken. Omit endTime and location when the
transcript does not mention them. Reply with [] when there are no
appointments.`

type rawExtractedEvent struct {
	Title       string `json:"title"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// ExtractEvents pulls appointments out of a transcript and saves them in one
// batch. Unlike direct commands, extraction is forgiving about timing: an
// end at or before the start is corrected to one hour after the start, since
// transcripts garble times far more often than typed commands do.
func (a *Assistant) ExtractEvents(ctx context.Context, accountID, transcript string) ([]*store.Event, error) {
	account, err := a.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errNotFound("account")
	}

	reply, err := a.llm.Chat(ctx, []ChatMessage{
		{Role: "system", Content: extractPrompt},
		{Role: "user", Content: transcript},
	})
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}

	var raw []rawExtractedEvent
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &raw); err != nil {
		return nil, errUpstreamParse(err)
	}

	now := time.Now()
	events := make([]*store.Event, 0, len(raw))
	for _, r := range raw {
		if r.Title == "" {
			continue
		}
		start, ok := parseLooseDate(r.StartTime, now)
		if !ok {
			a.logger.Debug("skipping extracted event with bad start", "title", r.Title, "start", r.StartTime)
			continue
		}
		event := &store.Event{
			AccountID:   accountID,
			Title:       r.Title,
			Description: r.Description,
			Location:    r.Location,
			StartTime:   start,
		}
		if r.EndTime != "" {
			if end, ok := parseLooseDate(r.EndTime, now); ok {
				if !end.After(start) {
					end = start.Add(time.Hour)
				}
				event.EndTime = &end
			}
		}
		if err := a.store.CreateEvent(ctx, event); err != nil {
			return events, fmt.Errorf("save extracted event %q: %w", r.Title, err)
		}
		events = append(events, event)
	}
	return events, nil
}
