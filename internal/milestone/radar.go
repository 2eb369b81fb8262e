package milestone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Aleph-Alpha/gravity/internal/events"
	"github.com/Aleph-Alpha/gravity/internal/processor"
	"github.com/Aleph-Alpha/gravity/v1/embedding"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
)

// SnippetSeparator joins the snippets sent to the model.
const SnippetSeparator = "\n---\n"

const radarPrompt = `You analyse the cognitive profile of a reader. Study the excerpts below and identify 6 areas of knowledge.

RULES:
1. Write the subject names in %s.
2. Return EXACTLY 6 objects in a plain JSON array and nothing else.

Format: [{"subject": "Java", "A": 120}, ...]`

// ErrMalformedRadar is returned when the model reply is not a radar array.
var ErrMalformedRadar = errors.New("milestone: radar is not a JSON array of subjects")

// Axis is one entry of a radar.
type Axis struct {
	Subject string  `json:"subject"`
	A       float64 `json:"A"`
}

// ParseRadar strips code fences from raw and checks that it is a non-empty
// array of named axes. It returns the cleaned JSON.
func ParseRadar(raw string) (json.RawMessage, error) {
	clean := processor.StripCodeFences(raw)

	var axes []Axis
	if err := json.Unmarshal([]byte(clean), &axes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRadar, err)
	}
	if len(axes) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedRadar)
	}
	for _, a := range axes {
		if strings.TrimSpace(a.Subject) == "" {
			return nil, fmt.Errorf("%w: unnamed subject", ErrMalformedRadar)
		}
	}
	return json.RawMessage(clean), nil
}

// HandleRecomputeRequested consumes cluster.recompute.requested.
func (t *Trigger) HandleRecomputeRequested(ctx context.Context, msg kafka.Message) error {
	var evt events.RecomputeRequested
	if err := kafka.Decode(msg, &evt); err != nil {
		return err
	}

	parts := make([]string, 0, len(evt.Snippets))
	for _, s := range evt.Snippets {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		t.logger.WarnWithContext(ctx, "Radar requested without text", nil, map[string]interface{}{"owner_id": evt.OwnerID})
		return nil
	}
	text := strings.Join(parts, SnippetSeparator)

	reply, err := t.completer.Complete(ctx, fmt.Sprintf(radarPrompt, t.cfg.Language), text)
	if err != nil {
		if embedding.IsPermanent(err) {
			return kafka.Permanent(err)
		}
		return err
	}

	radar, err := ParseRadar(reply)
	if err != nil {
		return kafka.Permanent(err)
	}

	done := events.RecomputeCompleted{OwnerID: evt.OwnerID, Result: radar}
	if err := t.publisher.Publish(ctx, events.TopicRecomputeCompleted, evt.OwnerID, done, nil); err != nil {
		return fmt.Errorf("milestone: publish radar: %w", err)
	}

	t.logger.InfoWithContext(ctx, "Radar computed", nil, map[string]interface{}{
		"owner_id": evt.OwnerID,
		"chars":    len(text),
	})
	return nil
}

// HandleRecomputeCompleted consumes cluster.recompute.completed.
func (t *Trigger) HandleRecomputeCompleted(ctx context.Context, msg kafka.Message) error {
	var evt events.RecomputeCompleted
	if err := kafka.Decode(msg, &evt); err != nil {
		return err
	}
	radar, err := ParseRadar(string(evt.Result))
	if err != nil {
		return kafka.Permanent(err)
	}
	if err := t.store.UpsertProfile(ctx, evt.OwnerID, radar); err != nil {
		return fmt.Errorf("milestone: save radar: %w", err)
	}
	return nil
}
