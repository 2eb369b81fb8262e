package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Aleph-Alpha/gravity/internal/events"
	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/v1/embedding"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/vectordb"
)

// MaxSummaryInput is the character budget of the text sent for summarising.
const MaxSummaryInput = 30000

const summaryPrompt = `You are a university lecturer who is good at teaching.
Summarise the text you are given using Markdown.
Rules:
1. Answer only in %s.
2. Organise the summary in clear topics and subtopics.
3. If the text is technical, simplify it without losing precision.`

var (
	// ErrNotSummary is returned when summary.requested names a row that is
	// not a summary of the requesting owner.
	ErrNotSummary = errors.New("pipeline: not a summary of this owner")

	errNothingToSummarize = fmt.Errorf("%w: nothing to summarise", embedding.ErrPermanent)
	errEmptySummary       = fmt.Errorf("%w: completion returned an empty summary", embedding.ErrPermanent)
)

// Language maps a language tag such as "pt-BR" to the language name used in
// prompts. Unknown tags fall back to English.
func Language(tag string) string {
	base, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(tag)), "-")
	switch base {
	case "pt":
		return "Portuguese"
	case "pl":
		return "Polish"
	case "es":
		return "Spanish"
	}
	return "English"
}

// HandleSummaryRequested consumes summary.requested.
func (p *Pipeline) HandleSummaryRequested(ctx context.Context, msg kafka.Message) error {
	var evt events.SummaryRequested
	if err := kafka.Decode(msg, &evt); err != nil {
		return err
	}

	out := p.ProcessSummary(ctx, evt)
	p.reportSummary(ctx, evt, out)
	return out.Primary
}

// ProcessSummary generates the summary named by evt, stores and indexes it
// as a summary fragment, links it like any other fragment and announces it
// on summary.completed. Failures that will not go away mark the summary
// failed and are announced as FAILED; transient ones are redelivered.
func (p *Pipeline) ProcessSummary(ctx context.Context, evt events.SummaryRequested) Outcome {
	owner := model.SanitizeOwner(evt.OwnerID)
	if owner == "" {
		return Outcome{Primary: kafka.Permanent(ErrEmptyOwner)}
	}
	guest := model.IsGuest(owner)
	space := vectordb.SpaceUser

	f := model.Fragment{
		ID:                evt.SummaryID,
		OwnerID:           owner,
		SourceFingerprint: evt.SourceDocFingerprint,
		Kind:              model.KindSummary,
	}
	if guest {
		space = vectordb.SpaceGuest
	} else {
		stored, err := p.loadVisible(ctx, evt.SummaryID)
		if err != nil {
			return Outcome{Primary: err}
		}
		if stored.OwnerID != owner || stored.Kind != model.KindSummary {
			return Outcome{Primary: kafka.Permanent(fmt.Errorf("%w: %d", ErrNotSummary, evt.SummaryID))}
		}
		if stored.Status == model.StatusProcessed {
			return Outcome{Status: model.StatusProcessed}
		}
		f = stored
	}

	text, err := p.summarize(ctx, evt)
	if err != nil {
		return p.failSummary(ctx, f, guest, err)
	}
	f.Content = model.Truncate(text, model.MaxContentLength)

	if !guest {
		if err := p.store.SetFragmentContent(ctx, f.ID, f.Content); err != nil {
			return Outcome{Primary: fmt.Errorf("pipeline: store summary %d: %w", f.ID, err)}
		}
	}
	indexed, err := p.engine.IndexFragment(ctx, f, space)
	if err != nil {
		return p.failSummary(ctx, f, guest, err)
	}

	out := Outcome{Status: model.StatusProcessed}
	if !guest {
		out.Links, out.Linking = p.requestLinks(ctx, f, indexed.Vector)
		count, transitioned, err := p.store.MarkProcessed(ctx, f.OwnerID, f.ID)
		if err != nil {
			out.Primary = fmt.Errorf("pipeline: mark summary %d processed: %w", f.ID, err)
			return out
		}
		if transitioned {
			out.Fired, out.Milestone = p.milestones.OnFragmentPersisted(ctx, f.OwnerID, count)
		}
	}
	out.Completion = p.announceSummary(ctx, f.ID, text, events.SummaryCompletedOK)
	return out
}

func (p *Pipeline) summarize(ctx context.Context, evt events.SummaryRequested) (string, error) {
	text := strings.TrimSpace(evt.Text)
	if text == "" {
		return "", errNothingToSummarize
	}
	prompt := fmt.Sprintf(summaryPrompt, Language(evt.Language))
	reply, err := p.summarizer.Complete(ctx, prompt, model.Truncate(text, MaxSummaryInput))
	if err != nil {
		return "", err
	}
	if reply = strings.TrimSpace(reply); reply == "" {
		return "", errEmptySummary
	}
	return reply, nil
}

// failSummary turns a permanent failure into a FAILED completion and leaves
// transient ones to redelivery.
func (p *Pipeline) failSummary(ctx context.Context, f model.Fragment, guest bool, cause error) Outcome {
	if !embedding.IsPermanent(cause) {
		return Outcome{Primary: cause}
	}
	if !guest {
		if err := p.store.SetFragmentStatus(ctx, f.ID, model.StatusFailed); err != nil {
			return Outcome{Primary: err}
		}
	}
	return Outcome{
		Status:     model.StatusFailed,
		Failure:    cause,
		Completion: p.announceSummary(ctx, f.ID, "summary failed: "+cause.Error(), events.SummaryCompletedFailed),
	}
}

func (p *Pipeline) announceSummary(ctx context.Context, id uint64, text, status string) error {
	evt := events.SummaryCompleted{SummaryID: id, Text: text, Status: status}
	return p.publisher.Publish(ctx, events.TopicSummaryCompleted, events.IDKey(id), evt, nil)
}

func (p *Pipeline) reportSummary(ctx context.Context, evt events.SummaryRequested, out Outcome) {
	fields := map[string]interface{}{
		"summary_id": evt.SummaryID,
		"owner_id":   evt.OwnerID,
		"status":     string(out.Status),
		"links":      out.Links,
		"milestone":  out.Fired,
	}

	switch {
	case out.Primary != nil:
		p.logger.ErrorWithContext(ctx, "Summary processing failed", out.Primary, fields)
		return
	case out.Status == model.StatusFailed:
		p.logger.WarnWithContext(ctx, "Summary cannot be generated", out.Failure, fields)
	default:
		p.logger.InfoWithContext(ctx, "Summary generated", nil, fields)
	}

	if out.Completion != nil {
		p.logger.ErrorWithContext(ctx, "Failed to announce summary", out.Completion, fields)
	}
	if out.Linking != nil {
		p.logger.WarnWithContext(ctx, "Association requests incomplete", out.Linking, fields)
	}
	if out.Milestone != nil {
		p.logger.WarnWithContext(ctx, "Milestone check failed", out.Milestone, fields)
	}
}
