package gravity

import (
	"context"
	"fmt"

	"github.com/Aleph-Alpha/gravity/v1/vectordb"
)

// Suggestion is an indexed item close to a piece of text.
type Suggestion struct {
	// FragmentID is zero for documents.
	FragmentID uint64
	Type       string
	Document   string
	Score      float32
	Text       string
}

// PendingText stands in for suggestions whose text is neither in the
// database nor in the vector payload.
const PendingText = "(content not yet synchronised)"

// Suggest ranks the owner's fragments and documents against text. topK
// bounds the result; zero takes the configured default and larger values
// are capped at MaxSuggestions. Text is read from the fragment row when it
// exists and from the vector payload otherwise, so a suggestion survives a
// lagging or unreachable database.
func (e *Engine) Suggest(ctx context.Context, owner, text string, topK int) ([]Suggestion, error) {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("gravity: embed suggestion text: %w", err)
	}

	policy := e.cfg.Suggest
	if topK > 0 {
		policy.TopK = min(topK, MaxSuggestions)
	}
	matches, err := e.search(ctx, owner, vec, policy,
		vectordb.NewMatchAny(vectordb.FieldType, vectordb.TypeHighlight, vectordb.TypeResume, vectordb.TypeDocument))
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(matches))
	for _, m := range matches {
		if id, ok := fragmentRef(m); ok {
			ids = append(ids, id)
		}
	}
	live, err := e.resolver.ResolveFragments(ctx, owner, ids)
	if err != nil {
		e.logger.WarnWithContext(ctx, "Suggestions fall back to vector payloads", err, map[string]interface{}{
			"owner":   owner,
			"matches": len(matches),
		})
		live = nil
	}

	suggestions := make([]Suggestion, 0, len(matches))
	seen := make(map[uint64]bool, len(matches))
	for _, m := range matches {
		s := Suggestion{Type: m.Type, Score: m.Score, Text: m.Text}
		if doc, ok := m.Metadata[vectordb.FieldDocument].(string); ok {
			s.Document = doc
		}
		if id, ok := fragmentRef(m); ok {
			if seen[id] {
				continue
			}
			seen[id] = true
			s.FragmentID = id
			if f, ok := live[id]; ok && f.Content != "" {
				s.Text = f.Content
			}
		}
		if s.Text == "" {
			s.Text = PendingText
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, nil
}
