package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/v1/embedding"
)

const librarianPrompt = `You are a librarian cataloguing a reader's documents.
Answer with a single JSON object and nothing else:
{"summary": "<at most three sentences>", "tags": ["<at most five lowercase topics>"], "sentiment": "Positive" | "Neutral" | "Negative"}`

// Sentiments.
const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
)

// Placeholder tags.
const (
	TagPending       = "PENDING"
	TagExternalError = "EXTERNAL_ERROR"
	TagBinary        = "BINARY"
)

// PlaceholderSummary is shown while the inference backend is unavailable.
const PlaceholderSummary = "Processing suspended (external service unavailable)"

// Payload is the input of an analysis.
type Payload struct {
	Text        string
	FileName    string
	ContentType string
}

// Analysis is what the LLM returns for a document.
type Analysis struct {
	Summary   string   `json:"summary"`
	Tags      []string `json:"tags"`
	Sentiment string   `json:"sentiment"`
}

// AnalyzeFunc produces an analysis. Errors wrapping embedding.ErrPermanent
// are not retried.
type AnalyzeFunc func(ctx context.Context, p Payload) (Analysis, error)

// Completer runs a chat completion.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

var binaryTypes = map[string]string{
	"application/pdf": "pdf",
	"image/png":       "png",
	"image/jpeg":      "jpg",
	".pdf":            "pdf",
	".png":            "png",
	".jpg":            "jpg",
	".jpeg":           "jpg",
}

// NewAnalyzer returns an AnalyzeFunc asking c for a librarian analysis of
// the first maxChars characters. Binary documents get a fixed analysis
// without a call.
func NewAnalyzer(c Completer, maxChars int) AnalyzeFunc {
	return func(ctx context.Context, p Payload) (Analysis, error) {
		if kind, ok := binaryKind(p); ok {
			return Analysis{
				Summary:   fmt.Sprintf("Binary content (%s) stored without text analysis", kind),
				Tags:      []string{TagBinary, strings.ToUpper(kind)},
				Sentiment: SentimentNeutral,
			}, nil
		}

		text := strings.TrimSpace(p.Text)
		if text == "" {
			return Analysis{}, fmt.Errorf("%w: empty document", embedding.ErrPermanent)
		}

		out, err := c.Complete(ctx, librarianPrompt, model.Truncate(text, maxChars))
		if err != nil {
			return Analysis{}, err
		}
		return decodeAnalysis(out)
	}
}

func binaryKind(p Payload) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(p.ContentType, ";")[0]))
	if kind, ok := binaryTypes[ct]; ok {
		return kind, true
	}
	kind, ok := binaryTypes[strings.ToLower(path.Ext(p.FileName))]
	return kind, ok
}

func decodeAnalysis(raw string) (Analysis, error) {
	var a Analysis
	if err := json.Unmarshal([]byte(StripCodeFences(raw)), &a); err != nil {
		return Analysis{}, fmt.Errorf("%w: malformed analysis: %v", embedding.ErrPermanent, err)
	}
	if strings.TrimSpace(a.Summary) == "" {
		return Analysis{}, fmt.Errorf("%w: analysis without summary", embedding.ErrPermanent)
	}
	switch a.Sentiment {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
	default:
		a.Sentiment = SentimentNeutral
	}
	return a, nil
}

// StripCodeFences removes a surrounding ``` or ```json fence from LLM output.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
