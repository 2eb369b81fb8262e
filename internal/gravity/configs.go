package gravity

// Policy bounds one direction of the search.
type Policy struct {
	MinScore float32 `yaml:"min_score"`
	TopK     int     `yaml:"top_k"`
}

// Default policies. Cluster names are short, so the forward direction is
// permissive; the backward direction sees every new fragment and favours
// precision. Suggestions only rank and never write, so their floor is low.
var (
	DefaultForward  = Policy{MinScore: 0.60, TopK: 50}
	DefaultBackward = Policy{MinScore: 0.35, TopK: 5}
	DefaultTerm     = Policy{MinScore: 0.60, TopK: 100}
	DefaultSuggest  = Policy{MinScore: 0.25, TopK: 5}
)

// MaxSuggestions caps the topK a caller may ask Suggest for.
const MaxSuggestions = 50

// Config holds the policy of each search.
type Config struct {
	Forward  Policy `yaml:"forward"`
	Backward Policy `yaml:"backward"`
	Term     Policy `yaml:"term"`
	Suggest  Policy `yaml:"suggest"`
}

func (c *Config) applyDefaults() {
	c.Forward = c.Forward.orDefault(DefaultForward)
	c.Backward = c.Backward.orDefault(DefaultBackward)
	c.Term = c.Term.orDefault(DefaultTerm)
	c.Suggest = c.Suggest.orDefault(DefaultSuggest)
}

func (p Policy) orDefault(d Policy) Policy {
	if p.MinScore <= 0 {
		p.MinScore = d.MinScore
	}
	if p.TopK <= 0 {
		p.TopK = d.TopK
	}
	return p
}
