package milestone

// Defaults.
const (
	DefaultEvery            = 30
	DefaultMaxSnippets      = 30
	DefaultMaxSnippetLength = 255
	DefaultLanguage         = "English"
)

// Config controls when a radar recompute is requested and what it carries.
type Config struct {
	// Every fires the trigger whenever the processed count is a multiple of
	// it. The first processed fragment always fires.
	Every int `yaml:"every"`

	MaxSnippets      int `yaml:"max_snippets"`
	MaxSnippetLength int `yaml:"max_snippet_length"`

	// Language the radar subjects are written in.
	Language string `yaml:"language"`
}

func (c *Config) applyDefaults() {
	if c.Every <= 0 {
		c.Every = DefaultEvery
	}
	if c.MaxSnippets <= 0 {
		c.MaxSnippets = DefaultMaxSnippets
	}
	if c.MaxSnippetLength <= 0 {
		c.MaxSnippetLength = DefaultMaxSnippetLength
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
}
