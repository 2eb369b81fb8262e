package embedding

import "fmt"

// Defaults applied by NewClient.
const (
	DefaultModel        = "text-embedding-3-small"
	DefaultChatModel    = "gpt-4o-mini"
	DefaultDimension    = 1536
	DefaultHTTPTimeoutS = 30
)

// Config configures the OpenAI-compatible inference endpoint.
//
// Endpoint is the API root without the /embeddings or /chat/completions suffix;
// the provider appends paths itself.
type Config struct {
	Endpoint     string `yaml:"endpoint" env:"EMBEDDING_ENDPOINT"`
	ServiceToken string `yaml:"-" env:"EMBEDDING_SERVICE_TOKEN"`
	Model        string `yaml:"model" env:"EMBEDDING_MODEL"`
	ChatModel    string `yaml:"chat_model" env:"EMBEDDING_CHAT_MODEL"`
	Dimension    int    `yaml:"dimension" env:"EMBEDDING_DIMENSION"`
	HTTPTimeoutS int    `yaml:"http_timeout_seconds" env:"EMBEDDING_HTTP_TIMEOUT_SECONDS"`
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.ChatModel == "" {
		c.ChatModel = DefaultChatModel
	}
	if c.Dimension <= 0 {
		c.Dimension = DefaultDimension
	}
	if c.HTTPTimeoutS <= 0 {
		c.HTTPTimeoutS = DefaultHTTPTimeoutS
	}
}

// Validate ensures required fields are present.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("embedding: missing EMBEDDING_ENDPOINT")
	}
	if c.ServiceToken == "" {
		return fmt.Errorf("embedding: missing EMBEDDING_SERVICE_TOKEN")
	}
	return nil
}
