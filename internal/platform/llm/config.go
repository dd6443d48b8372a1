package llm

import (
	"github.com/hedspi/phone-assistant/internal/platform/envutil"
)

// Config holds generation settings shared by every key's model.
type Config struct {
	APIKeys      []string
	Model        string
	BaseURL      string
	NumTry       int
	Temperature  float64
	TopP         float64
	TopK         int
	Seed         int
	MaxTokens    int
	Instructions string
}

func ConfigFromEnv() Config {
	return Config{
		APIKeys:     envutil.List("LLM_API_KEYS"),
		Model:       envutil.String("LLM_MODEL", "gpt-4o-mini"),
		BaseURL:     envutil.String("LLM_BASE_URL", ""),
		NumTry:      envutil.Int("LLM_NUM_TRY", 3),
		Temperature: envutil.Float("LLM_TEMPERATURE", 0.7),
		TopP:        envutil.Float("LLM_TOP_P", 0.5),
		TopK:        envutil.Int("LLM_TOP_K", 20),
		Seed:        envutil.Int("LLM_SEED", 42),
		MaxTokens:   envutil.Int("LLM_MAX_TOKENS", 2048),
	}
}

// WithInstructions returns a copy with the system instructions replaced.
func (c Config) WithInstructions(s string) Config {
	c.Instructions = s
	return c
}

// WithTemperature returns a copy with a different sampling temperature.
func (c Config) WithTemperature(t float64) Config {
	c.Temperature = t
	return c
}
