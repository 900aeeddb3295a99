package ailink

import (
	"fmt"
	"strings"
	"time"
)

// Supported providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config defines provider configuration for AILink.
//
// This is intentionally self-contained so it can later be extracted as a
// standalone library configuration subtree.
type Config struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`

	// Timeout bounds stream setup only. The chat deadline bounds the whole body.
	Timeout time.Duration `mapstructure:"timeout"`

	Temperature     float64 `mapstructure:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`

	// TracePath, when set, appends NDJSON trace entries for every stream.
	TracePath string `mapstructure:"trace_path"`
}

// ProviderName returns the normalized provider, defaulting to gemini.
func (c Config) ProviderName() string {
	provider := strings.ToLower(strings.TrimSpace(c.Provider))
	if provider == "" {
		return ProviderGemini
	}
	return provider
}

// HasCredential reports whether an API key is configured.
func (c Config) HasCredential() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Validate rejects unknown providers. A missing key is not a config error:
// requests fail with a missing-credential error instead.
func (c Config) Validate() error {
	switch c.ProviderName() {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported ailink.provider %q", c.Provider)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("ailink.timeout must not be negative")
	}
	return nil
}
