package ailink

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/adrianaguero/chatgate/internal/ailink/driver"
	"github.com/adrianaguero/chatgate/internal/ailink/driver/gemini"
	"github.com/adrianaguero/chatgate/internal/ailink/driver/openai"
)

// Default models per provider, used when ailink.model is unset.
var defaultModels = map[string]string{
	ProviderGemini: gemini.DefaultModel,
	ProviderOpenAI: "gpt-4o-mini",
}

// Registry builds and caches drivers for the configured provider.
type Registry struct {
	cfg        Config
	httpClient *http.Client

	mu      sync.Mutex
	drivers map[string]driver.Driver
}

// ResolvedProvider is a driver plus the model to request from it.
type ResolvedProvider struct {
	ProviderID string
	Driver     driver.Driver
	Model      string
	BaseURL    string
}

func NewRegistry(cfg Config, httpClient *http.Client) *Registry {
	return &Registry{cfg: cfg, httpClient: httpClient}
}

func (r *Registry) Resolve(modelOverride string) (*ResolvedProvider, error) {
	if r == nil {
		return nil, fmt.Errorf("ailink registry not configured")
	}

	providerID := r.cfg.ProviderName()
	drv, baseURL, err := r.driverFor(providerID)
	if err != nil {
		return nil, err
	}

	model, err := resolveModel(providerID, r.cfg.Model, modelOverride)
	if err != nil {
		return nil, err
	}

	return &ResolvedProvider{
		ProviderID: providerID,
		Driver:     drv,
		Model:      model,
		BaseURL:    baseURL,
	}, nil
}

func (r *Registry) driverFor(providerID string) (driver.Driver, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drivers == nil {
		r.drivers = map[string]driver.Driver{}
	}
	if drv, ok := r.drivers[providerID]; ok {
		return drv, baseURLOf(drv), nil
	}

	var drv driver.Driver
	switch providerID {
	case ProviderGemini:
		client := gemini.NewClient(r.cfg.BaseURL, r.cfg.APIKey)
		client.Timeout = r.cfg.Timeout
		client.HTTPClient = r.httpClient
		drv = client
	case ProviderOpenAI:
		client := openai.NewClient(r.cfg.BaseURL, r.cfg.APIKey)
		client.Timeout = r.cfg.Timeout
		client.HTTPClient = r.httpClient
		drv = client
	default:
		return nil, "", fmt.Errorf("unsupported ailink provider %q", providerID)
	}
	r.drivers[providerID] = drv
	return drv, baseURLOf(drv), nil
}

func baseURLOf(drv driver.Driver) string {
	switch client := drv.(type) {
	case *gemini.Client:
		return strings.TrimSpace(client.BaseURL)
	case *openai.Client:
		return strings.TrimSpace(client.BaseURL)
	default:
		return ""
	}
}

func resolveModel(providerID, configured, override string) (string, error) {
	if model := strings.TrimSpace(override); model != "" {
		return model, nil
	}
	if model := strings.TrimSpace(configured); model != "" {
		return model, nil
	}
	if model := defaultModels[providerID]; model != "" {
		return model, nil
	}
	return "", fmt.Errorf("model not configured")
}
