package llm

import (
	"fmt"
	"sync"

	"github.com/finqueryai/finquery-engine/config"
	"github.com/finqueryai/finquery-engine/registry"
)

// Registry manages named Provider instances, backed by an instance cache
// keyed by provider identity so requesting the same (type, base URL, model,
// temperature, max_tokens) tuple twice returns the same underlying client
// instead of opening a fresh connection.
type Registry struct {
	*registry.BaseRegistry[Provider]

	cacheMu sync.Mutex
	cache   map[string]Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Provider](),
		cache:        make(map[string]Provider),
	}
}

// CreateFromConfig builds (or reuses a cached) Provider for cfg, registers
// it under name, and returns it.
func (r *Registry) CreateFromConfig(name string, cfg config.LLMProviderConfig) (Provider, error) {
	if name == "" {
		return nil, fmt.Errorf("config_error: llm name cannot be empty")
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config_error: %w", err)
	}

	provider, err := r.fromCache(cfg)
	if err != nil {
		return nil, err
	}

	if err := r.Replace(name, provider); err != nil {
		return nil, fmt.Errorf("config_error: register llm '%s': %w", name, err)
	}

	return provider, nil
}

func (r *Registry) fromCache(cfg config.LLMProviderConfig) (Provider, error) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	identity := identityOf(cfg)
	if existing, ok := r.cache[identity]; ok {
		return existing, nil
	}

	provider, err := build(cfg)
	if err != nil {
		return nil, err
	}

	r.cache[identity] = provider
	return provider, nil
}

func identityOf(cfg config.LLMProviderConfig) string {
	return fmt.Sprintf("%s|%s|%s|%.2f|%d", cfg.Type, cfg.BaseURL, cfg.ModelName, cfg.Temperature, cfg.MaxTokens)
}

func build(cfg config.LLMProviderConfig) (Provider, error) {
	switch cfg.Type {
	case "ollama":
		return NewOllamaProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("config_error: unsupported llm type: %s", cfg.Type)
	}
}

// Get retrieves a registered Provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	provider, exists := r.BaseRegistry.Get(name)
	if !exists {
		return nil, fmt.Errorf("llm provider '%s' not found", name)
	}
	return provider, nil
}
