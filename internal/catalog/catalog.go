package catalog

// Provider is a static catalog entry describing a known AI backend.
// Entries are read-only; user-specific state lives in modelconfig.
type Provider struct {
	ID             string
	Name           string
	BaseURL        string
	Models         []string
	RequiresAPIKey bool
	GetKeyURL      string
	WebsiteURL     string
}

// CustomID is the one catalog entry without a fixed base URL or model list.
// Configurations referencing it must supply both explicitly.
const CustomID = "custom"

var providers = []Provider{
	{
		ID:             "openai",
		Name:           "OpenAI",
		BaseURL:        "https://api.openai.com/v1",
		Models:         []string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini", "o3-mini"},
		RequiresAPIKey: true,
		GetKeyURL:      "https://platform.openai.com/api-keys",
		WebsiteURL:     "https://openai.com",
	},
	{
		ID:             "anthropic",
		Name:           "Anthropic",
		BaseURL:        "https://api.anthropic.com/v1",
		Models:         []string{"claude-sonnet-4-20250514", "claude-opus-4-20250514", "claude-3-5-haiku-20241022"},
		RequiresAPIKey: true,
		GetKeyURL:      "https://console.anthropic.com/settings/keys",
		WebsiteURL:     "https://www.anthropic.com",
	},
	{
		ID:             "deepseek",
		Name:           "DeepSeek",
		BaseURL:        "https://api.deepseek.com/v1",
		Models:         []string{"deepseek-chat", "deepseek-reasoner"},
		RequiresAPIKey: true,
		GetKeyURL:      "https://platform.deepseek.com/api_keys",
		WebsiteURL:     "https://www.deepseek.com",
	},
	{
		ID:             "moonshot",
		Name:           "Moonshot",
		BaseURL:        "https://api.moonshot.cn/v1",
		Models:         []string{"moonshot-v1-8k", "moonshot-v1-32k", "moonshot-v1-128k"},
		RequiresAPIKey: true,
		GetKeyURL:      "https://platform.moonshot.cn/console/api-keys",
		WebsiteURL:     "https://www.moonshot.cn",
	},
	{
		ID:             "ollama",
		Name:           "Ollama",
		BaseURL:        "http://127.0.0.1:11434/v1",
		Models:         []string{"llama3.1", "qwen2.5", "mistral"},
		RequiresAPIKey: false,
		WebsiteURL:     "https://ollama.com",
	},
	{
		ID:             CustomID,
		Name:           "Custom",
		BaseURL:        "",
		Models:         nil,
		RequiresAPIKey: false,
	},
}

// All returns the catalog in its stable display order.
func All() []Provider {
	out := make([]Provider, len(providers))
	copy(out, providers)
	return out
}

// Lookup returns the provider with the given id.
func Lookup(id string) (Provider, bool) {
	for _, p := range providers {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}

// IsKnown reports whether id names a catalog entry other than custom.
func IsKnown(id string) bool {
	if id == CustomID {
		return false
	}
	_, ok := Lookup(id)
	return ok
}

// DefaultModel returns the first model of a provider, or "" for custom.
func DefaultModel(id string) string {
	p, ok := Lookup(id)
	if !ok || len(p.Models) == 0 {
		return ""
	}
	return p.Models[0]
}
