package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind selects the wire protocol used to talk to a provider.
type Kind string

const (
	KindOpenAI      Kind = "openai"
	KindAnthropic   Kind = "anthropic"
	KindGoogle      Kind = "google"
	KindHuggingFace Kind = "huggingface"
	KindCompatible  Kind = "openai-compatible"
)

// HuggingFaceRouterURL is the OpenAI-compatible endpoint that fans out to
// Hugging Face inference providers.
const HuggingFaceRouterURL = "https://router.huggingface.co/v1"

// ErrUnknownProvider is returned for provider names with no known backend.
var ErrUnknownProvider = errors.New("unknown provider")

// Info describes how to reach a provider.
type Info struct {
	Name string // canonical provider name
	Kind Kind

	// BaseURL is empty for SDK defaults.
	BaseURL string

	// Route is appended to the model as "model:route" on the Hugging Face
	// router. Empty lets the router pick.
	Route string
}

// huggingFaceProviders are the inference providers reachable via the router.
var huggingFaceProviders = map[string]bool{
	"cerebras":       true,
	"cohere":         true,
	"featherless-ai": true,
	"fireworks-ai":   true,
	"groq":           true,
	"hf-inference":   true,
	"hyperbolic":     true,
	"nebius":         true,
	"novita":         true,
	"nscale":         true,
	"sambanova":      true,
	"together":       true,
}

// Lookup resolves a configured provider name.
func Lookup(name string) (Info, error) {
	canonical := strings.ToLower(strings.TrimSpace(name))
	switch canonical {
	case "openai":
		return Info{Name: "openai", Kind: KindOpenAI}, nil
	case "anthropic", "claude":
		return Info{Name: "anthropic", Kind: KindAnthropic}, nil
	case "google", "googleai", "gemini":
		return Info{Name: "google", Kind: KindGoogle}, nil
	case "openai-compatible", "compatible":
		return Info{Name: "openai-compatible", Kind: KindCompatible}, nil
	case "huggingface", "hf", "auto":
		return Info{Name: "huggingface", Kind: KindHuggingFace, BaseURL: HuggingFaceRouterURL}, nil
	}
	if huggingFaceProviders[canonical] {
		return Info{Name: canonical, Kind: KindHuggingFace, BaseURL: HuggingFaceRouterURL, Route: canonical}, nil
	}
	return Info{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownProvider, name, strings.Join(Known(), ", "))
}

// Known lists every accepted provider name.
func Known() []string {
	names := []string{"openai", "anthropic", "google", "openai-compatible", "huggingface"}
	for name := range huggingFaceProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModelID returns the model identifier to send on the wire.
func (i Info) ModelID(model string) string {
	model = strings.TrimSpace(model)
	if i.Kind != KindHuggingFace || i.Route == "" || strings.Contains(model, ":") {
		return model
	}
	return model + ":" + i.Route
}

// MissingKeyError reports that no API key was found in the environment.
type MissingKeyError struct {
	Provider string
	EnvVars  []string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("no API key for provider %s: set one of %s", e.Provider, strings.Join(e.EnvVars, ", "))
}
