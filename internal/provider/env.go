package provider

import (
	"os"
	"strings"

	"github.com/codefionn/tldrbot/internal/securemem"
)

// envVarsByKind lists the environment variables that can supply an API key
// for each backend kind, in lookup order.
var envVarsByKind = map[Kind][]string{
	KindOpenAI:      {"OPENAI_API_KEY"},
	KindAnthropic:   {"ANTHROPIC_API_KEY"},
	KindGoogle:      {"GEMINI_API_KEY", "GOOGLE_API_KEY", "GOOGLE_GENAI_API_KEY"},
	KindHuggingFace: {"HF_TOKEN", "HUGGINGFACE_API_KEY", "HUGGING_FACE_HUB_TOKEN"},
	KindCompatible:  {"OPENAI_COMPATIBLE_API_KEY", "OPENAI_API_KEY"},
}

// resolveAPIKey returns the first non-empty environment variable for kind.
func resolveAPIKey(kind Kind) (string, string) {
	for _, envVar := range envVarsByKind[kind] {
		if value := strings.TrimSpace(os.Getenv(envVar)); value != "" {
			return envVar, value
		}
	}
	return "", ""
}

// EnvVarHints returns the environment variables consulted for a provider.
func EnvVarHints(providerName string) []string {
	info, err := Lookup(providerName)
	if err != nil {
		return nil
	}
	hints := envVarsByKind[info.Kind]
	out := make([]string, len(hints))
	copy(out, hints)
	return out
}

// LoadAPIKey reads the provider's API key from the environment into ring and
// returns the protected value. The plaintext environment copy is left as is;
// only our own copy is kept in locked memory.
func LoadAPIKey(ring *securemem.Keyring, providerName string) (*securemem.String, error) {
	info, err := Lookup(providerName)
	if err != nil {
		return nil, err
	}
	envVar, value := resolveAPIKey(info.Kind)
	if value == "" {
		return nil, &MissingKeyError{Provider: info.Name, EnvVars: EnvVarHints(info.Name)}
	}
	ring.Set(envVar, value)
	return ring.Get(envVar), nil
}
