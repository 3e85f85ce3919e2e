package providers

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// APIType names the wire protocol a provider speaks.
type APIType string

const (
	APIOpenAI           APIType = "openai"
	APIOpenAICompatible APIType = "openai_compatible"
	APIGemini           APIType = "gemini"
	APIAnthropic        APIType = "anthropic"
	APIDeepSeek         APIType = "deepseek"
)

// ParseAPIType accepts the protocol names case-insensitively. "" maps to
// openai_compatible.
func ParseAPIType(s string) (APIType, error) {
	api := APIType(strings.ToLower(strings.TrimSpace(s)))
	if api == "" {
		return APIOpenAICompatible, nil
	}
	if _, ok := builders[api]; !ok {
		return "", fmt.Errorf("providers: unsupported api type %q", s)
	}
	return api, nil
}

// Config is one model alias. The key comes from APIKey, or from the
// environment variable named by APIKeyEnv.
type Config struct {
	Alias               string
	Provider            string
	API                 APIType
	Model               string
	BaseURL             string
	Headers             map[string]string
	Timeout             time.Duration
	MaxOutputTok        int
	ContextWindowTokens int
	APIKey              string
	APIKeyEnv           string
}

func (c Config) apiKey() (string, error) {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key, nil
	}
	if c.APIKeyEnv != "" {
		if key := strings.TrimSpace(os.Getenv(c.APIKeyEnv)); key != "" {
			return key, nil
		}
		return "", fmt.Errorf("%s is not set", c.APIKeyEnv)
	}
	return "", fmt.Errorf("api key is empty")
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 60 * time.Second
}
