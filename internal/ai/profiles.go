package ai

import (
	"fmt"

	"github.com/spf13/viper"
)

// defaultModels is used when ai.providers.<name>.model is not set.
var defaultModels = map[string]string{
	"openai":     "gpt-4o-mini",
	"anthropic":  "", // resolved from the live models endpoint
	"gemini":     "gemini-2.0-flash",
	"gemini-api": "gemini-2.0-flash",
}

// model returns the configured model for the client's provider.
func (c *Client) model() string {
	if m := viper.GetString(fmt.Sprintf("ai.providers.%s.model", c.provider)); m != "" {
		return m
	}
	return defaultModels[c.provider]
}

// providerAPIKey resolves the API key for a provider from config,
// preferring a literal api_key, then api_key_env.
func providerAPIKey(provider string) string {
	if key := viper.GetString(fmt.Sprintf("ai.providers.%s.api_key", provider)); key != "" {
		return key
	}
	if envName := viper.GetString(fmt.Sprintf("ai.providers.%s.api_key_env", provider)); envName != "" {
		// NewClient resolves env var names to values.
		return envName
	}
	return ""
}
