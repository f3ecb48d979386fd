package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/viper"
	"google.golang.org/genai"
)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicModelsResponse struct {
	Data []struct {
		ID        string `json:"id"`
		CreatedAt string `json:"created_at"`
	} `json:"data"`
}

// Client talks to a single configured completion provider. Construction
// never fails; provider errors surface on the first AskPrompt call.
type Client struct {
	provider     string
	apiKey       string
	baseURL      string
	openaiClient *openai.Client
	geminiClient *genai.Client
	httpClient   *http.Client
	debug        bool
}

func looksLikeEnvVarName(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 8 {
		return false
	}
	// Must be all caps/underscores/digits and start with a letter.
	for i, r := range s {
		if i == 0 {
			if r < 'A' || r > 'Z' {
				return false
			}
			continue
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			continue
		}
		return false
	}
	return true
}

// resolveEnvVarKeyPointer lets config carry either a literal key or the
// name of the environment variable holding it.
func resolveEnvVarKeyPointer(apiKey string) string {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ""
	}
	if !looksLikeEnvVarName(apiKey) {
		return apiKey
	}
	if v := strings.TrimSpace(os.Getenv(apiKey)); v != "" {
		return v
	}
	return apiKey
}

func NewClient(provider, apiKey string, debug bool) *Client {
	client := &Client{
		provider:   provider,
		apiKey:     resolveEnvVarKeyPointer(apiKey),
		httpClient: &http.Client{},
		debug:      debug,
	}

	switch provider {
	case "openai":
		client.baseURL = "https://api.openai.com/v1"
		client.openaiClient = openai.NewClient(client.apiKey)
	case "anthropic":
		client.baseURL = "https://api.anthropic.com/v1"
	case "gemini":
		// Application Default Credentials, same flow as the gemini CLI.
		// User should run: gcloud auth application-default login
		ctx := context.Background()
		geminiClient, err := genai.NewClient(ctx, &genai.ClientConfig{})
		if err == nil {
			client.geminiClient = geminiClient
		} else {
			client.tryFallbackToOpenAI(err)
		}
	case "gemini-api":
		// Gemini API requires an API key from Google AI Studio.
		if client.apiKey == "" {
			client.tryFallbackToOpenAI(fmt.Errorf("gemini-api provider configured without API key"))
			break
		}
		ctx := context.Background()
		geminiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: client.apiKey,
		})
		if err == nil {
			client.geminiClient = geminiClient
		} else {
			client.tryFallbackToOpenAI(err)
		}
	default:
		// Default to OpenAI for best compatibility when no provider specified
		client.provider = "openai"
		client.baseURL = "https://api.openai.com/v1"
		client.openaiClient = openai.NewClient(client.apiKey)
	}

	return client
}

// NewClientFromConfig builds a client for the configured default
// provider, resolving the API key from ai.providers.<name>.
func NewClientFromConfig(debug bool) *Client {
	provider := viper.GetString("ai.default_provider")
	if provider == "" {
		provider = "openai"
	}
	return NewClient(provider, providerAPIKey(provider), debug)
}

func (c *Client) Provider() string { return c.provider }

func (c *Client) tryFallbackToOpenAI(reason error) {
	fallbackKey := resolveFallbackOpenAIKey(c.apiKey)
	if fallbackKey == "" {
		if c.debug {
			fmt.Printf("Gemini unavailable (%v) and no OpenAI key available for fallback\n", reason)
		}
		return
	}

	if c.debug {
		fmt.Printf("Gemini unavailable (%v). Falling back to OpenAI.\n", reason)
	}

	c.provider = "openai"
	c.apiKey = fallbackKey
	c.baseURL = "https://api.openai.com/v1"
	c.openaiClient = openai.NewClient(fallbackKey)
	c.geminiClient = nil
}

func resolveFallbackOpenAIKey(existing string) string {
	if existing != "" {
		return existing
	}
	if key := viper.GetString("ai.providers.openai.api_key"); key != "" {
		return key
	}
	if envName := viper.GetString("ai.providers.openai.api_key_env"); envName != "" {
		if envVal := os.Getenv(envName); envVal != "" {
			return envVal
		}
	}
	if envVal := os.Getenv("OPENAI_API_KEY"); envVal != "" {
		return envVal
	}
	return ""
}

// AskPrompt sends a raw prompt to the configured provider without adding wrapper context.
func (c *Client) AskPrompt(ctx context.Context, prompt string) (string, error) {
	switch c.provider {
	case "anthropic":
		return c.askAnthropic(ctx, prompt)
	case "gemini", "gemini-api":
		return c.askGemini(ctx, prompt)
	default:
		return c.askOpenAI(ctx, prompt)
	}
}

func (c *Client) askOpenAI(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}

	resp, err := c.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model(),
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: sanitizeASCII(prompt),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from AI")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) askAnthropic(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", fmt.Errorf("Anthropic API key not configured")
	}

	model := strings.TrimSpace(c.model())
	if model == "" {
		latest, err := c.getLatestAnthropicModelID(ctx)
		if err != nil {
			return "", err
		}
		model = latest
	}

	// Anthropic API is strict about ASCII in some client setups; keep consistent with other providers.
	prompt = sanitizeASCII(prompt)

	reqBody := anthropicRequest{
		Model:       model,
		MaxTokens:   4000,
		Temperature: 0.1,
		Messages: []anthropicMessage{{
			Role: "user",
			// Content-block format, compatible with the modern Messages API.
			Content: []map[string]any{{"type": "text", "text": prompt}},
		}},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.baseURL, "/")+"/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", strings.TrimSpace(c.apiKey))
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Anthropic API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	for _, block := range parsed.Content {
		if strings.TrimSpace(block.Text) != "" {
			return block.Text, nil
		}
	}

	return "", fmt.Errorf("no response content from Anthropic")
}

func (c *Client) getLatestAnthropicModelID(ctx context.Context) (string, error) {
	url := strings.TrimRight(c.baseURL, "/") + "/models"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create models request: %w", err)
	}
	req.Header.Set("x-api-key", strings.TrimSpace(c.apiKey))
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch Anthropic models: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read Anthropic models response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Anthropic models request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed anthropicModelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal Anthropic models response: %w", err)
	}
	for _, m := range parsed.Data {
		id := strings.TrimSpace(m.ID)
		if id != "" {
			// Docs: newest models are listed first.
			return id, nil
		}
	}

	return "", fmt.Errorf("no Anthropic models returned")
}

func (c *Client) askGemini(ctx context.Context, prompt string) (string, error) {
	if c.geminiClient == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}

	content := genai.NewContentFromText(sanitizeASCII(prompt), genai.RoleUser)

	resp, err := c.geminiClient.Models.GenerateContent(ctx, c.model(), []*genai.Content{content}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response candidates from Gemini")
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			result.WriteString(part.Text)
		}
	}

	return result.String(), nil
}

func stripMarkdownCodeFences(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		t := strings.TrimSpace(ln)
		if strings.HasPrefix(t, "```") {
			continue
		}
		out = append(out, ln)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// CleanJSONResponse extracts the first valid JSON value from an LLM response.
// It is robust against braces inside JSON strings and markdown code fences.
func (c *Client) CleanJSONResponse(response string) string {
	s := strings.TrimSpace(response)
	if s == "" {
		return s
	}

	// Remove markdown code fences, which often introduce leading backticks.
	s = stripMarkdownCodeFences(s)

	// Scan for a JSON object/array start and attempt decoding from there.
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '{' && ch != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		dec.UseNumber()
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			trimmed := strings.TrimSpace(string(raw))
			if trimmed != "" {
				return trimmed
			}
		}
	}

	return strings.TrimSpace(response)
}

// sanitizeASCII strips non-ASCII runes to avoid provider request limits
func sanitizeASCII(s string) string {
	// Fast path: if all bytes < 128
	allASCII := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 128 {
			allASCII = false
			break
		}
	}
	if allASCII {
		return s
	}
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] < 128 {
			b = append(b, s[i])
		}
	}
	return string(b)
}
