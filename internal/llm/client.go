package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/jonathan/trait-scorer/internal/imaging"
	"google.golang.org/api/option"
)

// Client is an abstraction over LLM providers
type Client interface {
	// GenerateContent sends a text-only request and returns the reply text
	GenerateContent(ctx context.Context, system, prompt string, tier ModelTier) (string, error)
	// GenerateFromImages sends prompt followed by the images and returns the reply text
	GenerateFromImages(ctx context.Context, system, prompt string, images []imaging.Image, tier ModelTier) (string, error)
	// GetModel returns the provider model name used for a tier
	GetModel(tier ModelTier) string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", config.Provider)
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// GenerateContent generates text content using the specified model tier
func (c *GeminiClient) GenerateContent(ctx context.Context, system, prompt string, tier ModelTier) (string, error) {
	return c.generate(ctx, "generate content", system, tier, genai.Text(prompt))
}

// GenerateFromImages generates text from a prompt and one or more images
func (c *GeminiClient) GenerateFromImages(ctx context.Context, system, prompt string, images []imaging.Image, tier ModelTier) (string, error) {
	if len(images) == 0 {
		return "", &APICallError{Op: "generate from images", Model: c.config.GetModel(tier), Message: "no images given"}
	}
	return c.generate(ctx, "generate from images", system, tier, buildParts(prompt, images)...)
}

func (c *GeminiClient) generate(ctx context.Context, op, system string, tier ModelTier, parts ...genai.Part) (string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", &APICallError{Op: op, Message: fmt.Sprintf("no model configured for tier %s", tier)}
	}

	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(c.config.Temperature)
	if c.config.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(c.config.MaxOutputTokens)
	}
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", &APICallError{Op: op, Model: modelName, Message: "request failed", Cause: err}
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", &APICallError{Op: op, Model: modelName, Message: "unusable response", Cause: err}
	}
	return text, nil
}

// GetModel returns the model name for a tier
func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// buildParts places the prompt text before the images, in upload order.
func buildParts(prompt string, images []imaging.Image) []genai.Part {
	parts := make([]genai.Part, 0, len(images)+1)
	if prompt != "" {
		parts = append(parts, genai.Text(prompt))
	}
	for _, img := range images {
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}
	return parts
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("nil response")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response (finish reason %s)", candidate.FinishReason)
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	text := strings.Join(parts, "")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text parts in response")
	}
	return text, nil
}
