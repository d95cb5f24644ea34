package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ErrEmptyResponse is wrapped when the provider returns nothing usable:
// no candidates, no text parts, or a blocked prompt or candidate.
var ErrEmptyResponse = errors.New("empty response from model")

// ErrConfig is wrapped when a request cannot be sent because the client
// configuration is unusable: no model for the tier or invalid safety settings.
// Repeating such a request cannot succeed.
var ErrConfig = errors.New("invalid llm configuration")

// Request is a single structured generation request.
type Request struct {
	// Tag labels the request in errors, e.g. the stage name.
	Tag    string
	Prompt string
	Tier   ModelTier
	// Model overrides the tier's model when set.
	Model string
	// Temperature overrides the configured temperature when non-nil.
	Temperature *float32
	// Safety overrides the configured safety settings when non-empty.
	Safety []SafetySetting
}

// Client is an abstraction over LLM providers
type Client interface {
	// GenerateContent generates free text using the specified model tier
	GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GenerateJSON generates JSON content using the specified model tier
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GenerateStructured generates JSON for a fully specified request
	GenerateStructured(ctx context.Context, req Request) (string, error)
	// GetModel returns the provider model name for a tier
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
	case ProviderGemini, "":
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported provider %q", config.Provider)
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
	if err := ValidateSafety(config.Safety); err != nil {
		return nil, err
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

// GenerateContent generates free text using the specified model tier
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.generate(ctx, Request{Prompt: prompt, Tier: tier}, false)
}

// GenerateJSON generates JSON content using the specified model tier
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	text, err := c.generate(ctx, Request{Prompt: prompt, Tier: tier}, true)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

// GenerateStructured issues one JSON-mode call. The raw text is returned;
// callers own fence stripping and contract validation.
func (c *GeminiClient) GenerateStructured(ctx context.Context, req Request) (string, error) {
	return c.generate(ctx, req, true)
}

func (c *GeminiClient) generate(ctx context.Context, req Request, jsonMode bool) (string, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = c.config.GetModel(req.Tier)
	}
	if modelName == "" {
		return "", fmt.Errorf("%w: no model configured for tier %s", ErrConfig, req.Tier)
	}

	safety := c.config.Safety
	if len(req.Safety) > 0 {
		safety = req.Safety
	}
	settings, err := toGenaiSafety(safety)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConfig, err)
	}

	model := c.client.GenerativeModel(modelName)
	temperature := c.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	model.SetTemperature(temperature)
	if jsonMode {
		model.ResponseMIMEType = "application/json"
	}
	model.SafetySettings = settings

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", fmt.Errorf("%w: %v", ErrEmptyResponse, blocked)
		}
		if req.Tag != "" {
			return "", fmt.Errorf("%s: failed to generate content with %s: %w", req.Tag, modelName, err)
		}
		return "", fmt.Errorf("failed to generate content with %s: %w", modelName, err)
	}

	return extractTextFromResponse(resp)
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

// extractTextFromResponse joins the text parts of the first candidate.
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("%w: prompt blocked (%s)", ErrEmptyResponse, fb.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrEmptyResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no content (finish reason %s)", ErrEmptyResponse, candidate.FinishReason)
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no text parts", ErrEmptyResponse)
	}

	return strings.Join(parts, ""), nil
}
