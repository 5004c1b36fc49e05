package analysis

import (
	"context"
	"strings"

	"github.com/kapu/roster-aggregator-go/internal/constants"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type Request struct {
	System          string
	Prompt          string
	Temperature     float32
	MaxOutputTokens int
}

type Response struct {
	Text  string
	Model string
}

// Provider is one text-generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiProvider wraps the Gemini client.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGeminiProvider(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (*GeminiProvider, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = constants.AnalysisConfig.DefaultGeminiModel
	}
	return &GeminiProvider{client: client, model: model, logger: logger}, nil
}

func (g *GeminiProvider) Name() string {
	return "Gemini"
}

func (g *GeminiProvider) Generate(ctx context.Context, req Request) (Response, error) {
	temperature := req.Temperature
	genConfig := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.MaxOutputTokens),
	}
	if req.System != "" {
		genConfig.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{{Text: req.Prompt}}},
	}, genConfig)
	if err != nil {
		g.logger.Warn("Gemini generation failed", zap.String("model", g.model), zap.Error(err))
		return Response{}, err
	}

	text := extractTextFromGeminiResponse(resp)
	g.logger.Debug("Gemini response received", zap.Int("length", len(text)))
	return Response{Text: text, Model: g.model}, nil
}

func extractTextFromGeminiResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var texts []string
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "")
}

// OpenAIProvider wraps the OpenAI chat completion client.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIProvider returns nil when no API key is configured.
func NewOpenAIProvider(cfg ProviderConfig, logger *zap.Logger) *OpenAIProvider {
	if cfg.APIKey == "" {
		return nil
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = constants.AnalysisConfig.DefaultOpenAIModel
	}
	return &OpenAIProvider{client: &client, model: model, logger: logger}
}

func (o *OpenAIProvider) Name() string {
	return "OpenAI"
}

func (o *OpenAIProvider) Generate(ctx context.Context, req Request) (Response, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(req.MaxOutputTokens)),
		Temperature:         openai.Float(float64(req.Temperature)),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		o.logger.Warn("OpenAI generation failed", zap.String("model", o.model), zap.Error(err))
		return Response{}, err
	}
	if len(resp.Choices) == 0 {
		return Response{Model: o.model}, nil
	}

	o.logger.Debug("OpenAI response received",
		zap.Int("length", len(resp.Choices[0].Message.Content)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)
	return Response{Text: resp.Choices[0].Message.Content, Model: o.model}, nil
}
