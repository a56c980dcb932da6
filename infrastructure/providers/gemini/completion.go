// Package gemini implements the completion gateway on the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"vdchat/application/ports"
	"vdchat/domain/core/valueobjects"
	"vdchat/infrastructure/providers/resilience"
	pkgerrors "vdchat/pkg/errors"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	provider     = "completion"
	DefaultModel = "gemini-2.0-flash"

	assistantInstruction  = "You are a helpful assistant having a conversation with a user."
	extractionInstruction = "You are a topic extraction specialist."
	summaryInstruction    = "Summarize the following conversation concisely:"
	sentimentInstruction  = "Analyze the sentiment of this text and return a JSON object with 'sentiment' (positive/negative/neutral) and 'confidence' (0-1):"
)

const extractionPrompt = `Analyze the following conversation and extract key topics and their relationships.
Return only a JSON array of objects with the following structure:
[
    {
        "topic": "main topic",
        "related_topics": ["related topic 1", "related topic 2"],
        "relationship_type": "describes/contains/relates to/etc"
    }
]

Text to analyze:
%s`

// generator is satisfied by *genai.Models
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// CompletionGateway implements ports.CompletionGateway
type CompletionGateway struct {
	models generator
	model  string
	guard  *resilience.Guard
	logger *zap.Logger
}

// NewClient creates a Gemini API client
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

func NewCompletionGateway(client *genai.Client, model string, guard *resilience.Guard, logger *zap.Logger) *CompletionGateway {
	return newCompletionGateway(client.Models, model, guard, logger)
}

func newCompletionGateway(models generator, model string, guard *resilience.Guard, logger *zap.Logger) *CompletionGateway {
	if model == "" {
		model = DefaultModel
	}
	return &CompletionGateway{
		models: models,
		model:  model,
		guard:  guard,
		logger: logger,
	}
}

type request struct {
	instruction string
	prompt      string
	temperature float32
	maxTokens   int32
	jsonOutput  bool
}

func (g *CompletionGateway) complete(ctx context.Context, req request) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.instruction, genai.RoleUser),
		Temperature:       genai.Ptr(req.temperature),
		MaxOutputTokens:   req.maxTokens,
	}
	if req.jsonOutput {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := resilience.Call(ctx, g.guard, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return g.models.GenerateContent(ctx, g.model, genai.Text(req.prompt), config)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (g *CompletionGateway) GenerateResponse(ctx context.Context, userText string) (string, error) {
	text, err := g.complete(ctx, request{
		instruction: assistantInstruction,
		prompt:      userText,
		temperature: 0.7,
		maxTokens:   150,
	})
	if err != nil {
		return "", pkgerrors.NewProviderError(provider, err)
	}
	if text == "" {
		return "", pkgerrors.NewProviderError(provider, fmt.Errorf("empty response from model %s", g.model))
	}
	return text, nil
}

// ExtractTopics asks for a strict JSON array and validates it. Failures are
// logged and degrade to no topics.
func (g *CompletionGateway) ExtractTopics(ctx context.Context, text string) []valueobjects.TopicRecord {
	raw, err := g.complete(ctx, request{
		instruction: extractionInstruction,
		prompt:      fmt.Sprintf(extractionPrompt, text),
		temperature: 0.3,
		maxTokens:   300,
		jsonOutput:  true,
	})
	if err != nil {
		g.logger.Warn("Topic extraction failed", zap.Error(err))
		return []valueobjects.TopicRecord{}
	}

	records := valueobjects.ParseTopicRecords(raw)
	if len(records) == 0 && raw != "" && raw != "[]" {
		g.logger.Warn("Topic extraction returned malformed output", zap.Int("length", len(raw)))
	}
	return records
}

func (g *CompletionGateway) Summarize(ctx context.Context, transcript string) (string, error) {
	text, err := g.complete(ctx, request{
		instruction: summaryInstruction,
		prompt:      transcript,
		temperature: 0.5,
		maxTokens:   100,
	})
	if err != nil {
		return "", pkgerrors.NewProviderError(provider, err)
	}
	return text, nil
}

func (g *CompletionGateway) AnalyzeSentiment(ctx context.Context, text string) ports.Sentiment {
	raw, err := g.complete(ctx, request{
		instruction: sentimentInstruction,
		prompt:      text,
		temperature: 0.3,
		maxTokens:   50,
		jsonOutput:  true,
	})
	if err != nil {
		g.logger.Warn("Sentiment analysis failed", zap.Error(err))
		return ports.NeutralSentiment
	}
	return ParseSentiment(raw)
}

// ParseSentiment decodes {"sentiment", "confidence"}. Unknown labels and
// malformed payloads yield NeutralSentiment; confidence is clamped to [0, 1].
func ParseSentiment(raw string) ports.Sentiment {
	payload := strings.TrimSpace(raw)
	payload = strings.TrimPrefix(payload, "```json")
	payload = strings.TrimPrefix(payload, "```")
	payload = strings.TrimSuffix(payload, "```")

	var s ports.Sentiment
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &s); err != nil {
		return ports.NeutralSentiment
	}

	s.Label = strings.ToLower(strings.TrimSpace(s.Label))
	switch s.Label {
	case "positive", "negative", "neutral":
	default:
		return ports.NeutralSentiment
	}

	if s.Confidence < 0 {
		s.Confidence = 0
	}
	if s.Confidence > 1 {
		s.Confidence = 1
	}
	return s
}
