package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"vdchat/application/ports"
	"vdchat/infrastructure/providers/resilience"
	pkgerrors "vdchat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeModels struct {
	reply   string
	err     error
	calls   int
	configs []*genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.configs = append(f.configs, config)
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(f.reply, genai.RoleModel)},
		},
	}, nil
}

func newTestGateway(models *fakeModels) *CompletionGateway {
	guard := resilience.NewGuard(resilience.DefaultConfig("completion", time.Second), zap.NewNop(), nil)
	return newCompletionGateway(models, "", guard, zap.NewNop())
}

func TestGenerateResponse(t *testing.T) {
	// Arrange
	models := &fakeModels{reply: "  Photosynthesis turns light into energy.\n"}
	gateway := newTestGateway(models)

	// Act
	reply, err := gateway.GenerateResponse(context.Background(), "tell me about photosynthesis")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis turns light into energy.", reply)
	require.Len(t, models.configs, 1)
	assert.Equal(t, int32(150), models.configs[0].MaxOutputTokens)
	assert.InDelta(t, 0.7, *models.configs[0].Temperature, 0.001)
}

func TestGenerateResponse_Failures(t *testing.T) {
	gateway := newTestGateway(&fakeModels{err: errors.New("unauthenticated")})
	_, err := gateway.GenerateResponse(context.Background(), "hi")
	assert.True(t, pkgerrors.IsProvider(err))

	gateway = newTestGateway(&fakeModels{reply: "   "})
	_, err = gateway.GenerateResponse(context.Background(), "hi")
	assert.True(t, pkgerrors.IsProvider(err))
}

func TestExtractTopics(t *testing.T) {
	tests := []struct {
		name     string
		models   *fakeModels
		expected int
	}{
		{
			name:     "valid array",
			models:   &fakeModels{reply: `[{"topic":"photosynthesis","related_topics":["chlorophyll","sunlight"],"relationship_type":"requires"}]`},
			expected: 1,
		},
		{
			name:     "fenced array",
			models:   &fakeModels{reply: "```json\n[{\"topic\":\"a\",\"related_topics\":[]}]\n```"},
			expected: 1,
		},
		{name: "prose", models: &fakeModels{reply: "Here are some topics: A, B"}, expected: 0},
		{name: "object instead of array", models: &fakeModels{reply: `{"topic":"a"}`}, expected: 0},
		{name: "provider failure", models: &fakeModels{err: errors.New("timeout")}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := newTestGateway(tt.models).ExtractTopics(context.Background(), "User: hi")

			assert.NotNil(t, records)
			assert.Len(t, records, tt.expected)
		})
	}
}

func TestExtractTopics_RequestsJSON(t *testing.T) {
	models := &fakeModels{reply: "[]"}

	newTestGateway(models).ExtractTopics(context.Background(), "User: hi")

	require.Len(t, models.configs, 1)
	assert.Equal(t, "application/json", models.configs[0].ResponseMIMEType)
	assert.Equal(t, int32(300), models.configs[0].MaxOutputTokens)
}

func TestSummarize(t *testing.T) {
	gateway := newTestGateway(&fakeModels{reply: "A chat about plants."})

	summary, err := gateway.Summarize(context.Background(), "User: plants\nAI: green")

	require.NoError(t, err)
	assert.Equal(t, "A chat about plants.", summary)
}

func TestParseSentiment(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected ports.Sentiment
	}{
		{name: "positive", raw: `{"sentiment":"positive","confidence":0.92}`, expected: ports.Sentiment{Label: "positive", Confidence: 0.92}},
		{name: "uppercase label", raw: `{"sentiment":"Negative","confidence":0.5}`, expected: ports.Sentiment{Label: "negative", Confidence: 0.5}},
		{name: "clamped", raw: `{"sentiment":"neutral","confidence":7}`, expected: ports.Sentiment{Label: "neutral", Confidence: 1}},
		{name: "fenced", raw: "```json\n{\"sentiment\":\"positive\",\"confidence\":0.3}\n```", expected: ports.Sentiment{Label: "positive", Confidence: 0.3}},
		{name: "unknown label", raw: `{"sentiment":"ecstatic","confidence":0.9}`, expected: ports.NeutralSentiment},
		{name: "malformed", raw: `positive!`, expected: ports.NeutralSentiment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseSentiment(tt.raw))
		})
	}
}

func TestAnalyzeSentiment_FailureIsNeutral(t *testing.T) {
	gateway := newTestGateway(&fakeModels{err: errors.New("boom")})

	assert.Equal(t, ports.NeutralSentiment, gateway.AnalyzeSentiment(context.Background(), "great"))
}
