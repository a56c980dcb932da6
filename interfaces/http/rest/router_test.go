package rest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"vdchat/application/commands"
	"vdchat/application/commands/bus"
	commandhandlers "vdchat/application/commands/handlers"
	"vdchat/application/ports"
	"vdchat/application/ports/mocks"
	querybus "vdchat/application/queries/bus"
	queryhandlers "vdchat/application/queries/handlers"
	"vdchat/application/sagas"
	"vdchat/domain/core/entities"
	"vdchat/domain/core/valueobjects"
	pkgerrors "vdchat/pkg/errors"
	"vdchat/pkg/observability"
	"vdchat/pkg/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockTurns struct {
	mock.Mock
}

func (m *mockTurns) ProcessVoice(ctx context.Context, req sagas.VoiceTurnRequest) (*sagas.TurnResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sagas.TurnResult), args.Error(1)
}

func (m *mockTurns) ProcessText(ctx context.Context, req sagas.TextTurnRequest) (*sagas.TurnResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sagas.TurnResult), args.Error(1)
}

func (m *mockTurns) RebuildGraph(ctx context.Context, conversationID int64) (*sagas.RebuildResult, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sagas.RebuildResult), args.Error(1)
}

type fixture struct {
	turns       *mockTurns
	repo        *mocks.MockConversationRepository
	completion  *mocks.MockCompletionGateway
	synthesizer *mocks.MockSynthesisGateway
	health      map[string]string
	handler     http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, func(*Options) {})
}

func newFixtureWith(t *testing.T, configure func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		turns:       new(mockTurns),
		repo:        new(mocks.MockConversationRepository),
		completion:  new(mocks.MockCompletionGateway),
		synthesizer: new(mocks.MockSynthesisGateway),
		health:      map[string]string{"conversation_store": "healthy", "topic_graph": "healthy"},
	}
	logger := zap.NewNop()

	commandBus := bus.NewCommandBus()
	require.NoError(t, commandBus.Register(commands.DeleteConversationCommand{},
		commandhandlers.NewDeleteConversationHandler(f.repo, mocks.NoopLocker{}, nil, nil, logger)))

	queryBus := querybus.NewQueryBus()
	require.NoError(t, queryhandlers.NewConversationQueryHandler(f.repo, f.completion, logger).Register(queryBus, nil))

	options := Options{EnableCORS: true, EnableMetrics: true, MaxAudioBytes: 1 << 20, DefaultUserID: "1"}
	configure(&options)

	router := NewRouter(
		f.turns, commandBus, queryBus, f.synthesizer, f.completion,
		func(ctx context.Context) map[string]string { return f.health },
		observability.NewCollector("vdchat_test"),
		observability.NewTracer("vdchat", false),
		options,
		logger,
	)
	f.handler = router.Setup()
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func voiceRequest(t *testing.T, fields map[string]string, audio []byte, contentType string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if audio != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="audio"; filename="clip.webm"`)
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(audio)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/voice-input/", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestVoiceInput(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.turns.On("ProcessVoice", mock.Anything, mock.MatchedBy(func(req sagas.VoiceTurnRequest) bool {
		return req.UserID == "1" && req.ConversationID == 4 &&
			string(req.Audio) == "webm-bytes" && req.Metadata.ContentType == "audio/webm"
	})).Return(&sagas.TurnResult{
		ConversationID: 4,
		Transcript:     "hello",
		Response:       "hi there",
		Audio:          []byte("mp3"),
		AudioAvailable: true,
		SnapshotID:     9,
		Graph:          valueobjects.EmptyGraph(),
		Persisted:      true,
		Warnings:       []string{},
		State:          sagas.TurnStateComplete,
	}, nil)

	// Act
	rec := f.do(voiceRequest(t, map[string]string{"conversation_id": "4"}, []byte("webm-bytes"), "audio/webm"))

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(4), body["conversation_id"])
	assert.Equal(t, "hi there", body["response"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("mp3")), body["audio_content"])
	assert.Equal(t, float64(9), body["snapshot_id"])
	assert.NotContains(t, body, "Audio")
	f.turns.AssertExpectations(t)
}

func TestVoiceInput_Errors(t *testing.T) {
	t.Run("missing audio", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(voiceRequest(t, map[string]string{"user_id": "1"}, nil, ""))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "VALIDATION", body["type"])
		assert.IsType(t, "", body["error"])
		assert.NotEmpty(t, body["error"])
		f.turns.AssertNotCalled(t, "ProcessVoice", mock.Anything, mock.Anything)
	})

	t.Run("bad conversation id", func(t *testing.T) {
		f := newFixture(t)

		rec := f.do(voiceRequest(t, map[string]string{"conversation_id": "abc"}, []byte("x"), "audio/webm"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("provider failure", func(t *testing.T) {
		f := newFixture(t)
		f.turns.On("ProcessVoice", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewProviderError("speech", errors.New("unavailable")))

		rec := f.do(voiceRequest(t, nil, []byte("x"), "audio/webm"))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "PROVIDER", body["type"])
		assert.Equal(t, true, body["retryable"])
	})
}

func TestChatResponse(t *testing.T) {
	f := newFixture(t)
	f.turns.On("ProcessText", mock.Anything, sagas.TextTurnRequest{UserID: "1", ConversationID: 3, Message: "what is chlorophyll?"}).
		Return(&sagas.TurnResult{ConversationID: 3, Response: "A pigment.", Graph: valueobjects.EmptyGraph(), Warnings: []string{}}, nil)

	rec := f.do(jsonRequest(http.MethodPost, "/chat-response/", map[string]interface{}{
		"conversation_id": 3,
		"message":         "what is chlorophyll?",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A pigment.", decodeBody(t, rec)["response"])
}

func TestChatResponse_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		turnErr    error
		wantStatus int
	}{
		{name: "malformed json", body: `{"message":`, wantStatus: http.StatusBadRequest},
		{name: "missing message", body: `{"conversation_id": 3}`, wantStatus: http.StatusBadRequest},
		{name: "negative conversation", body: `{"conversation_id": -1, "message": "hi"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown conversation", body: `{"conversation_id": 42, "message": "hi"}`, turnErr: pkgerrors.NewNotFoundError("conversation 42"), wantStatus: http.StatusNotFound},
		{name: "busy conversation", body: `{"conversation_id": 42, "message": "hi"}`, turnErr: pkgerrors.NewConflictError("conversation 42 is busy"), wantStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.turnErr != nil {
				f.turns.On("ProcessText", mock.Anything, mock.Anything).Return(nil, tt.turnErr)
			}

			req := httptest.NewRequest(http.MethodPost, "/chat-response/", strings.NewReader(tt.body))
			rec := f.do(req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestVoiceOutput(t *testing.T) {
	f := newFixture(t)
	f.synthesizer.On("Synthesize", mock.Anything, "hello", ports.VoiceConfig{LanguageCode: "en-GB", VoiceName: "en-GB-Standard-B"}).
		Return([]byte("mp3"), "audio/mpeg", nil)

	rec := f.do(jsonRequest(http.MethodPost, "/voice-output/", map[string]interface{}{
		"text":  "hello",
		"voice": map[string]string{"language_code": "en-GB", "name": "en-GB-Standard-B"},
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("mp3")), body["audio_content"])
	assert.Equal(t, "audio/mpeg", body["content_type"])
}

func TestVoiceOutput_BlankText(t *testing.T) {
	f := newFixture(t)

	rec := f.do(jsonRequest(http.MethodPost, "/voice-output/", map[string]string{"text": ""}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.synthesizer.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything)
}

func TestVoiceOutput_TextOverConfiguredLimit(t *testing.T) {
	// Arrange
	f := newFixtureWith(t, func(o *Options) { o.MaxSynthesisLength = 10 })
	f.synthesizer.On("Synthesize", mock.Anything, "ten chars!", mock.Anything).Return([]byte("mp3"), "audio/mpeg", nil)

	// Act
	tooLong := f.do(jsonRequest(http.MethodPost, "/voice-output/", map[string]string{"text": "eleven char"}))
	atLimit := f.do(jsonRequest(http.MethodPost, "/voice-output/", map[string]string{"text": "ten chars!"}))

	// Assert
	require.Equal(t, http.StatusBadRequest, tooLong.Code)
	assert.Equal(t, "text exceeds maximum length of 10 characters", decodeBody(t, tooLong)["error"])
	assert.Equal(t, http.StatusOK, atLimit.Code)
	f.synthesizer.AssertNumberOfCalls(t, "Synthesize", 1)
}

func TestSentiment(t *testing.T) {
	f := newFixture(t)
	f.completion.On("AnalyzeSentiment", mock.Anything, "great day").Return(ports.Sentiment{Label: "positive", Confidence: 0.9})

	rec := f.do(jsonRequest(http.MethodPost, "/sentiment/", map[string]string{"text": "great day"}))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "positive", body["sentiment"])
	assert.Equal(t, 0.9, body["confidence"])
}

func TestProviderRoutesAreRateLimited(t *testing.T) {
	// Arrange
	f := newFixtureWith(t, func(o *Options) {
		o.Limiter = ratelimit.NewSlidingWindowLimiter(1, time.Minute)
	})
	f.completion.On("AnalyzeSentiment", mock.Anything, "hi").Return(ports.Sentiment{Label: "neutral", Confidence: 0.5})
	newRequest := func(user string) *http.Request {
		req := jsonRequest(http.MethodPost, "/sentiment", map[string]string{"text": "hi"})
		req.Header.Set("X-User-ID", user)
		return req
	}

	// Act
	first := f.do(newRequest("alice"))
	second := f.do(newRequest("alice"))
	other := f.do(newRequest("bob"))
	health := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	// Assert
	assert.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT", decodeBody(t, second)["type"])
	assert.Equal(t, http.StatusOK, other.Code)
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestKnowledgeGraphRoutes(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	graph := valueobjects.Graph{Nodes: []string{"A"}, Relationships: []valueobjects.Relationship{}}
	f.repo.On("GetByID", mock.Anything, int64(7)).Return(entities.ReconstructConversation(7, "1", "User: a", now), nil)
	f.repo.On("ListSnapshots", mock.Anything, int64(7)).Return([]*entities.KnowledgeGraphSnapshot{
		entities.ReconstructSnapshot(2, 7, graph, now),
	}, nil)
	f.repo.On("ListSnapshotsByUser", mock.Anything, "1").Return([]*entities.KnowledgeGraphSnapshot{}, nil)
	f.turns.On("RebuildGraph", mock.Anything, int64(7)).Return(&sagas.RebuildResult{
		ConversationID: 7, SnapshotID: 3, Graph: graph, Warnings: []string{},
	}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/knowledge-graph/7/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["total"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/knowledge-graph/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec)["total"])

	rec = f.do(jsonRequest(http.MethodPost, "/knowledge-graph/", map[string]int{"conversation_id": 7}))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(3), decodeBody(t, rec)["graph_id"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/knowledge-graph/abc/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversationRoutes(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	f.repo.On("GetByID", mock.Anything, int64(5)).Return(entities.ReconstructConversation(5, "1", "User: hi\nAI: hello", now), nil)
	f.repo.On("Delete", mock.Anything, int64(5)).Return(nil)
	f.repo.On("Search", mock.Anything, "1", "hello").Return([]*entities.Conversation{
		entities.ReconstructConversation(5, "1", "User: hi\nAI: hello", now),
	}, nil)
	f.completion.On("Summarize", mock.Anything, "User: hi\nAI: hello").Return("A greeting.", nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/conversations/5/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User: hi\nAI: hello", decodeBody(t, rec)["transcript"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/conversations/?user_id=1&q=hello", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["total"])

	rec = f.do(httptest.NewRequest(http.MethodGet, "/conversations/5/summary/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A greeting.", decodeBody(t, rec)["summary"])

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/conversations/5/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	f.repo.AssertCalled(t, "Delete", mock.Anything, int64(5))
}

func TestHealthAndReadiness(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	f.health["topic_graph"] = "unhealthy"
	rec = f.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", decodeBody(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vdchat_test_http_requests_total")
}
