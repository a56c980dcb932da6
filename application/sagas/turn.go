// Package sagas runs the multi-step conversation workflows.
package sagas

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vdchat/application/ports"
	"vdchat/application/queries"
	"vdchat/domain/config"
	"vdchat/domain/core/entities"
	"vdchat/domain/core/valueobjects"
	"vdchat/domain/events"
	pkgerrors "vdchat/pkg/errors"
	"vdchat/pkg/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GraphUpserter merges extraction records into the topic graph
type GraphUpserter interface {
	Upsert(ctx context.Context, records []valueobjects.TopicRecord, conversationID int64) valueobjects.Graph
}

// Warnings attached to partially successful turns
const (
	WarningTranscriptUpdate = "assistant reply could not be saved to the transcript"
	WarningGraphUpsert      = "knowledge graph update failed"
	WarningSnapshot         = "knowledge graph snapshot could not be saved"
	WarningSynthesis        = "audio synthesis failed"
	WarningLock             = "conversation lock unavailable"
)

// Dependencies groups the collaborators of the turn orchestrator
type Dependencies struct {
	Repository   ports.ConversationRepository
	Transcriber  ports.TranscriptionGateway
	Completion   ports.CompletionGateway
	Synthesizer  ports.SynthesisGateway
	Upserter     GraphUpserter
	Locker       ports.ConversationLocker
	Publisher    ports.EventPublisher
	Cache        ports.Cache
	DomainConfig *config.DomainConfig
	DefaultVoice ports.VoiceConfig
	Logger       *zap.Logger
	Metrics      *observability.Collector
	Tracer       *observability.Tracer
}

// VoiceTurnRequest is one recorded utterance. ConversationID 0 starts a new
// conversation for UserID.
type VoiceTurnRequest struct {
	UserID         string
	ConversationID int64
	Audio          []byte
	Metadata       ports.AudioMetadata
	Voice          ports.VoiceConfig
}

// TextTurnRequest is one typed message
type TextTurnRequest struct {
	UserID         string
	ConversationID int64
	Message        string
}

// TurnResult is returned once the conversation is persisted. Failures after
// that point are reported in Warnings instead of as an error.
type TurnResult struct {
	TurnID           string             `json:"turn_id"`
	ConversationID   int64              `json:"conversation_id"`
	Transcript       string             `json:"transcript"`
	Response         string             `json:"response"`
	Audio            []byte             `json:"-"`
	AudioContentType string             `json:"audio_content_type,omitempty"`
	AudioAvailable   bool               `json:"audio_available"`
	AudioError       string             `json:"audio_error,omitempty"`
	SnapshotID       int64              `json:"snapshot_id"`
	Graph            valueobjects.Graph `json:"graph_data"`
	Persisted        bool               `json:"persisted"`
	Warnings         []string           `json:"warnings"`
	State            TurnState          `json:"state"`
	States           []TurnState        `json:"-"`
}

// RebuildResult is the outcome of re-extracting a whole transcript
type RebuildResult struct {
	ConversationID int64              `json:"conversation_id"`
	SnapshotID     int64              `json:"graph_id"`
	Graph          valueobjects.Graph `json:"graph_data"`
	Warnings       []string           `json:"warnings"`
}

// TurnOrchestrator drives a conversation turn through transcription,
// generation, persistence, topic extraction, graph upsert, snapshot and
// synthesis.
type TurnOrchestrator struct {
	deps Dependencies
}

// NewTurnOrchestrator creates a new turn orchestrator
func NewTurnOrchestrator(deps Dependencies) *TurnOrchestrator {
	if deps.DomainConfig == nil {
		deps.DomainConfig = config.DefaultDomainConfig()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TurnOrchestrator{deps: deps}
}

// ProcessVoice runs a full voice turn. Errors are returned only when the turn
// failed before the conversation was written.
func (o *TurnOrchestrator) ProcessVoice(ctx context.Context, req VoiceTurnRequest) (*TurnResult, error) {
	t := newTurn(uuid.New().String(), TurnModeVoice, o.deps.Logger, o.deps.Metrics)

	if err := o.validateVoice(req); err != nil {
		return nil, t.fail(err)
	}

	var text string
	err := o.trace(ctx, "transcribe", func(ctx context.Context) error {
		var err error
		text, err = o.deps.Transcriber.Transcribe(ctx, req.Audio, req.Metadata)
		return err
	})
	if err != nil {
		o.deps.Metrics.RecordProviderError("speech")
		return nil, t.fail(err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, t.fail(pkgerrors.NewValidationError("no speech was recognized in the audio"))
	}
	t.advance(TurnStateTranscribed, zap.Int("transcript_length", len(text)))

	voice := req.Voice
	return o.run(ctx, t, req.UserID, req.ConversationID, text, &voice)
}

// ProcessText runs a typed turn. It enters the pipeline already transcribed
// and skips synthesis.
func (o *TurnOrchestrator) ProcessText(ctx context.Context, req TextTurnRequest) (*TurnResult, error) {
	t := newTurn(uuid.New().String(), TurnModeText, o.deps.Logger, o.deps.Metrics)

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, t.fail(pkgerrors.NewValidationError("message cannot be empty"))
	}
	if len(message) > o.deps.DomainConfig.MaxMessageLength {
		return nil, t.fail(pkgerrors.NewValidationError(
			fmt.Sprintf("message exceeds maximum length of %d characters", o.deps.DomainConfig.MaxMessageLength)))
	}
	if err := validateTarget(req.UserID, req.ConversationID); err != nil {
		return nil, t.fail(err)
	}
	t.advance(TurnStateTranscribed, zap.Int("transcript_length", len(message)))

	return o.run(ctx, t, req.UserID, req.ConversationID, message, nil)
}

func (o *TurnOrchestrator) run(ctx context.Context, t *turn, userID string, conversationID int64, userText string, voice *ports.VoiceConfig) (*TurnResult, error) {
	var response string
	err := o.trace(ctx, "generate", func(ctx context.Context) error {
		var err error
		response, err = o.deps.Completion.GenerateResponse(ctx, userText)
		return err
	})
	if err != nil {
		o.deps.Metrics.RecordProviderError("completion")
		return nil, t.fail(err)
	}
	t.advance(TurnStateResponseGenerated, zap.Int("response_length", len(response)))

	cfg := o.deps.DomainConfig
	userLine := entities.FormatLine(cfg.UserPrefix, userText)
	assistantLine := entities.FormatLine(cfg.AssistantPrefix, response)

	conv, unlock, err := o.saveUserLine(ctx, userID, conversationID, userLine)
	if err != nil {
		return nil, t.fail(err)
	}

	result := &TurnResult{
		TurnID:         t.id,
		ConversationID: conv.ID(),
		Transcript:     userText,
		Response:       response,
		Graph:          valueobjects.EmptyGraph(),
		Persisted:      true,
		Warnings:       []string{},
	}
	if unlock == nil {
		result.Warnings = append(result.Warnings, WarningLock)
		unlock = func() {}
	}
	t.advance(TurnStateConversationSaved, zap.Int64("conversation_id", conv.ID()))

	o.persistTurn(ctx, t, conv, assistantLine, userLine+"\n"+assistantLine, result)
	queries.InvalidateConversation(ctx, o.deps.Cache, o.deps.Logger, conv.UserID(), conv.ID())
	unlock()

	// A read that loaded before the snapshot commit may have refilled the
	// cache while the lock was held.
	queries.InvalidateConversation(ctx, o.deps.Cache, o.deps.Logger, conv.UserID(), conv.ID())

	if voice != nil {
		o.synthesize(ctx, t, response, *voice, result)
	}

	t.complete(result.Warnings)
	result.State = t.state
	result.States = t.history

	if conversationID == 0 {
		o.publish(ctx, events.NewConversationStarted(conv.ID(), conv.UserID(), conv.CreatedAt()))
	}
	o.publish(ctx, events.NewTurnCompleted(
		result.ConversationID, result.TurnID, result.SnapshotID, result.Graph.Nodes,
		result.AudioAvailable, result.Warnings, time.Now().UTC(),
	))

	return result, nil
}

// saveUserLine writes the user's line and returns the conversation with its
// lock held. A nil unlock means the lock could not be taken for a newly
// created conversation, which no other turn can reference yet.
func (o *TurnOrchestrator) saveUserLine(ctx context.Context, userID string, conversationID int64, userLine string) (*entities.Conversation, func(), error) {
	if conversationID == 0 {
		conv, err := o.deps.Repository.Create(ctx, userID, userLine)
		if err != nil {
			return nil, nil, err
		}
		unlock, err := o.deps.Locker.Lock(ctx, conv.ID())
		if err != nil {
			o.deps.Logger.Warn("Proceeding without conversation lock",
				zap.Int64("conversation_id", conv.ID()),
				zap.Error(err),
			)
			return conv, nil, nil
		}
		return conv, unlock, nil
	}

	unlock, err := o.deps.Locker.Lock(ctx, conversationID)
	if err != nil {
		return nil, nil, lockError(conversationID, err)
	}
	conv, err := o.deps.Repository.AppendToTranscript(ctx, conversationID, userLine)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return conv, unlock, nil
}

// persistTurn runs the post-persistence steps under the conversation lock.
// Every failure here degrades into a warning on result.
func (o *TurnOrchestrator) persistTurn(ctx context.Context, t *turn, conv *entities.Conversation, assistantLine, turnText string, result *TurnResult) {
	if _, err := o.deps.Repository.AppendToTranscript(ctx, conv.ID(), assistantLine); err != nil {
		o.warn(t, result, WarningTranscriptUpdate, err)
	} else {
		t.advance(TurnStateConversationUpdated)
	}

	var records []valueobjects.TopicRecord
	_ = o.trace(ctx, "extract_topics", func(ctx context.Context) error {
		records = o.deps.Completion.ExtractTopics(ctx, turnText)
		return nil
	})
	t.advance(TurnStateTopicsExtracted, zap.Int("records", len(records)))

	graph := o.upsert(ctx, records, conv.ID())
	if graph.HasError() {
		o.warn(t, result, WarningGraphUpsert, errors.New(graph.Error))
	}
	result.Graph = graph
	t.advance(TurnStateGraphUpserted,
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("relationships", len(graph.Relationships)),
	)

	snapshot, err := o.deps.Repository.CreateSnapshot(ctx, conv.ID(), graph)
	if err != nil {
		o.warn(t, result, WarningSnapshot, err)
		return
	}
	result.SnapshotID = snapshot.ID()
	t.advance(TurnStateSnapshotSaved, zap.Int64("snapshot_id", snapshot.ID()))
}

func (o *TurnOrchestrator) upsert(ctx context.Context, records []valueobjects.TopicRecord, conversationID int64) valueobjects.Graph {
	var graph valueobjects.Graph
	_ = o.trace(ctx, "upsert_graph", func(ctx context.Context) error {
		graph = o.deps.Upserter.Upsert(ctx, records, conversationID)
		if graph.HasError() {
			return errors.New(graph.Error)
		}
		return nil
	})

	if graph.HasError() {
		o.deps.Metrics.RecordGraphAborted()
	} else {
		o.deps.Metrics.RecordGraphMerges(len(graph.Relationships))
	}
	return graph
}

func (o *TurnOrchestrator) synthesize(ctx context.Context, t *turn, text string, voice ports.VoiceConfig, result *TurnResult) {
	if voice.LanguageCode == "" {
		voice.LanguageCode = o.deps.DefaultVoice.LanguageCode
	}
	if voice.VoiceName == "" {
		voice.VoiceName = o.deps.DefaultVoice.VoiceName
	}

	var (
		audio       []byte
		contentType string
	)
	err := o.trace(ctx, "synthesize", func(ctx context.Context) error {
		var err error
		audio, contentType, err = o.deps.Synthesizer.Synthesize(ctx, text, voice)
		return err
	})
	if err != nil {
		o.deps.Metrics.RecordProviderError("tts")
		result.AudioError = err.Error()
		if appErr := pkgerrors.GetAppError(err); appErr != nil {
			result.AudioError = appErr.Message
		}
		o.warn(t, result, WarningSynthesis, err)
		return
	}

	result.Audio = audio
	result.AudioContentType = contentType
	result.AudioAvailable = true
	t.advance(TurnStateSpeechSynthesized, zap.Int("audio_bytes", len(audio)))
}

// RebuildGraph re-extracts topics from the full transcript, upserts them and
// stores a new snapshot.
func (o *TurnOrchestrator) RebuildGraph(ctx context.Context, conversationID int64) (*RebuildResult, error) {
	t := newTurn(uuid.New().String(), TurnModeRebuild, o.deps.Logger, o.deps.Metrics)

	if conversationID <= 0 {
		return nil, t.fail(pkgerrors.NewValidationError("conversation_id must be a positive integer"))
	}

	unlock, err := o.deps.Locker.Lock(ctx, conversationID)
	if err != nil {
		return nil, t.fail(lockError(conversationID, err))
	}
	defer unlock()

	conv, err := o.deps.Repository.GetByID(ctx, conversationID)
	if err != nil {
		return nil, t.fail(err)
	}

	var records []valueobjects.TopicRecord
	_ = o.trace(ctx, "extract_topics", func(ctx context.Context) error {
		records = o.deps.Completion.ExtractTopics(ctx, conv.Transcript())
		return nil
	})
	t.advance(TurnStateTopicsExtracted, zap.Int("records", len(records)))

	graph := o.upsert(ctx, records, conversationID)
	t.advance(TurnStateGraphUpserted, zap.Int("nodes", len(graph.Nodes)))

	snapshot, err := o.deps.Repository.CreateSnapshot(ctx, conversationID, graph)
	if err != nil {
		return nil, t.fail(err)
	}
	t.advance(TurnStateSnapshotSaved, zap.Int64("snapshot_id", snapshot.ID()))

	result := &RebuildResult{
		ConversationID: conversationID,
		SnapshotID:     snapshot.ID(),
		Graph:          graph,
		Warnings:       []string{},
	}
	if graph.HasError() {
		result.Warnings = append(result.Warnings, WarningGraphUpsert)
	}
	t.complete(result.Warnings)

	queries.InvalidateConversation(ctx, o.deps.Cache, o.deps.Logger, conv.UserID(), conversationID)
	o.publish(ctx, events.NewKnowledgeGraphRebuilt(conversationID, snapshot.ID(), len(graph.Nodes), time.Now().UTC()))

	return result, nil
}

func (o *TurnOrchestrator) validateVoice(req VoiceTurnRequest) error {
	cfg := o.deps.DomainConfig
	if len(req.Audio) == 0 {
		return pkgerrors.NewValidationError("no audio file provided")
	}
	if int64(len(req.Audio)) > cfg.MaxAudioBytes {
		return pkgerrors.NewValidationError(fmt.Sprintf("audio exceeds maximum size of %d bytes", cfg.MaxAudioBytes))
	}
	if !cfg.IsAllowedAudioType(req.Metadata.ContentType) {
		return pkgerrors.NewValidationError(fmt.Sprintf("unsupported audio content type %q", req.Metadata.ContentType))
	}
	return validateTarget(req.UserID, req.ConversationID)
}

func validateTarget(userID string, conversationID int64) error {
	if conversationID < 0 {
		return pkgerrors.NewValidationError("conversation_id must be a positive integer")
	}
	if conversationID == 0 && strings.TrimSpace(userID) == "" {
		return pkgerrors.NewValidationError("user_id is required to start a conversation")
	}
	return nil
}

func lockError(conversationID int64, err error) error {
	if pkgerrors.IsAppError(err) {
		return err
	}
	return pkgerrors.NewConflictError(fmt.Sprintf("conversation %d is busy", conversationID)).WithCause(err)
}

func (o *TurnOrchestrator) warn(t *turn, result *TurnResult, warning string, err error) {
	result.Warnings = append(result.Warnings, warning)
	t.logger.Warn("Turn step degraded",
		zap.String("stage", string(t.state)),
		zap.String("warning", warning),
		zap.Int64("conversation_id", result.ConversationID),
		zap.Error(err),
	)
}

func (o *TurnOrchestrator) trace(ctx context.Context, name string, fn func(context.Context) error) error {
	if o.deps.Tracer == nil {
		return fn(ctx)
	}
	return o.deps.Tracer.TraceFunction(ctx, name, fn)
}

func (o *TurnOrchestrator) publish(ctx context.Context, event events.DomainEvent) {
	if o.deps.Publisher == nil {
		return
	}
	if err := o.deps.Publisher.Publish(ctx, event); err != nil {
		o.deps.Logger.Warn("Failed to publish event",
			zap.String("event_type", event.GetEventType()),
			zap.Error(err),
		)
	}
}
