package sagas

import (
	"time"

	"go.uber.org/zap"
)

// TurnState is the position of a turn in the pipeline
type TurnState string

const (
	TurnStateReceived            TurnState = "RECEIVED"
	TurnStateTranscribed         TurnState = "TRANSCRIBED"
	TurnStateResponseGenerated   TurnState = "RESPONSE_GENERATED"
	TurnStateConversationSaved   TurnState = "CONVERSATION_SAVED"
	TurnStateConversationUpdated TurnState = "CONVERSATION_UPDATED"
	TurnStateTopicsExtracted     TurnState = "TOPICS_EXTRACTED"
	TurnStateGraphUpserted       TurnState = "GRAPH_UPSERTED"
	TurnStateSnapshotSaved       TurnState = "SNAPSHOT_SAVED"
	TurnStateSpeechSynthesized   TurnState = "SPEECH_SYNTHESIZED"
	TurnStateComplete            TurnState = "COMPLETE"
	TurnStateErrored             TurnState = "ERRORED"
)

// IsTerminal reports whether no further transition is possible
func (s TurnState) IsTerminal() bool {
	return s == TurnStateComplete || s == TurnStateErrored
}

// Persisted reports whether the conversation row exists once this state is reached
func (s TurnState) Persisted() bool {
	switch s {
	case TurnStateConversationSaved, TurnStateConversationUpdated, TurnStateTopicsExtracted,
		TurnStateGraphUpserted, TurnStateSnapshotSaved, TurnStateSpeechSynthesized, TurnStateComplete:
		return true
	}
	return false
}

// Turn modes
const (
	TurnModeVoice   = "voice"
	TurnModeText    = "text"
	TurnModeRebuild = "rebuild"
)

type stageMetrics interface {
	ObserveStage(stage string, duration time.Duration)
	RecordTurn(mode, outcome string)
}

// turn tracks one pipeline run and emits a structured event per transition
type turn struct {
	id         string
	mode       string
	state      TurnState
	persisted  bool
	started    time.Time
	transition time.Time
	history    []TurnState
	logger     *zap.Logger
	metrics    stageMetrics
}

func newTurn(id, mode string, logger *zap.Logger, metrics stageMetrics) *turn {
	now := time.Now()
	t := &turn{
		id:         id,
		mode:       mode,
		state:      TurnStateReceived,
		started:    now,
		transition: now,
		history:    []TurnState{TurnStateReceived},
		logger:     logger.With(zap.String("turn_id", id), zap.String("mode", mode)),
		metrics:    metrics,
	}
	t.logger.Debug("Turn stage", zap.String("stage", string(TurnStateReceived)))
	return t
}

func (t *turn) advance(next TurnState, fields ...zap.Field) {
	now := time.Now()
	elapsed := now.Sub(t.transition)
	t.transition = now
	t.state = next
	t.history = append(t.history, next)
	if next.Persisted() {
		t.persisted = true
	}

	t.metrics.ObserveStage(string(next), elapsed)
	t.logger.Debug("Turn stage",
		append([]zap.Field{
			zap.String("stage", string(next)),
			zap.Duration("elapsed", elapsed),
		}, fields...)...,
	)
}

// fail moves the turn to Errored. Only valid before the conversation is persisted.
func (t *turn) fail(err error) error {
	failedAt := t.state
	t.state = TurnStateErrored
	t.history = append(t.history, TurnStateErrored)
	t.metrics.RecordTurn(t.mode, "errored")
	t.logger.Warn("Turn failed",
		zap.String("stage", string(TurnStateErrored)),
		zap.String("failed_after", string(failedAt)),
		zap.Error(err),
	)
	return err
}

func (t *turn) complete(warnings []string) {
	t.advance(TurnStateComplete)
	outcome := "complete"
	if len(warnings) > 0 {
		outcome = "partial"
	}
	t.metrics.RecordTurn(t.mode, outcome)
	t.logger.Info("Turn completed",
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(t.started)),
		zap.Strings("warnings", warnings),
	)
}
