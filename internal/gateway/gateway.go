// Package gateway defines capability interfaces over the third-party AI
// services the bot depends on, so orchestrators never see provider schemas.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"voicebot/internal/model/chat"
)

// Completion produces a reply for a conversation context.
type Completion interface {
	Complete(ctx context.Context, turns []chat.Turn) (string, error)
}

// Transcription converts canonical audio bytes into text.
type Transcription interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesis converts text into MP3 audio bytes.
type Synthesis interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Stage names the upstream capability an error came from.
type Stage string

const (
	StageCompletion    Stage = "completion"
	StageTranscription Stage = "transcription"
	StageSynthesis     Stage = "synthesis"
)

// UpstreamError wraps any failure of a third-party service call. The stage
// decides whether the caller recovers locally or propagates.
type UpstreamError struct {
	Stage Stage
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s gateway: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(stage Stage, err error) error {
	return &UpstreamError{Stage: stage, Err: err}
}

var errNotConfigured = errors.New("no provider credentials configured")

// Unconfigured is the stand-in used when no provider credentials are present.
// Every call fails with an UpstreamError, which lets the chat orchestrator's
// fallback policy keep the server usable end to end.
type Unconfigured struct{}

func (Unconfigured) Complete(context.Context, []chat.Turn) (string, error) {
	return "", upstream(StageCompletion, errNotConfigured)
}

func (Unconfigured) Transcribe(context.Context, []byte) (string, error) {
	return "", upstream(StageTranscription, errNotConfigured)
}

func (Unconfigured) Synthesize(context.Context, string) ([]byte, error) {
	return nil, upstream(StageSynthesis, errNotConfigured)
}
