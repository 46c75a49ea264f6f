// Package voice composes the audio round trip: transcode the upload, run it
// through transcription, the chat orchestrator, and speech synthesis.
package voice

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"voicebot/internal/audio"
	"voicebot/internal/gateway"
	"voicebot/internal/model/chat"
	chatservice "voicebot/internal/service/chat"
)

var (
	// ErrEmptyAudio rejects uploads with no audio bytes.
	ErrEmptyAudio = errors.New("audio is required")
	// ErrEmptyText rejects synthesis requests with no text.
	ErrEmptyText = errors.New("text is required")
	// ErrEmptyTranscript means transcription succeeded but yielded nothing
	// usable. A client-input failure, not a server fault.
	ErrEmptyTranscript = errors.New("could not transcribe audio")
)

// Publisher stores synthesized audio and returns a retrievable URL.
type Publisher interface {
	Put(data []byte, ext string) (string, error)
}

// Orchestrator runs the voice pipeline. Each stage runs strictly after the
// previous; nothing is retried automatically.
type Orchestrator struct {
	transcoder    audio.Transcoder
	transcription gateway.Transcription
	synthesis     gateway.Synthesis
	chat          *chatservice.Orchestrator
	blobs         Publisher
	timeout       time.Duration
}

// NewOrchestrator wires the voice pipeline stages. timeout bounds each
// gateway call independently (zero disables the bound).
func NewOrchestrator(
	transcoder audio.Transcoder,
	transcription gateway.Transcription,
	synthesis gateway.Synthesis,
	chatSvc *chatservice.Orchestrator,
	blobs Publisher,
	timeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		transcoder:    transcoder,
		transcription: transcription,
		synthesis:     synthesis,
		chat:          chatSvc,
		blobs:         blobs,
		timeout:       timeout,
	}
}

// Result is the outcome of one voice round trip. AudioURL is best-effort and
// empty when synthesis was skipped or failed.
type Result struct {
	Transcript string
	Reply      string
	AudioURL   string
	Recent     []chat.Turn
}

// HandleAudio processes one voice message. Transcode and transcription
// failures abort the pipeline; completion failure degrades to the fallback
// text with synthesis skipped; synthesis failure only drops the audio URL.
func (o *Orchestrator) HandleAudio(ctx context.Context, sessionID string, raw []byte, mimeHint string) (Result, error) {
	if len(raw) == 0 {
		return Result{}, ErrEmptyAudio
	}

	canonical, err := o.transcoder.Transcode(ctx, raw, mimeHint)
	if err != nil {
		return Result{}, err
	}

	transcript, err := o.transcribe(ctx, canonical)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(transcript) == "" {
		return Result{}, ErrEmptyTranscript
	}

	chatResult, err := o.chat.HandleText(ctx, sessionID, transcript)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Transcript: transcript,
		Reply:      chatResult.Reply,
		Recent:     chatResult.Recent,
	}

	// Synthesis is only attempted for a genuine model reply, never for the
	// fallback text.
	if chatResult.Fallback {
		return result, nil
	}

	audioBytes, err := o.Speak(ctx, chatResult.Reply)
	if err != nil {
		log.Printf("[voice] synthesis failed for session=%s: %v", sessionID, err)
		return result, nil
	}

	url, err := o.blobs.Put(audioBytes, ".mp3")
	if err != nil {
		log.Printf("[voice] failed to publish audio for session=%s: %v", sessionID, err)
		return result, nil
	}

	result.AudioURL = url
	return result, nil
}

// Speak synthesizes arbitrary text to MP3 bytes. Unlike HandleAudio, a
// synthesis failure here propagates to the caller.
func (o *Orchestrator) Speak(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	callCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return o.synthesis.Synthesize(callCtx, text)
}

func (o *Orchestrator) transcribe(ctx context.Context, canonical []byte) (string, error) {
	callCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return o.transcription.Transcribe(callCtx, canonical)
}
