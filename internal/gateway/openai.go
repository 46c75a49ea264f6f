package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"voicebot/internal/model/chat"
)

// OpenAIConfig carries the provider settings for all three capabilities.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	MaxTokens   int
	Temperature float32
	ASRModel    string
	TTSModel    string
	TTSVoice    string
}

// OpenAI implements Completion, Transcription and Synthesis against the
// OpenAI API (chat completions, Whisper, speech).
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAI builds a gateway from the provided configuration.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
}

// Complete sends the turns as-is; the system turn is expected first.
func (g *OpenAI) Complete(ctx context.Context, turns []chat.Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.cfg.ChatModel,
		Messages:    messages,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		return "", upstream(StageCompletion, err)
	}
	if len(resp.Choices) == 0 {
		return "", upstream(StageCompletion, errors.New("completion returned no choices"))
	}

	return resp.Choices[0].Message.Content, nil
}

// Transcribe runs Whisper over MP3 audio produced by the transcoder.
func (g *OpenAI) Transcribe(ctx context.Context, audio []byte) (string, error) {
	resp, err := g.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    g.cfg.ASRModel,
		FilePath: "audio.mp3",
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", upstream(StageTranscription, err)
	}
	return resp.Text, nil
}

// Synthesize renders text to MP3 with the configured voice.
func (g *OpenAI) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := g.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(g.cfg.TTSModel),
		Input: text,
		Voice: openai.SpeechVoice(g.cfg.TTSVoice),
	})
	if err != nil {
		return nil, upstream(StageSynthesis, err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, upstream(StageSynthesis, err)
	}
	return data, nil
}
