package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"voicebot/internal/audio"
	"voicebot/internal/blob"
	"voicebot/internal/config"
	"voicebot/internal/gateway"
	"voicebot/internal/handler"
	chathandler "voicebot/internal/handler/chat"
	voicehandler "voicebot/internal/handler/voice"
	chatservice "voicebot/internal/service/chat"
	voiceservice "voicebot/internal/service/voice"
	"voicebot/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	convs := store.New(store.Options{
		Capacity:    cfg.Session.Capacity,
		IdleTTL:     cfg.Session.IdleTTL,
		SweepPeriod: 5 * time.Minute,
	})
	defer convs.Close()

	blobs, err := blob.New(blob.Options{
		Dir:        cfg.Storage.AudioDir,
		PublicPath: "/audio",
		TTL:        cfg.Storage.AudioTTL,
	})
	if err != nil {
		log.Fatalf("failed to initialize audio storage: %v", err)
	}
	defer blobs.Close()

	completion, transcription, synthesis := buildGateways(ctx, cfg)

	transcoder := audio.NewFFmpeg(cfg.Speech.FFmpegPath, cfg.AI.GatewayTimeout)

	chatSvc := chatservice.NewOrchestrator(convs, completion, cfg.AI.Personality, cfg.AI.GatewayTimeout)
	voiceSvc := voiceservice.NewOrchestrator(transcoder, transcription, synthesis, chatSvc, blobs, cfg.AI.GatewayTimeout)

	router := handler.NewRouter(
		chathandler.New(chatSvc),
		voicehandler.New(voiceSvc, chatSvc),
		handler.StaticDirs{Public: cfg.Server.PublicDir, Audio: blobs.Dir()},
	)

	startServer(ctx, cfg.Server, router)
}

// buildGateways selects provider implementations from configuration, falling
// back to stand-ins that keep the server usable without credentials.
func buildGateways(ctx context.Context, cfg *config.Config) (gateway.Completion, gateway.Transcription, gateway.Synthesis) {
	var (
		completion    gateway.Completion    = gateway.Unconfigured{}
		transcription gateway.Transcription = gateway.Unconfigured{}
		synthesis     gateway.Synthesis     = gateway.Unconfigured{}
	)

	if cfg.AI.OpenAIEnabled() {
		openAI := gateway.NewOpenAI(gateway.OpenAIConfig{
			APIKey:      cfg.AI.APIKey,
			BaseURL:     cfg.AI.BaseURL,
			ChatModel:   cfg.AI.Model,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: float32(cfg.AI.Temperature),
			ASRModel:    cfg.Speech.ASRModel,
			TTSModel:    cfg.Speech.TTSModel,
			TTSVoice:    cfg.Speech.TTSVoice,
		})
		completion = openAI
		transcription = openAI
		synthesis = openAI
		log.Printf("OpenAI gateways initialized (chat=%s asr=%s tts=%s)", cfg.AI.Model, cfg.Speech.ASRModel, cfg.Speech.TTSModel)
	} else {
		log.Println("OPENAI_API_KEY not configured, transcription and synthesis unavailable")
	}

	if cfg.AI.ArkEnabled() {
		ark, err := gateway.NewArkCompletion(ctx, gateway.ArkConfig{
			APIKey:    cfg.AI.Ark.APIKey,
			AccessKey: cfg.AI.Ark.AccessKey,
			SecretKey: cfg.AI.Ark.SecretKey,
			Model:     cfg.AI.Ark.Model,
			BaseURL:   cfg.AI.Ark.BaseURL,
			Region:    cfg.AI.Ark.Region,
		})
		if err != nil {
			log.Printf("warning: failed to initialize ark completion: %v", err)
		} else {
			completion = ark
			log.Printf("Ark completion gateway initialized (model=%s)", cfg.AI.Ark.Model)
		}
	}

	return completion, transcription, synthesis
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Voice bot backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
