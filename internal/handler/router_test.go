package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voicebot/internal/audio"
	"voicebot/internal/blob"
	"voicebot/internal/gateway"
	"voicebot/internal/handler"
	chathandler "voicebot/internal/handler/chat"
	voicehandler "voicebot/internal/handler/voice"
	chatservice "voicebot/internal/service/chat"
	voiceservice "voicebot/internal/service/voice"
	"voicebot/internal/store"
)

// newServer assembles the full router with unconfigured gateways, the same
// shape cmd/api builds when no credentials are present.
func newServer(t *testing.T) (http.Handler, string) {
	t.Helper()

	convs := store.New(store.Options{Capacity: 8})
	t.Cleanup(convs.Close)

	audioDir := t.TempDir()
	blobs, err := blob.New(blob.Options{Dir: audioDir})
	if err != nil {
		t.Fatalf("blob.New err: %v", err)
	}
	t.Cleanup(blobs.Close)

	chatSvc := chatservice.NewOrchestrator(convs, gateway.Unconfigured{}, "be helpful", time.Second)
	voiceSvc := voiceservice.NewOrchestrator(
		audio.NewFFmpeg("", time.Second),
		gateway.Unconfigured{},
		gateway.Unconfigured{},
		chatSvc,
		blobs,
		time.Second,
	)

	router := handler.NewRouter(
		chathandler.New(chatSvc),
		voicehandler.New(voiceSvc, chatSvc),
		handler.StaticDirs{Audio: audioDir},
	)
	return router, audioDir
}

func TestPreflightAllowsAllOrigins(t *testing.T) {
	router, _ := newServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://example.com")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("expected empty preflight body, got %q", rr.Body.String())
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow-origin: %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Fatalf("unexpected allow-methods: %q", got)
	}
}

func TestChatRejectsNonPost(t *testing.T) {
	router, _ := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestChatEndToEndWithoutCredentials(t *testing.T) {
	router, _ := newServer(t)

	body := bytes.NewBufferString(`{"message":"hello","sessionId":"sess"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Reply string `json:"reply"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if resp.Reply != chatservice.FallbackReply {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestGeneratedAudioIsServed(t *testing.T) {
	router, audioDir := newServer(t)

	if err := os.WriteFile(filepath.Join(audioDir, "reply.mp3"), []byte("mp3-bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile err: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/audio/reply.mp3", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if rr.Body.String() != "mp3-bytes" {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
}
