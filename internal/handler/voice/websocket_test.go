package voice_test

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	chatservice "voicebot/internal/service/chat"
)

type wsEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// wsAudioPayload mirrors the wire shape; AudioData is base64 on the wire.
type wsAudioPayload struct {
	AudioData []byte `json:"audioData"`
	MimeType  string `json:"mimeType,omitempty"`
	IsFinal   bool   `json:"isFinal"`
}

type wsEvent struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"sessionId"`
	Data      map[string]interface{} `json:"data"`
}

func dialWS(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/voice/ws/sess"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev wsEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event err: %v", err)
	}
	return ev
}

func expectEvent(t *testing.T, conn *websocket.Conn, eventType string) wsEvent {
	t.Helper()

	ev := readEvent(t, conn)
	if ev.Type != eventType {
		t.Fatalf("expected %q event, got %q (data=%v)", eventType, ev.Type, ev.Data)
	}
	return ev
}

func TestWebSocketVoiceRoundTrip(t *testing.T) {
	f := newFixture(t)
	conn := dialWS(t, f)

	ev := expectEvent(t, conn, "connected")
	if ev.SessionID != "sess" {
		t.Fatalf("unexpected sessionId: %q", ev.SessionID)
	}

	err := conn.WriteJSON(wsEnvelope{Type: "audio", Data: wsAudioPayload{
		AudioData: []byte("raw-audio"),
		MimeType:  "audio/webm",
		IsFinal:   true,
	}})
	if err != nil {
		t.Fatalf("write audio err: %v", err)
	}

	if ev := expectEvent(t, conn, "transcript"); ev.Data["text"] != "hello" {
		t.Fatalf("unexpected transcript: %v", ev.Data)
	}
	if ev := expectEvent(t, conn, "reply"); ev.Data["text"] != "hi there" {
		t.Fatalf("unexpected reply: %v", ev.Data)
	}
	if ev := expectEvent(t, conn, "audio"); ev.Data["url"] != "/audio/reply.mp3" {
		t.Fatalf("unexpected audio url: %v", ev.Data)
	}

	if string(f.transcription.got) != "raw-audio" {
		t.Fatalf("transcription received %q, want decoded audio", f.transcription.got)
	}
	if string(f.publisher.data) != "mp3-bytes" {
		t.Fatalf("published bytes %q, want synthesis output", f.publisher.data)
	}
}

func TestWebSocketBuffersChunksUntilFinal(t *testing.T) {
	f := newFixture(t)
	conn := dialWS(t, f)
	expectEvent(t, conn, "connected")

	chunks := []wsAudioPayload{
		{AudioData: []byte("ab"), MimeType: "audio/webm"},
		{AudioData: []byte("cd"), IsFinal: true},
	}
	for _, chunk := range chunks {
		if err := conn.WriteJSON(wsEnvelope{Type: "audio", Data: chunk}); err != nil {
			t.Fatalf("write chunk err: %v", err)
		}
	}

	expectEvent(t, conn, "transcript")
	if string(f.transcription.got) != "abcd" {
		t.Fatalf("transcription received %q, want concatenated chunks", f.transcription.got)
	}
}

func TestWebSocketFallbackOmitsAudioEvent(t *testing.T) {
	f := newFixture(t)
	f.completion.err = errors.New("down")
	f.completion.reply = ""
	conn := dialWS(t, f)
	expectEvent(t, conn, "connected")

	err := conn.WriteJSON(wsEnvelope{Type: "audio", Data: wsAudioPayload{
		AudioData: []byte("raw-audio"),
		IsFinal:   true,
	}})
	if err != nil {
		t.Fatalf("write audio err: %v", err)
	}

	expectEvent(t, conn, "transcript")
	if ev := expectEvent(t, conn, "reply"); ev.Data["text"] != chatservice.FallbackReply {
		t.Fatalf("unexpected reply: %v", ev.Data)
	}

	// The next event must not be an audio URL. A follow-up text message gives
	// the server something to answer, so the read below would surface a stray
	// audio event first.
	if err := conn.WriteJSON(wsEnvelope{Type: "text", Data: map[string]string{"text": "still there?"}}); err != nil {
		t.Fatalf("write text err: %v", err)
	}
	expectEvent(t, conn, "reply")
}

func TestWebSocketTextMessage(t *testing.T) {
	f := newFixture(t)
	conn := dialWS(t, f)
	expectEvent(t, conn, "connected")

	if err := conn.WriteJSON(wsEnvelope{Type: "text", Data: map[string]string{"text": "hi"}}); err != nil {
		t.Fatalf("write text err: %v", err)
	}

	if ev := expectEvent(t, conn, "reply"); ev.Data["text"] != "hi there" {
		t.Fatalf("unexpected reply: %v", ev.Data)
	}
}

func TestWebSocketEmptyTextMessage(t *testing.T) {
	f := newFixture(t)
	conn := dialWS(t, f)
	expectEvent(t, conn, "connected")

	if err := conn.WriteJSON(wsEnvelope{Type: "text", Data: map[string]string{"text": "   "}}); err != nil {
		t.Fatalf("write text err: %v", err)
	}

	if ev := expectEvent(t, conn, "error"); ev.Data["message"] != "message is required" {
		t.Fatalf("unexpected error payload: %v", ev.Data)
	}
}

func TestWebSocketUnsupportedMessageType(t *testing.T) {
	f := newFixture(t)
	conn := dialWS(t, f)
	expectEvent(t, conn, "connected")

	if err := conn.WriteJSON(wsEnvelope{Type: "bogus"}); err != nil {
		t.Fatalf("write err: %v", err)
	}

	expectEvent(t, conn, "error")
}
