package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatservice "voicebot/internal/service/chat"
	voiceservice "voicebot/internal/service/voice"
)

const (
	wsReadDeadline = 60 * time.Second
	wsPingPeriod   = 54 * time.Second
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// audioMessage carries one recorded chunk; AudioData is base64 on the wire.
type audioMessage struct {
	AudioData []byte `json:"audioData"`
	MimeType  string `json:"mimeType"`
	IsFinal   bool   `json:"isFinal"`
}

type textMessage struct {
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		// CORS is open for the HTTP surface; mirror that here.
		return true
	},
}

// wsConn serializes writes; the ping loop and event sends share the socket.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// handleWebSocket runs voice round trips over a single connection: the client
// streams audio chunks, the server answers with transcript, reply, and the
// published audio URL.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	raw, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}

	log.Printf("[ws] connection opened session=%s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	raw.SetReadDeadline(time.Now().Add(wsReadDeadline))
	raw.SetPongHandler(func(string) error {
		raw.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})
	go h.pingLoop(ctx, conn)

	h.sendEvent(conn, sessionID, "connected", nil)

	var buffer bytes.Buffer
	mimeHint := ""

	for {
		var msg inboundMessage
		if err := raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error session=%s: %v", sessionID, err)
			}
			return
		}
		raw.SetReadDeadline(time.Now().Add(wsReadDeadline))

		switch msg.Type {
		case "audio":
			var audio audioMessage
			if err := json.Unmarshal(msg.Data, &audio); err != nil {
				h.sendError(conn, sessionID, "invalid audio payload")
				continue
			}
			buffer.Write(audio.AudioData)
			if audio.MimeType != "" {
				mimeHint = audio.MimeType
			}
			if audio.IsFinal {
				h.processBufferedAudio(ctx, conn, sessionID, buffer.Bytes(), mimeHint)
				buffer.Reset()
			}
		case "text":
			var text textMessage
			if err := json.Unmarshal(msg.Data, &text); err != nil {
				h.sendError(conn, sessionID, "invalid text payload")
				continue
			}
			h.processText(ctx, conn, sessionID, text.Text)
		default:
			h.sendError(conn, sessionID, "unsupported message type: "+msg.Type)
		}
	}
}

func (h *Handler) processBufferedAudio(ctx context.Context, conn *wsConn, sessionID string, raw []byte, mimeHint string) {
	result, err := h.voiceSvc.HandleAudio(ctx, sessionID, raw, mimeHint)
	if err != nil {
		if errors.Is(err, voiceservice.ErrEmptyTranscript) {
			h.sendError(conn, sessionID, "could not transcribe audio")
			return
		}
		log.Printf("[ws] voice round trip failed session=%s: %v", sessionID, err)
		h.sendError(conn, sessionID, "failed to process voice input")
		return
	}

	h.sendEvent(conn, sessionID, "transcript", map[string]interface{}{"text": result.Transcript})
	h.sendEvent(conn, sessionID, "reply", map[string]interface{}{"text": result.Reply})
	if result.AudioURL != "" {
		h.sendEvent(conn, sessionID, "audio", map[string]interface{}{"url": result.AudioURL})
	}
}

func (h *Handler) processText(ctx context.Context, conn *wsConn, sessionID, text string) {
	result, err := h.chatSvc.HandleText(ctx, sessionID, text)
	if err != nil {
		if errors.Is(err, chatservice.ErrEmptyMessage) {
			h.sendError(conn, sessionID, "message is required")
			return
		}
		log.Printf("[ws] chat round trip failed session=%s: %v", sessionID, err)
		h.sendError(conn, sessionID, "failed to process message")
		return
	}
	h.sendEvent(conn, sessionID, "reply", map[string]interface{}{"text": result.Reply})
}

func (h *Handler) sendEvent(conn *wsConn, sessionID, event string, data interface{}) {
	msg := outgoingMessage{
		Type:      event,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.writeJSON(msg); err != nil {
		log.Printf("[ws] write failed session=%s: %v", sessionID, err)
	}
}

func (h *Handler) sendError(conn *wsConn, sessionID, message string) {
	h.sendEvent(conn, sessionID, "error", map[string]string{"message": message})
}

func (h *Handler) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
