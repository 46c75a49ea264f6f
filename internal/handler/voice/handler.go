package voice

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"voicebot/internal/audio"
	"voicebot/internal/gateway"
	chatservice "voicebot/internal/service/chat"
	voiceservice "voicebot/internal/service/voice"
	"voicebot/pkg/utils"
)

// maxUploadBytes caps voice uploads at 50MB, matching the client contract.
const maxUploadBytes = 50 << 20

// Handler serves the voice round trip, direct synthesis, and the websocket
// voice channel.
type Handler struct {
	voiceSvc *voiceservice.Orchestrator
	chatSvc  *chatservice.Orchestrator
}

// New creates the voice handler. chatSvc is only used by the websocket
// channel for typed messages.
func New(voiceSvc *voiceservice.Orchestrator, chatSvc *chatservice.Orchestrator) *Handler {
	return &Handler{voiceSvc: voiceSvc, chatSvc: chatSvc}
}

// RegisterRoutes mounts the voice routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/voice", h.handleVoice)
	r.Post("/speak", h.handleSpeak)
	r.Get("/voice/ws/{sessionID}", h.handleWebSocket)
}

func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Audio file is required")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "Audio file processing error")
		return
	}

	mimeHint := header.Header.Get("Content-Type")
	if mimeHint == "" {
		mimeHint = filepath.Ext(header.Filename)
	}
	sessionID := r.FormValue("sessionId")

	result, err := h.voiceSvc.HandleAudio(r.Context(), sessionID, raw, mimeHint)
	if err != nil {
		h.respondVoiceError(w, err)
		return
	}

	var audioURL *string
	if result.AudioURL != "" {
		audioURL = &result.AudioURL
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"transcript":   result.Transcript,
		"reply":        result.Reply,
		"audioUrl":     audioURL,
		"conversation": result.Recent,
	})
}

func (h *Handler) respondVoiceError(w http.ResponseWriter, err error) {
	var transcodeErr *audio.TranscodeError
	var upstreamErr *gateway.UpstreamError

	switch {
	case errors.Is(err, voiceservice.ErrEmptyAudio):
		utils.RespondError(w, http.StatusBadRequest, "Audio file is required")
	case errors.Is(err, voiceservice.ErrEmptyTranscript):
		utils.RespondError(w, http.StatusUnprocessableEntity, "Could not transcribe audio. Please try again.")
	case errors.As(err, &transcodeErr):
		log.Printf("[voice] transcode error: %v", err)
		utils.RespondErrorDetail(w, http.StatusInternalServerError, "Failed to convert audio", transcodeErr.Detail)
	case errors.As(err, &upstreamErr):
		log.Printf("[voice] %s error: %v", upstreamErr.Stage, err)
		utils.RespondErrorDetail(w, http.StatusInternalServerError, "Failed to transcribe audio", upstreamErr.Error())
	default:
		log.Printf("[voice] unexpected error: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to process voice input")
	}
}

func (h *Handler) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	data, err := h.voiceSvc.Speak(r.Context(), payload.Text)
	if err != nil {
		if errors.Is(err, voiceservice.ErrEmptyText) {
			utils.RespondError(w, http.StatusBadRequest, "Text is required")
			return
		}
		log.Printf("[voice] speak error: %v", err)
		utils.RespondErrorDetail(w, http.StatusInternalServerError, "Failed to generate speech", err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("[voice] failed to write audio response: %v", err)
	}
}
