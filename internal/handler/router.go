package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chathandler "voicebot/internal/handler/chat"
	voicehandler "voicebot/internal/handler/voice"
	middlewarePkg "voicebot/internal/middleware"
	"voicebot/pkg/utils"
)

// StaticDirs names the directories the router serves alongside the API.
type StaticDirs struct {
	// Public holds the client bundle, served at the site root.
	Public string
	// Audio holds generated speech artifacts, served under /audio.
	Audio string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(chatHandler *chathandler.Handler, voiceHandler *voicehandler.Handler, dirs StaticDirs) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		voiceHandler.RegisterRoutes(api)
	})

	if dirs.Audio != "" {
		r.Handle("/audio/*", http.StripPrefix("/audio/", http.FileServer(http.Dir(dirs.Audio))))
	}
	if dirs.Public != "" {
		r.Handle("/*", http.FileServer(http.Dir(dirs.Public)))
	}

	return r
}
