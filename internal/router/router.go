package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"annadata-backend/internal/handlers"
	"annadata-backend/internal/middleware"
	"annadata-backend/internal/websocket"
)

func New(
	chatHandler *handlers.ChatHandler,
	weatherHandler *handlers.WeatherHandler,
	schemesHandler *handlers.SchemesHandler,
	voiceHandler *handlers.VoiceHandler,
	healthHandler *handlers.HealthHandler,
	wsHub *websocket.Hub,
	limiter *middleware.RateLimiter,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(middleware.Recover)

	r.Get("/health", healthHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)

		r.Post("/chat", chatHandler.Chat)
		r.Post("/weather", weatherHandler.Weather)
		r.Post("/schemes", schemesHandler.Schemes)
		r.Post("/voice-assistant", voiceHandler.VoiceAssistant)
		r.Post("/voice-assistant/", voiceHandler.VoiceAssistant)

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
