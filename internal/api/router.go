package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter creates and configures a chi router with all application routes.
func NewRouter(chatHandler *ChatHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/swagger/*", httpSwagger.WrapHandler)

	// Liveness probe for container orchestration.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Standard JSON routes get a request timeout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/settings", chatHandler.HandleGetSettings)
			r.Post("/settings", chatHandler.HandleSaveSettings)

			r.Get("/sessions/{sessionID}/messages", chatHandler.HandleGetMessages)
			r.Get("/sessions/{sessionID}/groups", chatHandler.HandleListGroups)
		})

		// The streaming route must not have a timeout; it holds the
		// connection open for the whole generation.
		r.Group(func(r chi.Router) {
			r.Post("/sessions/{sessionID}/messages", chatHandler.HandleSendMessage)
		})
	})

	return r
}
