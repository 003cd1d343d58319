package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chatportal-backend/internal/config"
	"chatportal-backend/internal/handlers"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	AuthHandler         *handlers.AuthHandler
	ConversationHandler *handlers.ConversationHandler
	Config              *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	if deps.AuthHandler == nil || deps.ConversationHandler == nil {
		panic("handler dependency is nil in router setup")
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Generous enough for a slow model answering a chat or query.
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/signup", deps.AuthHandler.HandleSignup)
		r.Post("/login", deps.AuthHandler.HandleLogin)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret))

		h := deps.ConversationHandler
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.HandleList)
			r.Post("/chat", h.HandleChat)
			r.Post("/query", h.HandleQuery)
			r.Get("/trending", h.HandleTrending)
			r.Get("/suggestions", h.HandleTopicSuggestions)

			r.Get("/{conversationID}", h.HandleGet)
			r.Delete("/{conversationID}", h.HandleDelete)
			r.Post("/{conversationID}/end", h.HandleEnd)
			r.Get("/{conversationID}/related", h.HandleRelated)
		})
		r.Get("/messages", h.HandleListMessages)
		r.Get("/queries", h.HandleListQueries)
	})

	return r
}
