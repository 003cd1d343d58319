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

	"github.com/jackc/pgx/v5/pgxpool"

	"chatportal-backend/internal/analysis"
	"chatportal-backend/internal/api"
	"chatportal-backend/internal/config"
	"chatportal-backend/internal/handlers"
	"chatportal-backend/internal/integrations"
	"chatportal-backend/internal/llm"
	"chatportal-backend/internal/search"
	"chatportal-backend/internal/services"
	"chatportal-backend/internal/store"
	"chatportal-backend/internal/store/memory"
	"chatportal-backend/internal/store/postgres"
	"chatportal-backend/internal/suggestions"
)

func main() {
	log.Println("Starting Chat Portal Backend...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Initialize the store: Postgres when configured, memory otherwise.
	var st store.Store
	if cfg.DatabaseURL != "" {
		dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dbCancel()

		dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("FATAL: Unable to create database connection pool: %v\n", err)
		}
		defer dbpool.Close()

		if err := dbpool.Ping(dbCtx); err != nil {
			log.Fatalf("FATAL: Unable to ping database: %v\n", err)
		}
		log.Println("Database connection pool established and pinged successfully.")

		pgStore := postgres.NewPostgresStore(dbpool)
		if err := pgStore.EnsureSchema(dbCtx); err != nil {
			log.Fatalf("FATAL: Unable to prepare database schema: %v", err)
		}
		st = pgStore
		log.Println("Postgres store initialized.")
	} else {
		st = memory.New()
		log.Println("WARN: In-memory store initialized; data will not survive a restart.")
	}

	// 3. Choose the chat provider: Ollama, then OpenAI, then the canned responder.
	ollama := llm.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaEmbedModel, cfg.CapabilityTimeout)
	candidates := []llm.Provider{ollama}
	var openai *llm.OpenAIClient
	if cfg.OpenAIKey != "" {
		openai = llm.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIEmbedModel, cfg.CapabilityTimeout)
		candidates = append(candidates, openai)
	}
	candidates = append(candidates, llm.NewMockResponder())

	probeCtx, probeCancel := context.WithTimeout(context.Background(), cfg.CapabilityTimeout)
	selection, err := llm.Select(probeCtx, nil, candidates...)
	probeCancel()
	if err != nil {
		log.Fatalf("FATAL: No chat provider available: %v", err)
	}
	log.Printf("Chat provider selected: %s (tried %d)", selection.Name(), len(selection.Tried))

	// Embedding tiers: remote when an API key is configured, local when Ollama answered.
	var remote, local llm.Embedder
	if openai != nil {
		remote = openai
	}
	if selection.Healthy(ollama.Name()) {
		local = ollama
	}

	// 4. Core components
	generative := selection.Generative()
	analyzer := analysis.NewAnalyzer(generative, cfg.CapabilityTimeout, nil)
	scorer := search.NewScorer(remote, local, cfg.CapabilityTimeout, nil)
	engine := search.NewEngine(scorer, generative, cfg.CapabilityTimeout, nil)
	log.Println("Analyzer, scorer and query engine initialized.")

	// --- Initialize Integration Registry ---
	publishers := integrations.NewRegistry(nil)
	if cfg.SlackBotToken != "" && cfg.SlackChannelID != "" {
		slackPub, err := integrations.NewSlackPublisher(cfg.SlackBotToken, cfg.SlackChannelID)
		if err != nil {
			log.Fatalf("FATAL: Failed to create Slack publisher: %v", err)
		}
		verifyCtx, verifyCancel := context.WithTimeout(context.Background(), cfg.CapabilityTimeout)
		if who, err := slackPub.Verify(verifyCtx); err != nil {
			log.Printf("WARN: Slack token check failed, summaries may not post: %v", err)
		} else {
			log.Printf("Slack publisher connected to %s", who)
		}
		verifyCancel()
		publishers.Register(slackPub)
	}
	if cfg.NotionToken != "" && cfg.NotionParentPageID != "" {
		notionPub, err := integrations.NewNotionPublisher(cfg.NotionToken, cfg.NotionParentPageID, nil)
		if err != nil {
			log.Fatalf("FATAL: Failed to create Notion publisher: %v", err)
		}
		publishers.Register(notionPub)
	}
	log.Printf("IntegrationRegistry initialized with publishers: %v", publishers.Names())

	// --- Initialize Services ---
	authService := services.NewAuthService(st, cfg)
	log.Println("AuthService initialized.")
	conversationService := services.NewConversationService(services.ConversationDeps{
		Store:       st,
		Chat:        selection.Provider,
		Analyzer:    analyzer,
		Engine:      engine,
		Suggestions: suggestions.NewService(),
		Publishers:  publishers,
		Timeout:     cfg.CapabilityTimeout,
	})
	log.Println("ConversationService initialized.")

	// --- Initialize Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	conversationHandler := handlers.NewConversationHandler(conversationService)
	log.Println("Handlers initialized.")

	// 5. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		AuthHandler:         authHandler,
		ConversationHandler: conversationHandler,
		Config:              cfg,
	})
	log.Println("HTTP router configured.")

	// 6. Configure and Start HTTP Server
	server := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 5 * time.Second,
		// Chat and query calls wait on model providers.
		WriteTimeout: cfg.CapabilityTimeout*2 + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting and listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Could not listen on %s: %v\n", cfg.HTTPPort, err)
		}
		log.Println("Server listener routine stopped.")
	}()

	<-stopChan
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Server graceful shutdown failed: %v", err)
		log.Fatal("Forcing shutdown due to error.")
	}

	log.Println("Server shutdown complete.")
}
