package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"annadata-backend/internal/config"
	"annadata-backend/internal/database"
	"annadata-backend/internal/handlers"
	"annadata-backend/internal/middleware"
	"annadata-backend/internal/repository"
	"annadata-backend/internal/router"
	"annadata-backend/internal/services"
	"annadata-backend/internal/websocket"
)

func main() {
	log.Println("🚀 Starting AnnaData Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")
	if cfg.OpenRouterAPIKey == "" {
		log.Println("✗ OPENROUTER_API_KEY not set, /chat and voice replies will report a config error")
	}
	if cfg.OpenWeatherAPIKey == "" {
		log.Println("✗ OPENWEATHER_API_KEY not set, /weather will report a config error")
	}

	// ──── Step 2: Initialize Redis Weather Cache (optional) ────
	var weatherCache *services.RedisWeatherCache
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Printf("✗ Redis connection failed, weather cache disabled: %v", err)
		} else {
			defer redisClient.Close()
			weatherCache = services.NewRedisWeatherCache(redisClient, cfg.WeatherCacheTTL)
			log.Println("✓ Redis weather cache connected")
		}
	}

	// ──── Step 3: Initialize Gemini Client ────
	var geminiService *services.GeminiService
	if cfg.GeminiAPIKey != "" {
		gs, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEmbeddingModel, cfg.GeminiConcurrentReqs)
		if err != nil {
			log.Printf("✗ Gemini client initialization failed: %v", err)
		} else {
			geminiService = gs
			defer geminiService.Close()
			log.Printf("✓ Gemini client initialized (%s, %s)", cfg.GeminiModel, cfg.GeminiEmbeddingModel)
		}
	} else {
		log.Println("✗ GEMINI_API_KEY not set, Gemini transcription and scheme search disabled")
	}

	// ──── Step 4: Initialize Transcriber ────
	var transcriber services.Transcriber
	switch cfg.Transcriber {
	case "google":
		st, err := services.NewSpeechTranscriber(context.Background())
		if err != nil {
			log.Printf("✗ Google Speech client initialization failed: %v", err)
		} else {
			defer st.Close()
			transcriber = st
			log.Println("✓ Google Speech transcriber ready")
		}
	default:
		if geminiService != nil {
			transcriber = geminiService
			log.Println("✓ Gemini transcriber ready")
		}
	}

	// ──── Step 5: Load Schemes Index ────
	var embedder services.QueryEmbedder
	if geminiService != nil {
		embedder = geminiService
	}
	schemeRetriever := services.UnloadedSchemeRetriever()
	store, err := repository.OpenSchemeStore(cfg.SchemesDBURL)
	if err != nil {
		log.Printf("✗ Schemes store unavailable: %v", err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		schemeRetriever = services.LoadSchemeRetriever(ctx, store, embedder, cfg.SchemesMinScore)
		cancel()
		store.Close()
	}
	if schemeRetriever.Ready() {
		log.Printf("✓ Schemes index loaded (%d chunks)", schemeRetriever.Len())
	} else {
		log.Println("✗ Schemes index not loaded, /schemes will answer with the not-loaded marker")
	}

	// ──── Initialize Services ────
	completionClient := services.NewCompletionClient(
		cfg.OpenRouterAPIKey,
		cfg.OpenRouterBaseURL,
		cfg.ChatModel,
		cfg.AppURL,
		cfg.AppTitle,
		cfg.UpstreamTimeout,
	)
	// A nil *RedisWeatherCache must not reach the client as a non-nil interface.
	weatherClient := services.NewWeatherClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherURL, cfg.UpstreamTimeout, nil)
	if weatherCache != nil {
		weatherClient = services.NewWeatherClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherURL, cfg.UpstreamTimeout, weatherCache)
	}
	synthesizer := services.NewTranslateTTS(cfg.TTSURL, cfg.UpstreamTimeout)
	voicePipeline := services.NewVoicePipeline(transcriber, completionClient, synthesizer, cfg.VoiceLanguage)
	if cfg.Env == "development" {
		voicePipeline.OnStage = func(s services.Stage) { log.Printf("voice: stage %s", s) }
	}

	// ──── Step 6: Start WebSocket Hub ────
	maxUploadBytes := int64(cfg.MaxUploadMB) << 20
	// base64 inflates audio by 4/3, plus room for the JSON envelope.
	wsHub := websocket.NewHub(voicePipeline, maxUploadBytes*4/3+4096)
	log.Println("✓ WebSocket hub started")

	// ──── Initialize Handlers ────
	chatHandler := handlers.NewChatHandler(completionClient)
	weatherHandler := handlers.NewWeatherHandler(weatherClient)
	schemesHandler := handlers.NewSchemesHandler(schemeRetriever, cfg.SchemesTopK)
	voiceHandler := handlers.NewVoiceHandler(voicePipeline, maxUploadBytes)
	healthHandler := handlers.NewHealthHandler(schemeRetriever, voicePipeline, wsHub)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	defer limiter.Stop()

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		chatHandler,
		weatherHandler,
		schemesHandler,
		voiceHandler,
		healthHandler,
		wsHub,
		limiter,
	)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// A voice round-trip makes three sequential upstream calls.
		WriteTimeout: 3*cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		wsHub.CloseAll()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ AnnaData Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
