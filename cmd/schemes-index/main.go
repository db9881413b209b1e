package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"annadata-backend/internal/config"
	"annadata-backend/internal/indexer"
	"annadata-backend/internal/repository"
	"annadata-backend/internal/services"
	"annadata-backend/internal/worker"
)

func main() {
	cfg := config.Load()

	manifestPath := flag.String("manifest", "schemes/manifest.yaml", "YAML manifest listing scheme documents")
	dbURL := flag.String("db", cfg.SchemesDBURL, "scheme store (sqlite path or postgres:// URL)")
	workers := flag.Int("workers", cfg.GeminiConcurrentReqs, "concurrent embedding workers")
	batch := flag.Int("batch", 50, "chunks per embedding request")
	chunkRunes := flag.Int("chunk", 800, "chunk size in characters")
	overlapRunes := flag.Int("overlap", 100, "chunk overlap in characters")
	flag.Parse()

	log.Println("🚀 Building schemes index...")
	if err := run(cfg, *manifestPath, *dbURL, *workers, *batch, *chunkRunes, *overlapRunes); err != nil {
		log.Fatalf("✗ Index build failed: %v", err)
	}
}

func run(cfg *config.Config, manifestPath, dbURL string, workers, batch, chunkRunes, overlapRunes int) error {
	manifest, err := indexer.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	log.Printf("✓ Manifest loaded (%d documents)", len(manifest.Documents))

	gemini, err := services.NewGeminiService(cfg.RequireGemini(), cfg.GeminiModel, cfg.GeminiEmbeddingModel, workers)
	if err != nil {
		return fmt.Errorf("gemini client: %w", err)
	}
	defer gemini.Close()
	log.Printf("✓ Gemini embedder ready (%s)", cfg.GeminiEmbeddingModel)

	store, err := repository.OpenSchemeStore(dbURL)
	if err != nil {
		return fmt.Errorf("scheme store: %w", err)
	}
	defer store.Close()
	log.Printf("✓ Scheme store opened (%s)", dbURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := indexer.Build(
		ctx,
		manifest,
		services.NewDocumentExtractor(chunkRunes, overlapRunes),
		worker.NewPool(workers, batch),
		gemini.EmbedDocuments,
		store,
	)
	if err != nil {
		return err
	}
	log.Printf("✓ Schemes index written (%d chunks)", n)
	return nil
}
