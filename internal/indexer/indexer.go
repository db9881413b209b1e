package indexer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"annadata-backend/internal/models"
	"annadata-backend/internal/worker"
)

// Manifest lists the scheme documents to embed.
type Manifest struct {
	Documents []ManifestEntry `yaml:"documents"`
}

type ManifestEntry struct {
	Title  string `yaml:"title"`
	File   string `yaml:"file"`
	Source string `yaml:"source"`
}

type chunker interface {
	ExtractChunks(path string) ([]string, error)
}

type documentWriter interface {
	EnsureSchema(ctx context.Context) error
	ReplaceDocuments(ctx context.Context, docs []models.SchemeDocument) error
}

// LoadManifest parses a manifest file. Relative document paths resolve
// against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if len(m.Documents) == 0 {
		return nil, fmt.Errorf("manifest %s lists no documents", path)
	}

	base := filepath.Dir(path)
	for i, doc := range m.Documents {
		if strings.TrimSpace(doc.File) == "" {
			return nil, fmt.Errorf("manifest entry %d has no file", i+1)
		}
		if !filepath.IsAbs(doc.File) {
			m.Documents[i].File = filepath.Join(base, doc.File)
		}
		if doc.Title == "" {
			name := filepath.Base(doc.File)
			m.Documents[i].Title = strings.TrimSuffix(name, filepath.Ext(name))
		}
		if doc.Source == "" {
			m.Documents[i].Source = filepath.Base(doc.File)
		}
	}
	return &m, nil
}

// Build chunks every manifest document, embeds the chunks on the pool and
// replaces the stored index. It returns the number of chunks written.
func Build(ctx context.Context, m *Manifest, extractor chunker, pool *worker.Pool, embed worker.EmbedFunc, store documentWriter) (int, error) {
	var docs []models.SchemeDocument
	for _, entry := range m.Documents {
		chunks, err := extractor.ExtractChunks(entry.File)
		if err != nil {
			return 0, fmt.Errorf("extract %s: %w", entry.File, err)
		}
		if len(chunks) == 0 {
			log.Printf("Skipping %s: no text extracted", entry.File)
			continue
		}
		for _, c := range chunks {
			docs = append(docs, models.SchemeDocument{
				Title:   entry.Title,
				Source:  entry.Source,
				Content: c,
			})
		}
		log.Printf("Extracted %d chunks from %s", len(chunks), entry.Source)
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("no text extracted from %d documents", len(m.Documents))
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := pool.Embed(ctx, texts, embed)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}

	if err := store.EnsureSchema(ctx); err != nil {
		return 0, fmt.Errorf("ensure schema: %w", err)
	}
	if err := store.ReplaceDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return len(docs), nil
}
