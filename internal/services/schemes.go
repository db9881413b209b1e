package services

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"strings"

	"annadata-backend/internal/models"
)

const (
	SchemesNotLoadedMarker = "⚠️ Schemes database not loaded."
	SchemesNotFoundMarker  = "No relevant government schemes found."

	defaultSchemesTopK = 3
)

// QueryEmbedder turns a search query into a vector in the same space as
// the stored scheme chunks.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type schemeSource interface {
	ListDocuments(ctx context.Context) ([]models.SchemeDocument, error)
}

// SchemeRetriever answers top-k similarity queries over an index loaded once
// at startup. The document slice is never mutated after construction.
type SchemeRetriever struct {
	docs     []models.SchemeDocument
	norms    []float64
	embedder QueryEmbedder
	minScore float64
	loaded   bool
}

// NewSchemeRetriever builds a ready retriever from already loaded documents.
func NewSchemeRetriever(docs []models.SchemeDocument, embedder QueryEmbedder, minScore float64) *SchemeRetriever {
	norms := make([]float64, len(docs))
	for i, d := range docs {
		norms[i] = vectorNorm(d.Embedding)
	}
	return &SchemeRetriever{
		docs:     docs,
		norms:    norms,
		embedder: embedder,
		minScore: minScore,
		loaded:   true,
	}
}

// UnloadedSchemeRetriever answers every query with the not-loaded marker.
func UnloadedSchemeRetriever() *SchemeRetriever {
	return &SchemeRetriever{}
}

// LoadSchemeRetriever reads the index from the store. Any failure, an empty
// index or a missing embedder yields an unloaded retriever instead of an error
// so the rest of the server keeps working.
func LoadSchemeRetriever(ctx context.Context, store schemeSource, embedder QueryEmbedder, minScore float64) *SchemeRetriever {
	if store == nil || embedder == nil {
		log.Println("schemes: index store or embedder unavailable")
		return UnloadedSchemeRetriever()
	}

	docs, err := store.ListDocuments(ctx)
	if err != nil {
		log.Printf("schemes: failed to load index: %v", err)
		return UnloadedSchemeRetriever()
	}
	if len(docs) == 0 {
		log.Println("schemes: index is empty")
		return UnloadedSchemeRetriever()
	}

	log.Printf("schemes: loaded %d chunks", len(docs))
	return NewSchemeRetriever(docs, embedder, minScore)
}

func (r *SchemeRetriever) Ready() bool { return r.loaded }

func (r *SchemeRetriever) Len() int { return len(r.docs) }

// Search returns the newline-joined text of the k best matches.
func (r *SchemeRetriever) Search(ctx context.Context, query string, k int) (*models.SchemeResult, error) {
	if !r.loaded {
		return &models.SchemeResult{Text: SchemesNotLoadedMarker, NotLoaded: true}, nil
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, requiredField("query", "Query is required")
	}
	if k <= 0 {
		k = defaultSchemesTopK
	}

	qv, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			return nil, err
		}
		return nil, &UpstreamError{Service: providerGemini, Err: err}
	}

	matches := r.rank(qv, k)
	if len(matches) == 0 {
		return &models.SchemeResult{Text: SchemesNotFoundMarker, NotFound: true}, nil
	}

	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = r.docs[m.idx].Content
	}
	return &models.SchemeResult{Text: strings.Join(parts, "\n")}, nil
}

type schemeMatch struct {
	idx   int
	score float64
}

func (r *SchemeRetriever) rank(qv []float32, k int) []schemeMatch {
	qn := vectorNorm(qv)
	if qn == 0 {
		return nil
	}

	var matches []schemeMatch
	for i, d := range r.docs {
		if len(d.Embedding) != len(qv) || r.norms[i] == 0 {
			continue
		}
		score := dot(qv, d.Embedding) / (qn * r.norms[i])
		if score <= r.minScore {
			continue
		}
		matches = append(matches, schemeMatch{idx: i, score: score})
	}

	sort.SliceStable(matches, func(a, b int) bool { return matches[a].score > matches[b].score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func vectorNorm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
