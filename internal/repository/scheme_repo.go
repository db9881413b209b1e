package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"annadata-backend/internal/database"
	"annadata-backend/internal/models"
)

// SchemeStore persists embedded scheme chunks. The server only reads; the
// index builder replaces the whole set at once.
type SchemeStore interface {
	EnsureSchema(ctx context.Context) error
	ListDocuments(ctx context.Context) ([]models.SchemeDocument, error)
	ReplaceDocuments(ctx context.Context, docs []models.SchemeDocument) error
	Close()
}

// OpenSchemeStore picks Postgres for postgres:// URLs and SQLite otherwise.
func OpenSchemeStore(url string) (SchemeStore, error) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		pool, err := database.NewPostgresPool(url)
		if err != nil {
			return nil, err
		}
		return NewPostgresSchemeRepo(pool), nil
	}

	db, err := database.NewSQLiteDB(strings.TrimPrefix(url, "sqlite://"))
	if err != nil {
		return nil, err
	}
	return NewSQLiteSchemeRepo(db), nil
}

func encodeEmbedding(v []float32) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode embedding: %w", err)
	}
	return string(b), nil
}

func decodeEmbedding(s string) ([]float32, error) {
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return v, nil
}
