package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"annadata-backend/internal/models"
)

type PostgresSchemeRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSchemeRepo(pool *pgxpool.Pool) *PostgresSchemeRepo {
	return &PostgresSchemeRepo{pool: pool}
}

func (r *PostgresSchemeRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS scheme_documents (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			embedding TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

func (r *PostgresSchemeRepo) ListDocuments(ctx context.Context) ([]models.SchemeDocument, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, source, content, embedding, created_at FROM scheme_documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.SchemeDocument
	for rows.Next() {
		var d models.SchemeDocument
		var raw string
		if err := rows.Scan(&d.ID, &d.Title, &d.Source, &d.Content, &raw, &d.CreatedAt); err != nil {
			return nil, err
		}
		if d.Embedding, err = decodeEmbedding(raw); err != nil {
			return nil, fmt.Errorf("document %d: %w", d.ID, err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresSchemeRepo) ReplaceDocuments(ctx context.Context, docs []models.SchemeDocument) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM scheme_documents`); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, d := range docs {
		emb, err := encodeEmbedding(d.Embedding)
		if err != nil {
			return err
		}
		batch.Queue(`INSERT INTO scheme_documents (title, source, content, embedding) VALUES ($1, $2, $3, $4)`,
			d.Title, d.Source, d.Content, emb)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PostgresSchemeRepo) Close() {
	r.pool.Close()
}
