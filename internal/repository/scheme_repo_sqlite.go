package repository

import (
	"context"
	"database/sql"
	"fmt"

	"annadata-backend/internal/models"
)

type SQLiteSchemeRepo struct {
	db *sql.DB
}

func NewSQLiteSchemeRepo(db *sql.DB) *SQLiteSchemeRepo {
	return &SQLiteSchemeRepo{db: db}
}

func (r *SQLiteSchemeRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scheme_documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			embedding TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	return err
}

func (r *SQLiteSchemeRepo) ListDocuments(ctx context.Context) ([]models.SchemeDocument, error) {
	rows, err := r.db.QueryContext(ctx,
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

func (r *SQLiteSchemeRepo) ReplaceDocuments(ctx context.Context, docs []models.SchemeDocument) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scheme_documents`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scheme_documents (title, source, content, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, d := range docs {
		emb, err := encodeEmbedding(d.Embedding)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, d.Title, d.Source, d.Content, emb); err != nil {
			return fmt.Errorf("insert document %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteSchemeRepo) Close() {
	r.db.Close()
}
