package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

// DocumentRepository handles persistence for submitted query documents.
type DocumentRepository struct {
	db *pgxpool.Pool
}

// NewDocumentRepository constructs a DocumentRepository.
func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, user_id, filename, kind, object_key, size, content, embedding, created_at`

func scanDocument(row pgx.Row) (*model.QueryDocument, error) {
	var (
		d   model.QueryDocument
		emb pgvector.Vector
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Filename, &d.Kind, &d.ObjectKey, &d.Size,
		&d.Text, &emb, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Embedding = emb.Slice()
	return &d, nil
}

// Create inserts an embedded document. Documents are never updated.
func (r *DocumentRepository) Create(ctx context.Context, d *model.QueryDocument) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.UserID, d.Filename, d.Kind, d.ObjectKey, d.Size, d.Text,
		pgvector.NewVector(d.Embedding), d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetByID returns a single document or ErrNotFound.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*model.QueryDocument, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	d, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// ListByUser returns a user's documents, newest first.
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]model.QueryDocument, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []model.QueryDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// Delete removes a document row.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
