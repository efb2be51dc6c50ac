package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ExplanationStore = (*ExplanationStore)(nil)

// ExplanationStore implements the structured explanation archive on
// PostgreSQL, keyed by (section, chapter, paragraph, corpus, ordinal).
type ExplanationStore struct {
	db *DB
}

// NewExplanationStore creates a new ExplanationStore
func NewExplanationStore(db *DB) *ExplanationStore {
	return &ExplanationStore{db: db}
}

// Get retrieves the record at the key
func (s *ExplanationStore) Get(ctx context.Context, key domain.ExplanationKey) (*domain.ExplanationRecord, error) {
	query := `
		SELECT raw_text, explanation_text, content_hash, prompt_version, model_name, validated, created_at, updated_at
		FROM explanations
		WHERE section = $1 AND chapter = $2 AND paragraph = $3 AND corpus = $4 AND ordinal = $5
	`
	rec := domain.ExplanationRecord{Key: key}
	err := s.db.QueryRowContext(ctx, query,
		key.Section.Slug(), key.Chapter, key.Paragraph, string(key.Corpus), key.Ordinal,
	).Scan(&rec.RawText, &rec.ExplanationText, &rec.ContentHash, &rec.PromptVersion,
		&rec.ModelName, &rec.Validated, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("explanation get %s: %w", key.String(), err)
	}
	return &rec, nil
}

// Put upserts the record with server-side timestamps
func (s *ExplanationStore) Put(ctx context.Context, rec *domain.ExplanationRecord) error {
	query := `
		INSERT INTO explanations (section, chapter, paragraph, corpus, ordinal,
			raw_text, explanation_text, content_hash, prompt_version, model_name, validated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (section, chapter, paragraph, corpus, ordinal) DO UPDATE SET
			raw_text = EXCLUDED.raw_text,
			explanation_text = EXCLUDED.explanation_text,
			content_hash = EXCLUDED.content_hash,
			prompt_version = EXCLUDED.prompt_version,
			model_name = EXCLUDED.model_name,
			validated = EXCLUDED.validated,
			updated_at = now()
	`
	key := rec.Key
	_, err := s.db.ExecContext(ctx, query,
		key.Section.Slug(), key.Chapter, key.Paragraph, string(key.Corpus), key.Ordinal,
		rec.RawText, rec.ExplanationText, rec.ContentHash, rec.PromptVersion, rec.ModelName, rec.Validated)
	if err != nil {
		return fmt.Errorf("explanation put %s: %w", key.String(), err)
	}
	return nil
}
