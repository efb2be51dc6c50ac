package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.GuideStore = (*GuideStore)(nil)

// GuideStore implements driven.GuideStore using PostgreSQL. The
// canonical record and its chunk sub-records live in two tables; the
// single-flight Begin check and the ready promotion are transactions.
type GuideStore struct {
	db *DB
}

// NewGuideStore creates a new GuideStore
func NewGuideStore(db *DB) *GuideStore {
	return &GuideStore{db: db}
}

const guideColumns = `fingerprint, status, section, chapter, paragraph, corpora,
	summary_text, summary_model, validated, version, chunk_count, error, created_at, updated_at`

// Begin runs the transactional single-flight check for the request
func (s *GuideStore) Begin(ctx context.Context, req domain.GuideRequest, staleAfter time.Duration) (driven.BeginOutcome, *domain.CanonicalGuideRecord, error) {
	fingerprint := req.Fingerprint()
	outcome := driven.BeginAcquired
	var result *domain.CanonicalGuideRecord

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`SELECT %s FROM canonical_guides WHERE fingerprint = $1 FOR UPDATE`, guideColumns)
		rec, err := scanGuide(tx.QueryRowContext(ctx, query, fingerprint))
		switch {
		case errors.Is(err, domain.ErrNotFound):
			rec = nil
		case err != nil:
			return err
		}

		if rec != nil {
			switch rec.Status {
			case domain.GuideStatusReady:
				outcome = driven.BeginReady
				result = rec
				return nil
			case domain.GuideStatusProcessing:
				if !rec.Stale(time.Now(), staleAfter) {
					outcome = driven.BeginProcessing
					result = rec
					return nil
				}
			}
		}

		corpora := req.SortedCorpora()
		names := make([]string, len(corpora))
		for i, c := range corpora {
			names[i] = string(c)
		}
		// The FOR UPDATE read only serializes callers on an existing
		// row. Two first-time callers both see no row; the insert
		// loser lands on the conflict branch, so the update must
		// re-check the single-flight condition and report whether it
		// won the lock.
		res, err := tx.ExecContext(ctx, `
			INSERT INTO canonical_guides (fingerprint, status, section, chapter, paragraph, corpora, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (fingerprint) DO UPDATE SET
				status = EXCLUDED.status,
				error = '',
				updated_at = now()
			WHERE canonical_guides.status <> $2
				OR canonical_guides.updated_at < now() - $8 * interval '1 second'
		`, fingerprint, string(domain.GuideStatusProcessing), string(req.Section), req.Chapter,
			req.Paragraph, strings.Join(names, ","), domain.GuideSchemaVersion, int(staleAfter.Seconds()))
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			query := fmt.Sprintf(`SELECT %s FROM canonical_guides WHERE fingerprint = $1`, guideColumns)
			held, err := scanGuide(tx.QueryRowContext(ctx, query, fingerprint))
			if err != nil {
				return err
			}
			if held.Status == domain.GuideStatusReady {
				outcome = driven.BeginReady
			} else {
				outcome = driven.BeginProcessing
			}
			result = held
			return nil
		}
		outcome = driven.BeginAcquired
		return nil
	})
	if err != nil {
		return 0, nil, fmt.Errorf("guide begin %s: %w", fingerprint, err)
	}
	return outcome, result, nil
}

// Get retrieves the canonical record
func (s *GuideStore) Get(ctx context.Context, fingerprint string) (*domain.CanonicalGuideRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM canonical_guides WHERE fingerprint = $1`, guideColumns)
	return scanGuide(s.db.QueryRowContext(ctx, query, fingerprint))
}

// GetChunks retrieves the chunk sub-records in (corpus, ordinal) order
func (s *GuideStore) GetChunks(ctx context.Context, fingerprint string) ([]domain.GuideChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT corpus, ordinal, chunk_id, ref, raw_text, explanation_text, model_name, validated, cache_hit, duration_ms
		FROM guide_chunks
		WHERE fingerprint = $1
		ORDER BY corpus, ordinal
	`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("guide chunks %s: %w", fingerprint, err)
	}
	defer rows.Close()

	var out []domain.GuideChunk
	for rows.Next() {
		var c domain.GuideChunk
		var corpus string
		if err := rows.Scan(&corpus, &c.Ordinal, &c.ChunkID, &c.Ref, &c.RawText,
			&c.ExplanationText, &c.ModelName, &c.Validated, &c.CacheHit, &c.DurationMs); err != nil {
			return nil, err
		}
		c.Corpus = domain.CorpusID(corpus)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveReady atomically replaces the chunk sub-records and promotes the
// canonical record to ready
func (s *GuideStore) SaveReady(ctx context.Context, rec *domain.CanonicalGuideRecord, chunks []domain.GuideChunk) error {
	names := make([]string, len(rec.Corpora))
	for i, c := range rec.Corpora {
		names[i] = string(c)
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO canonical_guides (fingerprint, status, section, chapter, paragraph, corpora, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (fingerprint) DO NOTHING
		`, rec.Fingerprint, string(domain.GuideStatusProcessing), string(rec.Section), rec.Chapter,
			rec.Paragraph, strings.Join(names, ","), domain.GuideSchemaVersion); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM guide_chunks WHERE fingerprint = $1`, rec.Fingerprint); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO guide_chunks (fingerprint, corpus, ordinal, chunk_id, ref, raw_text,
				explanation_text, model_name, validated, cache_hit, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, c := range chunks {
			if _, err := stmt.ExecContext(ctx, rec.Fingerprint, string(c.Corpus), c.Ordinal, c.ChunkID,
				c.Ref, c.RawText, c.ExplanationText, c.ModelName, c.Validated, c.CacheHit, c.DurationMs); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE canonical_guides SET
				status = $2,
				summary_text = $3,
				summary_model = $4,
				validated = $5,
				version = $6,
				chunk_count = $7,
				error = '',
				updated_at = now()
			WHERE fingerprint = $1
		`, rec.Fingerprint, string(domain.GuideStatusReady), rec.SummaryText, rec.SummaryModel,
			rec.Validated, domain.GuideSchemaVersion, len(chunks))
		return err
	})
}

// MarkFailed sets the record to failed, releasing the processing lock
func (s *GuideStore) MarkFailed(ctx context.Context, fingerprint string, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE canonical_guides SET status = $2, error = $3, updated_at = now() WHERE fingerprint = $1
	`, fingerprint, string(domain.GuideStatusFailed), reason)
	if err != nil {
		return fmt.Errorf("guide mark failed %s: %w", fingerprint, err)
	}
	return nil
}

// Touch bumps updatedAt so concurrent callers see the lock as live
func (s *GuideStore) Touch(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE canonical_guides SET updated_at = now() WHERE fingerprint = $1 AND status = $2
	`, fingerprint, string(domain.GuideStatusProcessing))
	if err != nil {
		return fmt.Errorf("guide touch %s: %w", fingerprint, err)
	}
	return nil
}

func scanGuide(row rowScanner) (*domain.CanonicalGuideRecord, error) {
	var rec domain.CanonicalGuideRecord
	var section, corpora string

	err := row.Scan(&rec.Fingerprint, &rec.Status, &section, &rec.Chapter, &rec.Paragraph, &corpora,
		&rec.SummaryText, &rec.SummaryModel, &rec.Validated, &rec.Version, &rec.ChunkCount,
		&rec.Error, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.Section = domain.Section(section)
	if corpora != "" {
		for _, name := range strings.Split(corpora, ",") {
			rec.Corpora = append(rec.Corpora, domain.CorpusID(name))
		}
	}
	return &rec, nil
}
