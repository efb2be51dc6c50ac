package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shiurlab/shiur-core/internal/core/domain"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.AlignmentStore = (*AlignmentStore)(nil)

// AlignmentStore implements driven.AlignmentStore using PostgreSQL.
// The lock protocol rides on SELECT ... FOR UPDATE inside a single
// transaction, with server-side now() for every timestamp.
type AlignmentStore struct {
	db *DB
}

// NewAlignmentStore creates a new AlignmentStore
func NewAlignmentStore(db *DB) *AlignmentStore {
	return &AlignmentStore{db: db}
}

const alignmentColumns = `key, section, chapter, status, version, lock_expires_at,
	source_hash, paragraphs, error, source_checked_at, created_at, updated_at`

// Get retrieves the record for the key
func (s *AlignmentStore) Get(ctx context.Context, key string) (*domain.AlignmentRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM alignments WHERE key = $1`, alignmentColumns)
	return scanAlignment(s.db.QueryRowContext(ctx, query, key))
}

// TryAcquire runs the conditional lock transaction: success when the
// record is absent, not building, or building with an expired lock.
func (s *AlignmentStore) TryAcquire(ctx context.Context, section domain.Section, chapter int, ttl time.Duration) (bool, *domain.AlignmentRecord, error) {
	key := domain.AlignmentKey(section, chapter)
	var acquired bool
	var current *domain.AlignmentRecord

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`SELECT %s FROM alignments WHERE key = $1 FOR UPDATE`, alignmentColumns)
		rec, err := scanAlignment(tx.QueryRowContext(ctx, query, key))
		switch {
		case errors.Is(err, domain.ErrNotFound):
			rec = nil
		case err != nil:
			return err
		}

		if rec != nil && rec.Status == domain.AlignmentStatusBuilding && rec.LockExpiresAt.After(time.Now()) {
			acquired = false
			current = rec
			return nil
		}

		// The FOR UPDATE read only serializes callers on an existing
		// row. Two first-time callers both see no row; the insert
		// loser lands on the conflict branch, so the update must
		// re-check the lock condition and report whether it won.
		res, err := tx.ExecContext(ctx, `
			INSERT INTO alignments (key, section, chapter, status, version, lock_expires_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now() + $6 * interval '1 second', now())
			ON CONFLICT (key) DO UPDATE SET
				status = EXCLUDED.status,
				version = EXCLUDED.version,
				lock_expires_at = EXCLUDED.lock_expires_at,
				error = '',
				updated_at = now()
			WHERE alignments.status <> $4 OR alignments.lock_expires_at < now()
		`, key, string(section), chapter, string(domain.AlignmentStatusBuilding), domain.AlignmentSchemaVersion, int(ttl.Seconds()))
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			query := fmt.Sprintf(`SELECT %s FROM alignments WHERE key = $1`, alignmentColumns)
			held, err := scanAlignment(tx.QueryRowContext(ctx, query, key))
			if err != nil {
				return err
			}
			acquired = false
			current = held
			return nil
		}
		acquired = true
		return nil
	})
	if err != nil {
		return false, nil, fmt.Errorf("alignment try acquire %s: %w", key, err)
	}
	return acquired, current, nil
}

// SaveReady atomically writes the finished record and clears the lock
func (s *AlignmentStore) SaveReady(ctx context.Context, rec *domain.AlignmentRecord) error {
	sourceHash, err := json.Marshal(rec.SourceHash)
	if err != nil {
		return err
	}
	paragraphs, err := json.Marshal(rec.Paragraphs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alignments (key, section, chapter, status, version, lock_expires_at,
			source_hash, paragraphs, error, source_checked_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULL, $6, $7, '', now(), now())
		ON CONFLICT (key) DO UPDATE SET
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			lock_expires_at = NULL,
			source_hash = EXCLUDED.source_hash,
			paragraphs = EXCLUDED.paragraphs,
			error = '',
			source_checked_at = now(),
			updated_at = now()
	`, rec.Key, string(rec.Section), rec.Chapter, string(domain.AlignmentStatusReady),
		domain.AlignmentSchemaVersion, sourceHash, paragraphs)
	if err != nil {
		return fmt.Errorf("alignment save ready %s: %w", rec.Key, err)
	}
	return nil
}

// MarkFailed records a failed build and clears the lock
func (s *AlignmentStore) MarkFailed(ctx context.Context, key string, msg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE alignments
		SET status = $2, error = $3, lock_expires_at = NULL, updated_at = now()
		WHERE key = $1
	`, key, string(domain.AlignmentStatusFailed), msg)
	if err != nil {
		return fmt.Errorf("alignment mark failed %s: %w", key, err)
	}
	return nil
}

// TouchSourceChecked bumps sourceCheckedAt to the server time
func (s *AlignmentStore) TouchSourceChecked(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE alignments SET source_checked_at = now(), updated_at = now() WHERE key = $1
	`, key)
	if err != nil {
		return fmt.Errorf("alignment touch %s: %w", key, err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlignment(row rowScanner) (*domain.AlignmentRecord, error) {
	var rec domain.AlignmentRecord
	var section string
	var lockExpiresAt, sourceCheckedAt sql.NullTime
	var sourceHash, paragraphs []byte

	err := row.Scan(&rec.Key, &section, &rec.Chapter, &rec.Status, &rec.Version, &lockExpiresAt,
		&sourceHash, &paragraphs, &rec.Error, &sourceCheckedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.Section = domain.Section(section)
	if lockExpiresAt.Valid {
		rec.LockExpiresAt = lockExpiresAt.Time
	}
	if sourceCheckedAt.Valid {
		rec.SourceCheckedAt = sourceCheckedAt.Time
	}
	if len(sourceHash) > 0 {
		if err := json.Unmarshal(sourceHash, &rec.SourceHash); err != nil {
			return nil, fmt.Errorf("decode source_hash: %w", err)
		}
	}
	if len(paragraphs) > 0 {
		if err := json.Unmarshal(paragraphs, &rec.Paragraphs); err != nil {
			return nil, fmt.Errorf("decode paragraphs: %w", err)
		}
	}
	return &rec, nil
}
