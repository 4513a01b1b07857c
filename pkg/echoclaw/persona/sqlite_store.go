package persona

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteStore persists the profile in the persona_samples and
// persona_history tables of the shared database (see storage.Open).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an already-migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load reads both logs in insertion order.
func (s *SQLiteStore) Load(ctx context.Context) (*Profile, error) {
	p := &Profile{}

	rows, err := s.db.QueryContext(ctx, `SELECT content FROM persona_samples ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query persona samples: %w", err)
	}
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan persona sample: %w", err)
		}
		p.StyleSamples = append(p.StyleSamples, content)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persona samples: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT role, content, created_at FROM persona_history ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query persona history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e HistoryEntry
		var createdAt string
		if err := rows.Scan(&e.Role, &e.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan persona history: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
		p.MessageHistory = append(p.MessageHistory, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persona history: %w", err)
	}

	if len(p.StyleSamples) == 0 && len(p.MessageHistory) == 0 {
		return nil, ErrNoProfile
	}
	return p, nil
}

// Save replaces both logs in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, p *Profile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin persona tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM persona_samples`); err != nil {
		return fmt.Errorf("clear persona samples: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM persona_history`); err != nil {
		return fmt.Errorf("clear persona history: %w", err)
	}

	for _, sample := range p.StyleSamples {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO persona_samples (content) VALUES (?)`, sample); err != nil {
			return fmt.Errorf("insert persona sample: %w", err)
		}
	}
	for _, e := range p.MessageHistory {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO persona_history (role, content, created_at) VALUES (?, ?, ?)`,
			e.Role, e.Content, e.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert persona history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit persona tx: %w", err)
	}
	return nil
}
