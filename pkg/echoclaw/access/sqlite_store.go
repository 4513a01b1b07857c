package access

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteStore keeps entries in the allowed_groups table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an already-migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) LoadAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id, added_by, added_at FROM allowed_groups ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("query allowed groups: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var addedAt string
		if err := rows.Scan(&e.ChatID, &e.AddedBy, &addedAt); err != nil {
			return nil, fmt.Errorf("scan allowed group: %w", err)
		}
		e.AddedAt, _ = time.Parse(time.RFC3339, addedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO allowed_groups (chat_id, added_by, added_at) VALUES (?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET added_by = excluded.added_by, added_at = excluded.added_at`,
		e.ChatID, e.AddedBy, e.AddedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert allowed group: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, chatID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM allowed_groups WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete allowed group: %w", err)
	}
	return nil
}
