package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQL appends records to the documents table. The caller owns db.
type SQL struct {
	db *sql.DB
}

func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) Append(ctx context.Context, collection string, record map[string]any) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}

	body, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode %s record: %w", collection, err)
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents(id, collection, body, created_at)
VALUES(?, ?, ?, ?);
`, id, collection, string(body), now)
	if err != nil {
		return "", fmt.Errorf("append %s record: %w", collection, err)
	}
	return id, nil
}

// Count returns how many records collection holds.
func (s *SQL) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?;`, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s records: %w", collection, err)
	}
	return n, nil
}

// Close is a no-op; the database handle is shared and closed by its owner.
func (s *SQL) Close() error { return nil }
