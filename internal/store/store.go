// Package store implements the document-store collaborator that command
// handlers append records to. Backends: SQLite (default), Redis streams and
// an in-process memory store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

// Store appends records to named collections.
type Store interface {
	Append(ctx context.Context, collection string, record map[string]any) (string, error)
	Close() error
}

var (
	ErrInvalidCollection = errors.New("invalid collection name")
	ErrClosed            = errors.New("store is closed")
)

var collectionPattern = regexp.MustCompile(`^[a-z][a-z0-9_.-]{0,63}$`)

func validateCollection(name string) error {
	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

// Drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Driver string
	// SQLite is the shared state database, required for DriverSQLite.
	SQLite *sql.DB
	Redis  RedisOptions
}

// Open returns the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		if opts.SQLite == nil {
			return nil, fmt.Errorf("sqlite store requires a database handle")
		}
		return NewSQL(opts.SQLite), nil
	case DriverRedis:
		return NewRedis(ctx, opts.Redis)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
