// Package db opens the SQLite metadata store and applies its migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"
)

// Mode selects how a metadata pool is configured.
type Mode string

const (
	// ModeWrite is a single-connection pool that takes the write lock at BEGIN.
	ModeWrite Mode = "write"
	// ModeRead is a multi-connection pool for concurrent metadata lookups.
	ModeRead Mode = "read"
)

const (
	busyTimeoutMillis  = "5000"
	synchronousLevel   = "NORMAL"
	journalMode        = "WAL"
	defaultReadConns   = 4
	connectPingTimeout = 5 * time.Second
)

// Store holds the write and read pools of the metadata database.
type Store struct {
	Write *sql.DB
	Read  *sql.DB
}

// Close closes both pools.
func (s *Store) Close() error {
	rerr := s.Read.Close()
	if werr := s.Write.Close(); werr != nil {
		return werr
	}
	return rerr
}

// OpenSQLite opens a pool for the SQLite file at path.
//
// ModeWrite pools hold one connection and use _txlock=immediate so that
// concurrent imports queue on busy_timeout instead of failing at COMMIT.
// ModeRead pools hold maxOpen connections (0 means 4). Both use WAL and
// enforce foreign keys.
func OpenSQLite(path string, mode Mode, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, ModeRead, ModeWrite)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open metadata store (%s): %w", mode, err)
	}

	if mode == ModeWrite {
		maxOpen = 1
	} else if maxOpen <= 0 {
		maxOpen = defaultReadConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), connectPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping metadata store (%s): %w", mode, err)
	}
	return db, nil
}

// OpenStore opens the write and read pools for path and applies pending
// migrations through the write pool.
func OpenStore(path string, readMaxOpen int) (*Store, error) {
	write, err := OpenSQLite(path, ModeWrite, 0)
	if err != nil {
		return nil, err
	}
	read, err := OpenSQLite(path, ModeRead, readMaxOpen)
	if err != nil {
		_ = write.Close()
		return nil, err
	}
	s := &Store{Write: write, Read: read}
	if err := RunMigrations(write); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func buildDSN(path string, mode Mode) string {
	params := url.Values{}
	params.Set("_journal_mode", journalMode)
	params.Set("_busy_timeout", busyTimeoutMillis)
	params.Set("_synchronous", synchronousLevel)
	params.Set("_foreign_keys", "on")
	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}
