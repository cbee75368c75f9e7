// Package db opens the SQLite file backing the sandbox server and applies
// its embedded goose migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Mode selects the pool configuration of an opened database.
type Mode string

const (
	// ModeWrite serialises writers through a single connection with
	// immediate transactions.
	ModeWrite Mode = "write"
	// ModeRead opens a pool of concurrent readers.
	ModeRead Mode = "read"
)

const (
	defaultBusyTimeout = "5000" // ms
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
	defaultReadConns   = 4
)

// OpenSQLite opens a *sql.DB pool for the given SQLite file path.
//
//   - ModeWrite: MaxOpenConns=1, _txlock=immediate
//   - ModeRead:  MaxOpenConns=maxOpen (0 means 4)
//
// Both modes set WAL journal, busy_timeout=5000ms, synchronous=NORMAL,
// and foreign_keys=on.
func OpenSQLite(path string, mode Mode, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, ModeRead, ModeWrite)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	if mode == ModeWrite {
		maxOpen = 1
	} else if maxOpen <= 0 {
		maxOpen = defaultReadConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}

	return db, nil
}

// OpenSQLitePair opens a single-connection write pool and a read pool for
// the same file. readMaxOpen of 0 means 4.
func OpenSQLitePair(path string, readMaxOpen int) (writeDB, readDB *sql.DB, err error) {
	writeDB, err = OpenSQLite(path, ModeWrite, 0)
	if err != nil {
		return nil, nil, err
	}

	readDB, err = OpenSQLite(path, ModeRead, readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}

	return writeDB, readDB, nil
}

// Open opens the pool pair and migrates the schema to the latest version.
func Open(path string) (writeDB, readDB *sql.DB, err error) {
	writeDB, readDB, err = OpenSQLitePair(path, 0)
	if err != nil {
		return nil, nil, err
	}
	if err := RunMigrations(writeDB); err != nil {
		_ = readDB.Close()
		_ = writeDB.Close()
		return nil, nil, err
	}
	return writeDB, readDB, nil
}

func buildDSN(path string, mode Mode) string {
	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "on")

	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}

	return path + "?" + params.Encode()
}
