// Package sessionstore persists completed sharing sessions durably, with
// optional uniqueness enforcement on the notarized uid.
package sessionstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Record is the persistent, immutable description of a completed sharing
// session.
type Record struct {
	ID         int64
	EthAddress string
	UID        int64
	ProofPath  string
}

// Store is a durable, append-only record of completed sharing sessions.
type Store struct {
	db                *sql.DB
	prohibitMultiples bool
}

// Open opens (creating if absent) a SQLite-backed store at dsn and migrates
// it to the current schema. When prohibitMultiples is true, Insert rejects a
// record whose uid already exists.
func Open(ctx context.Context, dsn string, prohibitMultiples bool) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sessionstore: open %s: %w", dsn, err)
	}
	// SQLite allows only one writer at a time; cap the pool so
	// database/sql doesn't hand out concurrent connections that would
	// otherwise serialize on SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sessionstore: ping %s: %w", dsn, err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sessionstore: set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sessionstore: migrate: %w", err)
	}

	return &Store{db: db, prohibitMultiples: prohibitMultiples}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Count returns the number of sessions ever persisted.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sessionstore: count: %w", err)
	}
	return n, nil
}

// ExistsUID reports whether any session was ever persisted for uid.
func (s *Store) ExistsUID(ctx context.Context, uid int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE uid = ? LIMIT 1`, uid).Scan(&n)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("sessionstore: exists_uid: %w", err)
	default:
		return true, nil
	}
}

// Insert durably appends record, assigning it the next monotonic id.
// When the store was opened with prohibitMultiples, Insert atomically
// rejects a record whose uid has already been recorded. SQLite serializes
// all writes onto a single connection (see SetMaxOpenConns(1) in Open), so
// the check-then-insert below cannot race with a concurrent Insert.
func (s *Store) Insert(ctx context.Context, record Record) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sessionstore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.prohibitMultiples {
		var n int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE uid = ? LIMIT 1`, record.UID).Scan(&n)
		if err == nil {
			return 0, apierrors.NewInvalidRequest(fmt.Sprintf("uid %d has already contributed", record.UID), nil)
		}
		if err != sql.ErrNoRows {
			return 0, fmt.Errorf("sessionstore: checking uid uniqueness: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (eth_address, uid, proof_path) VALUES (?, ?, ?)`,
		record.EthAddress, record.UID, record.ProofPath)
	if err != nil {
		return 0, fmt.Errorf("sessionstore: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sessionstore: last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sessionstore: commit: %w", err)
	}
	return id, nil
}

// HasAddressSharedData reports whether ethAddress has ever completed a
// sharing session.
func (s *Store) HasAddressSharedData(ctx context.Context, ethAddress string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE eth_address = ? LIMIT 1`, ethAddress).Scan(&n)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("sessionstore: has_address_shared_data: %w", err)
	default:
		return true, nil
	}
}
