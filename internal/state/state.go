package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/glebarez/sqlite"

	"filehasher/internal/config"
)

// DB is the digest ledger: completed results of past runs, keyed by
// (path, algorithm). Jobs themselves are never stored.
type DB struct {
	SQL  *sql.DB
	Path string
}

func Open(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if cfg.General.DataRoot == "" {
		return nil, errors.New("general.data_root required")
	}
	if err := os.MkdirAll(cfg.General.DataRoot, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(cfg.General.DataRoot, "state.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout=5000&_pragma=journal_mode(WAL)", path)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := InitSchema(sqldb); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return &DB{SQL: sqldb, Path: path}, nil
}

// OpenMemory opens a private in-memory ledger.
func OpenMemory() (*DB, error) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// each pooled connection would get its own empty database
	sqldb.SetMaxOpenConns(1)
	if err := InitSchema(sqldb); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return &DB{SQL: sqldb}, nil
}

func (db *DB) Close() error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Close()
}

func InitSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS digests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			algorithm TEXT NOT NULL,
			hex TEXT,
			size INTEGER,
			mtime INTEGER,
			status TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			last_error TEXT,
			UNIQUE(path, algorithm)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_digests_status ON digests(status);`,
		`CREATE INDEX IF NOT EXISTS idx_digests_hex ON digests(hex);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Status values stored in the ledger.
const (
	StatusComplete = "complete"
	StatusVerified = "verified"
	StatusMismatch = "checksum_mismatch"
	StatusMissing  = "missing"
	StatusError    = "error"
)

type DigestRow struct {
	Path      string
	Algorithm string
	Hex       string
	Size      int64
	ModTime   int64
	Status    string
	UpdatedAt int64
	LastError string
}

func (db *DB) UpsertDigest(row DigestRow) error {
	now := time.Now().Unix()
	_, err := db.SQL.Exec(`INSERT INTO digests(path, algorithm, hex, size, mtime, status, last_error, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?)
		ON CONFLICT(path, algorithm) DO UPDATE SET hex=excluded.hex, size=excluded.size, mtime=excluded.mtime, status=excluded.status, last_error=excluded.last_error, updated_at=?`,
		row.Path, row.Algorithm, row.Hex, row.Size, row.ModTime, row.Status, row.LastError, now, now, now)
	return err
}

// UpdateStatus changes the status of one row without touching its digest.
func (db *DB) UpdateStatus(path, algorithm, status, lastError string) error {
	_, err := db.SQL.Exec(`UPDATE digests SET status=?, last_error=?, updated_at=CAST(strftime('%s','now') AS INTEGER) WHERE path=? AND algorithm=?`, status, lastError, path, algorithm)
	return err
}

// DeletePath removes every row recorded for path.
func (db *DB) DeletePath(path string) (int64, error) {
	res, err := db.SQL.Exec(`DELETE FROM digests WHERE path=?`, path)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const selectCols = `SELECT path, algorithm,
    COALESCE(hex, ''),
    COALESCE(size, 0),
    COALESCE(mtime, 0),
    COALESCE(status, ''),
    updated_at,
    COALESCE(last_error, '')
  FROM digests`

// ListDigests returns a snapshot of the ledger, most recent first.
func (db *DB) ListDigests() ([]DigestRow, error) {
	return db.query(selectCols + ` ORDER BY updated_at DESC, path, algorithm`)
}

// ListForPath returns the rows recorded for one file.
func (db *DB) ListForPath(path string) ([]DigestRow, error) {
	return db.query(selectCols+` WHERE path=? ORDER BY algorithm`, path)
}

// FindByHex returns every row whose digest equals hex (lowercase).
func (db *DB) FindByHex(hex string) ([]DigestRow, error) {
	return db.query(selectCols+` WHERE hex=? ORDER BY path`, hex)
}

func (db *DB) query(q string, args ...any) ([]DigestRow, error) {
	rows, err := db.SQL.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DigestRow
	for rows.Next() {
		var r DigestRow
		if err := rows.Scan(&r.Path, &r.Algorithm, &r.Hex, &r.Size, &r.ModTime, &r.Status, &r.UpdatedAt, &r.LastError); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordDigests stores the digests of one file in a single transaction.
// digests maps algorithm key to lowercase hex.
func (db *DB) RecordDigests(path string, size, mtime int64, digests map[string]string) error {
	tx, err := db.SQL.Begin()
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	for alg, hex := range digests {
		if _, err := tx.Exec(`INSERT INTO digests(path, algorithm, hex, size, mtime, status, last_error, created_at, updated_at)
			VALUES(?,?,?,?,?,?,'',?,?)
			ON CONFLICT(path, algorithm) DO UPDATE SET hex=excluded.hex, size=excluded.size, mtime=excluded.mtime, status=excluded.status, last_error='', updated_at=excluded.updated_at`,
			path, alg, hex, size, mtime, StatusComplete, now, now); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
