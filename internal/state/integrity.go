package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// CheckIntegrity runs SQLite's integrity check on the database
func (db *DB) CheckIntegrity() error {
	if db == nil || db.SQL == nil {
		return fmt.Errorf("database not open")
	}

	var result string
	err := db.SQL.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check failed to run: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("database integrity check failed: %s", result)
	}

	return nil
}

// FindMissing returns the distinct recorded paths that no longer exist on disk.
func (db *DB) FindMissing() ([]string, error) {
	if db == nil || db.SQL == nil {
		return nil, fmt.Errorf("database not open")
	}
	rows, err := db.SQL.Query(`SELECT DISTINCT path FROM digests ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list paths: %w", err)
	}
	defer rows.Close()
	var missing []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, p)
		}
	}
	return missing, rows.Err()
}

// PruneMissing deletes rows for files that no longer exist.
func (db *DB) PruneMissing() (int, error) {
	missing, err := db.FindMissing()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, p := range missing {
		c, err := db.DeletePath(p)
		if err != nil {
			return int(n), fmt.Errorf("failed to prune %s: %w", p, err)
		}
		n += c
	}
	return int(n), nil
}

// Vacuum optimizes the database by reclaiming unused space
func (db *DB) Vacuum() error {
	if db == nil || db.SQL == nil {
		return fmt.Errorf("database not open")
	}

	_, err := db.SQL.Exec("VACUUM")
	if err != nil {
		return fmt.Errorf("vacuum failed: %w", err)
	}

	return nil
}

// Backup creates a backup of the database
func (db *DB) Backup(destPath string) error {
	if db == nil || db.SQL == nil {
		return fmt.Errorf("database not open")
	}

	// Use SQLite backup API via VACUUM INTO
	query := fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(destPath, "'", "''"))
	_, err := db.SQL.Exec(query)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	return nil
}

// DBStats summarizes the ledger.
type DBStats struct {
	DatabaseSize int64 // Size in bytes
	Rows         int
	Files        int
	Verified     int
	Mismatched   int
}

// GetStats retrieves database statistics
func (db *DB) GetStats() (*DBStats, error) {
	if db == nil || db.SQL == nil {
		return nil, fmt.Errorf("database not open")
	}

	stats := &DBStats{}

	var pageCount, pageSize int64
	if err := db.SQL.QueryRow("PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := db.SQL.QueryRow("PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.DatabaseSize = pageCount * pageSize
		}
	}

	if err := db.SQL.QueryRow("SELECT COUNT(*) FROM digests").Scan(&stats.Rows); err != nil {
		return nil, fmt.Errorf("failed to count digests: %w", err)
	}

	if err := db.SQL.QueryRow("SELECT COUNT(DISTINCT path) FROM digests").Scan(&stats.Files); err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}

	if err := db.SQL.QueryRow("SELECT COUNT(*) FROM digests WHERE status = ?", StatusVerified).Scan(&stats.Verified); err != nil {
		return nil, fmt.Errorf("failed to count verified digests: %w", err)
	}

	if err := db.SQL.QueryRow("SELECT COUNT(*) FROM digests WHERE status = ?", StatusMismatch).Scan(&stats.Mismatched); err != nil {
		return nil, fmt.Errorf("failed to count mismatched digests: %w", err)
	}

	return stats, nil
}
