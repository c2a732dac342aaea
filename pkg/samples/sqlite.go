package samples

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-stdvis/pkg/vision"
)

// SQLiteCatalog keeps records in a SQLite database. Configs are stored as
// JSON text.
type SQLiteCatalog struct {
	db *sql.DB
}

// OpenSQLiteCatalog opens or creates the database at path.
func OpenSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS samples (
			idx         INTEGER PRIMARY KEY,
			label       TEXT NOT NULL,
			exposure    INTEGER NOT NULL,
			config      TEXT NOT NULL,
			file        TEXT,
			session     TEXT,
			created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteCatalog{db: db}, nil
}

// Len implements Catalog.
func (c *SQLiteCatalog) Len() (int, error) {
	var n int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM samples`).Scan(&n)
	return n, err
}

// Append implements Catalog. Records are written in one transaction; an
// index that already exists is an error.
func (c *SQLiteCatalog) Append(recs ...Record) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO samples (idx, label, exposure, config, file, session) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		cfg, err := json.Marshal(r.Config)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(r.Index, r.Label, r.Exposure, string(cfg), r.File, r.Session); err != nil {
			return fmt.Errorf("insert sample %d: %w", r.Index, err)
		}
	}
	return tx.Commit()
}

// Records implements Catalog.
func (c *SQLiteCatalog) Records() ([]Record, error) {
	rows, err := c.db.Query(`SELECT idx, label, exposure, config, COALESCE(file, ''), COALESCE(session, '') FROM samples ORDER BY idx`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r   Record
			cfg string
		)
		if err := rows.Scan(&r.Index, &r.Label, &r.Exposure, &cfg, &r.File, &r.Session); err != nil {
			return nil, err
		}
		r.Config = &vision.CameraConfig{}
		if err := json.Unmarshal([]byte(cfg), r.Config); err != nil {
			return nil, fmt.Errorf("sample %d config: %w", r.Index, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close implements Catalog.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
