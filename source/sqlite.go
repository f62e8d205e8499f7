package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// SQLite serves payloads from a 3D Tiles sqlite archive, where every payload is
// a row of the media table keyed by its URI.
//
// Note: User must properly initialize the sqlite3 library generic driver
// (e.g. import _ "github.com/mattn/go-sqlite3") before using this type.
type SQLite struct {
	Listeners

	db   *sql.DB
	stmt *sql.Stmt
}

// NewSQLite opens the archive at filePath read-only.
//
// The returned source must be closed after use to release database resources.
func NewSQLite(filePath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", filePath))
	if err != nil {
		return nil, err
	}

	stmt, err := db.Prepare("SELECT content FROM media WHERE key = ?")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db, stmt: stmt}, nil
}

func (s *SQLite) Close() error {
	return errors.Join(s.stmt.Close(), s.db.Close())
}

func (s *SQLite) Data(ctx context.Context, uri string) ([]byte, Version, error) {
	var data []byte
	if err := s.stmt.QueryRowContext(ctx, uri).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, fmt.Errorf("%w: %q", ErrNotFound, uri)
		}
		return nil, 0, err
	}
	return data, 0, nil
}

// Visit calls the visitor for every payload in the archive.
func (s *SQLite) Visit(visitor func(uri string, data []byte) error) error {
	rows, err := s.db.Query("SELECT key, content FROM media")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var uri string
		var data []byte
		if err := rows.Scan(&uri, &data); err != nil {
			return err
		}
		if err := visitor(uri, data); err != nil {
			return err
		}
	}

	return rows.Err()
}

// The archive is immutable while open; there is nothing to watch.
func (s *SQLite) Connect(context.Context) error { return nil }
func (s *SQLite) Disconnect() error             { return nil }

// SQLiteWriter creates a 3D Tiles sqlite archive.
type SQLiteWriter struct {
	db     *sql.DB
	tx     *sql.Tx
	stmt   *sql.Stmt
	logger *slog.Logger
	count  int
}

func NewSQLiteWriter(filePath string, opts ...Option) (w *SQLiteWriter, err error) {
	c := newConfig(opts)

	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	_, err = db.Exec(`CREATE TABLE media (key TEXT PRIMARY KEY, content BLOB)`)
	if err != nil {
		return nil, err
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}

	stmt, err := tx.Prepare("INSERT INTO media (key, content) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	return &SQLiteWriter{db: db, tx: tx, stmt: stmt, logger: c.Logger}, nil
}

func (w *SQLiteWriter) Write(uri string, data []byte) error {
	if _, err := w.stmt.Exec(uri, data); err != nil {
		return fmt.Errorf("write %q: %w", uri, err)
	}
	w.count++
	return nil
}

// Finalize commits all written payloads. It must be called before Close.
func (w *SQLiteWriter) Finalize() error {
	if w.tx == nil {
		panic("tiles3d: finalize called twice")
	}
	w.logger.Debug("tiles3d: commit", "count", w.count)
	err := errors.Join(w.stmt.Close(), w.tx.Commit())
	w.tx = nil
	return err
}

func (w *SQLiteWriter) Close() error {
	if w.tx != nil {
		w.stmt.Close()
		w.tx.Rollback()
		w.tx = nil
	}
	return w.db.Close()
}
