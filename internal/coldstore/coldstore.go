// Package coldstore implements the content-addressed document store: a
// SQLite-backed (modernc.org/sqlite, pure Go) schema of content,
// documents, collections, and sessions tables with an FTS5 full-text
// index kept in sync via triggers.
package coldstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aagt-run/aagtcore/pkg/models"
)

// MaxContentSize bounds a single document body, matching the original
// store's 10 MiB cap.
const MaxContentSize = 10 * 1024 * 1024

// DocidLength is the number of hex characters of the content hash used
// as the short document identifier.
const DocidLength = 6

// Store is the cold, durable content-addressed document store.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens a store at dbPath, initializing its schema.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, fmt.Errorf("coldstore: create dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("coldstore: open: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer SQLite; avoid concurrent-writer lock storms

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS content (
			hash TEXT PRIMARY KEY,
			doc TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			path TEXT NOT NULL,
			title TEXT NOT NULL,
			hash TEXT NOT NULL,
			summary TEXT,
			created_at TEXT NOT NULL,
			modified_at TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (hash) REFERENCES content(hash) ON DELETE CASCADE,
			UNIQUE(collection, path)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection, active)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(hash)`,
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			description TEXT,
			glob_pattern TEXT NOT NULL DEFAULT '**/*.md',
			root_path TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			filepath, title, body,
			tokenize='porter unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents
		WHEN new.active = 1
		BEGIN
			INSERT INTO documents_fts(rowid, filepath, title, body)
			SELECT new.id, new.collection || '/' || new.path, new.title,
			       (SELECT doc FROM content WHERE hash = new.hash);
		END`,
		`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents
		BEGIN
			DELETE FROM documents_fts WHERE rowid = old.id AND new.active = 0;
			INSERT OR REPLACE INTO documents_fts(rowid, filepath, title, body)
			SELECT new.id, new.collection || '/' || new.path, new.title,
			       (SELECT doc FROM content WHERE hash = new.hash)
			WHERE new.active = 1;
		END`,
		`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents
		BEGIN
			DELETE FROM documents_fts WHERE rowid = old.id;
		END`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("coldstore: schema init %q: %w", stmt, err)
		}
	}
	return nil
}

func hashContent(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

func docidFromHash(hash string) string {
	if len(hash) < DocidLength {
		return hash
	}
	return hash[:DocidLength]
}

// StoreDocument writes body under (collection, path), deduplicating
// identical content by hash and updating metadata in place when the path
// already exists.
func (s *Store) StoreDocument(ctx context.Context, collection, path, title, body string) (*models.Document, error) {
	if len(body) > MaxContentSize {
		return nil, fmt.Errorf("coldstore: document too large: %d bytes (max %d)", len(body), MaxContentSize)
	}

	hash := hashContent(body)
	docid := docidFromHash(hash)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO content (hash, doc, created_at) VALUES (?, ?, ?)`,
		hash, body, now.Format(time.RFC3339)); err != nil {
		return nil, err
	}

	var existingID int64
	var existingHash string
	err = tx.QueryRowContext(ctx,
		`SELECT id, hash FROM documents WHERE collection = ? AND path = ?`,
		collection, path).Scan(&existingID, &existingHash)

	switch {
	case err == sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, path, title, hash, created_at, modified_at, active)
			 VALUES (?, ?, ?, ?, ?, ?, 1)`,
			collection, path, title, hash, now.Format(time.RFC3339), now.Format(time.RFC3339))
		if err != nil {
			return nil, err
		}
		existingID, err = res.LastInsertId()
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case existingHash == hash:
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET title = ?, modified_at = ? WHERE id = ?`,
			title, now.Format(time.RFC3339), existingID); err != nil {
			return nil, err
		}
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET title = ?, hash = ?, modified_at = ?, summary = NULL WHERE id = ?`,
			title, hash, now.Format(time.RFC3339), existingID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &models.Document{
		ID:         existingID,
		Collection: collection,
		Path:       path,
		Title:      title,
		Hash:       hash,
		Docid:      docid,
		Body:       body,
		CreatedAt:  now,
		ModifiedAt: now,
		Active:     true,
	}, nil
}

// GetByPath fetches an active document by its virtual (collection, path).
func (s *Store) GetByPath(ctx context.Context, collection, path string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT d.id, d.collection, d.path, d.title, d.hash, d.created_at, d.modified_at, d.active, c.doc, d.summary
		 FROM documents d JOIN content c ON d.hash = c.hash
		 WHERE d.collection = ? AND d.path = ? AND d.active = 1`,
		collection, path)
	return scanDocument(row)
}

// GetByVirtualPath resolves an aagt:// reference (see VirtualPath) and
// fetches the document it names. Callers that already have a separate
// collection and path should call GetByPath directly; this is for
// references that travel as a single opaque string, e.g. in a tool
// call argument or a scheduled job's payload.
func (s *Store) GetByVirtualPath(ctx context.Context, ref string) (*models.Document, error) {
	v, err := ParseVirtualPath(ref)
	if err != nil {
		return nil, err
	}
	return s.GetByPath(ctx, v.Collection, v.Path)
}

// GetByDocid fetches an active document whose content hash starts with
// the given short docid prefix.
func (s *Store) GetByDocid(ctx context.Context, docid string) (*models.Document, error) {
	normalized := strings.ToLower(strings.TrimSpace(docid))
	row := s.db.QueryRowContext(ctx,
		`SELECT d.id, d.collection, d.path, d.title, d.hash, d.created_at, d.modified_at, d.active, c.doc, d.summary
		 FROM documents d JOIN content c ON d.hash = c.hash
		 WHERE d.hash LIKE ? AND d.active = 1 LIMIT 1`,
		normalized+"%")
	return scanDocument(row)
}

func scanDocument(row *sql.Row) (*models.Document, error) {
	var d models.Document
	var createdAt, modifiedAt string
	var summary sql.NullString
	err := row.Scan(&d.ID, &d.Collection, &d.Path, &d.Title, &d.Hash, &createdAt, &modifiedAt, &d.Active, &d.Body, &summary)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.Docid = docidFromHash(d.Hash)
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	d.ModifiedAt, _ = time.Parse(time.RFC3339, modifiedAt)
	if summary.Valid {
		s := summary.String
		d.Summary = &s
	}
	return &d, nil
}

// SearchFTS runs a BM25 full-text search across all active documents.
func (s *Store) SearchFTS(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	return s.searchFTS(ctx, query, "", limit)
}

// SearchFTSInCollection scopes the same search to a single collection.
func (s *Store) SearchFTSInCollection(ctx context.Context, query, collection string, limit int) ([]models.SearchResult, error) {
	return s.searchFTS(ctx, query, collection, limit)
}

func (s *Store) searchFTS(ctx context.Context, query, collection string, limit int) ([]models.SearchResult, error) {
	sqlQuery := `SELECT d.id, d.collection, d.path, d.title, d.hash, d.created_at, d.modified_at, d.active,
			bm25(documents_fts) as score,
			snippet(documents_fts, 2, '<mark>', '</mark>', '...', 32) as snippet,
			d.summary
		FROM documents d
		JOIN documents_fts ON documents_fts.rowid = d.id
		WHERE documents_fts MATCH ? AND d.active = 1`
	args := []any{query}
	if collection != "" {
		sqlQuery += ` AND d.collection = ?`
		args = append(args, collection)
	}
	sqlQuery += ` ORDER BY score LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var d models.Document
		var createdAt, modifiedAt string
		var score float64
		var snippet string
		var summary sql.NullString
		if err := rows.Scan(&d.ID, &d.Collection, &d.Path, &d.Title, &d.Hash, &createdAt, &modifiedAt, &d.Active, &score, &snippet, &summary); err != nil {
			return nil, err
		}
		d.Docid = docidFromHash(d.Hash)
		d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		d.ModifiedAt, _ = time.Parse(time.RFC3339, modifiedAt)
		if summary.Valid {
			sv := summary.String
			d.Summary = &sv
		}
		if score < 0 {
			score = -score
		}
		results = append(results, models.SearchResult{Document: d, Score: score, Snippet: snippet})
	}
	return results, rows.Err()
}

// CreateCollection registers or replaces a named collection.
func (s *Store) CreateCollection(ctx context.Context, c models.Collection) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO collections (name, description, glob_pattern, root_path, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Description, c.GlobPattern, c.RootPath, time.Now().UTC().Format(time.RFC3339))
	return err
}

// ListCollections returns every registered collection.
func (s *Store) ListCollections(ctx context.Context) ([]models.Collection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, description, glob_pattern, root_path, created_at FROM collections`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Collection
	for rows.Next() {
		var c models.Collection
		var createdAt string
		var rootPath sql.NullString
		if err := rows.Scan(&c.Name, &c.Description, &c.GlobPattern, &rootPath, &createdAt); err != nil {
			return nil, err
		}
		c.RootPath = rootPath.String
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Stats reports aggregate counts plus the on-disk database size.
func (s *Store) Stats(ctx context.Context) (models.StoreStats, error) {
	var stats models.StoreStats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE active = 1`).Scan(&stats.TotalDocuments); err != nil {
		return stats, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections`).Scan(&stats.TotalCollections); err != nil {
		return stats, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content`).Scan(&stats.TotalUniqueContent); err != nil {
		return stats, err
	}
	if s.dbPath != ":memory:" {
		if fi, err := os.Stat(s.dbPath); err == nil {
			stats.DatabaseSizeBytes = fi.Size()
		}
	}
	return stats, nil
}

// Vacuum reclaims free space in the underlying database file.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `VACUUM`)
	return err
}

// VacuumContent deletes content blobs no longer referenced by any
// document, returning the number removed.
func (s *Store) VacuumContent(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content WHERE hash NOT IN (SELECT hash FROM documents)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateSummary sets the generated summary for a document.
func (s *Store) UpdateSummary(ctx context.Context, collection, path, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET summary = ? WHERE collection = ? AND path = ?`,
		summary, collection, path)
	return err
}

// StoreSession persists an opaque session blob, keyed by id.
func (s *Store) StoreSession(ctx context.Context, id, data string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (id, data, updated_at) VALUES (?, ?, ?)`,
		id, data, time.Now().UTC().Format(time.RFC3339))
	return err
}

// LoadSession returns a previously stored session blob, if any.
func (s *Store) LoadSession(ctx context.Context, id string) (string, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return data, true, nil
}

// DeleteSession removes a stored session blob.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}
