package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO
)

// sqliteMetadataStore implements MetadataStore over modernc.org/sqlite.
// It owns every Chunk column except the vector itself, plus the Library
// table. WAL mode plus a single-connection pool matches the teacher's
// SQLiteBM25Index setup, which exists to avoid the lock-contention failures
// that come from a multi-writer pool against one SQLite file.
type sqliteMetadataStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ MetadataStore = (*sqliteMetadataStore)(nil)

// validateMetadataIntegrity mirrors the teacher's corruption-detection
// pattern: run a quick integrity check before trusting an existing file,
// since a process killed mid-write can leave a SQLite file that opens but
// returns garbage.
func validateMetadataIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// NewSQLiteMetadataStore opens (creating if absent) the metadata database
// at path. If path is empty, an in-memory database is used (tests).
func NewSQLiteMetadataStore(path string) (MetadataStore, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create metadata dir %s: %w", dir, err)
		}

		if validErr := validateMetadataIntegrity(path); validErr != nil {
			slog.Warn("metadata_store_corrupted",
				slog.String("path", path), slog.String("error", validErr.Error()))
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				return nil, fmt.Errorf("store: metadata db corrupted at %s and cannot remove: %w (original: %v)", path, rmErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("metadata_store_cleared", slog.String("path", path))
		}

		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open metadata db: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: set pragma %q: %w", p, err)
		}
	}

	s := &sqliteMetadataStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return s, nil
}

func (s *sqliteMetadataStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS libraries (
		id                 TEXT PRIMARY KEY,
		name               TEXT NOT NULL,
		context7_id        TEXT NOT NULL UNIQUE,
		language           TEXT NOT NULL,
		ecosystem          TEXT NOT NULL,
		description        TEXT,
		short_description  TEXT,
		aliases_json       TEXT,
		keywords_json      TEXT,
		category           TEXT,
		homepage_url       TEXT,
		repository_url     TEXT,
		author             TEXT,
		license            TEXT,
		status             TEXT NOT NULL DEFAULT 'active',
		popularity_score   INTEGER NOT NULL DEFAULT 0,
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL,
		UNIQUE(ecosystem, name)
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id            TEXT PRIMARY KEY,
		document_id   TEXT NOT NULL,
		library_id    TEXT NOT NULL REFERENCES libraries(id),
		title         TEXT,
		text          TEXT NOT NULL,
		chunk_index   INTEGER NOT NULL,
		chunk_total   INTEGER NOT NULL,
		source        TEXT,
		source_type   TEXT,
		status        TEXT NOT NULL DEFAULT 'active',
		created_at    TEXT NOT NULL,
		metadata_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_library_id ON chunks(library_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_status ON chunks(status);

	CREATE TABLE IF NOT EXISTS kv_state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const timeLayout = time.RFC3339Nano

func (s *sqliteMetadataStore) UpsertLibrary(ctx context.Context, lib *Library) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	aliasesJSON, err := json.Marshal(lib.Aliases)
	if err != nil {
		return fmt.Errorf("store: marshal aliases: %w", err)
	}
	keywordsJSON, err := json.Marshal(lib.Keywords)
	if err != nil {
		return fmt.Errorf("store: marshal keywords: %w", err)
	}
	if lib.Status == "" {
		lib.Status = LibraryStatusActive
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO libraries (
			id, name, context7_id, language, ecosystem, description,
			short_description, aliases_json, keywords_json, category,
			homepage_url, repository_url, author, license, status,
			popularity_score, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, context7_id=excluded.context7_id,
			language=excluded.language, ecosystem=excluded.ecosystem,
			description=excluded.description, short_description=excluded.short_description,
			aliases_json=excluded.aliases_json, keywords_json=excluded.keywords_json,
			category=excluded.category, homepage_url=excluded.homepage_url,
			repository_url=excluded.repository_url, author=excluded.author,
			license=excluded.license, status=excluded.status,
			popularity_score=excluded.popularity_score, updated_at=excluded.updated_at
	`,
		lib.ID, lib.Name, lib.Context7ID, lib.Language, lib.Ecosystem, lib.Description,
		lib.ShortDescription, string(aliasesJSON), string(keywordsJSON), lib.Category,
		lib.HomepageURL, lib.RepositoryURL, lib.Author, lib.License, string(lib.Status),
		lib.PopularityScore, lib.CreatedAt.Format(timeLayout), lib.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return ErrDuplicateLibrary
		}
		return fmt.Errorf("store: upsert library: %w", err)
	}
	return nil
}

func isUniqueConstraintErr(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *sqliteMetadataStore) GetLibrary(ctx context.Context, id string) (*Library, error) {
	return s.scanLibrary(ctx, "id = ?", id)
}

func (s *sqliteMetadataStore) GetLibraryByContext7ID(ctx context.Context, context7ID string) (*Library, error) {
	return s.scanLibrary(ctx, "context7_id = ?", context7ID)
}

func (s *sqliteMetadataStore) GetLibrariesByName(ctx context.Context, name string) ([]*Library, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, context7_id, language, ecosystem, description,
			short_description, aliases_json, keywords_json, category,
			homepage_url, repository_url, author, license, status,
			popularity_score, created_at, updated_at
		FROM libraries WHERE name = ? COLLATE NOCASE`, name)
	if err != nil {
		return nil, fmt.Errorf("store: get libraries by name: %w", err)
	}
	defer rows.Close()

	var out []*Library
	for rows.Next() {
		lib, err := scanLibraryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan library row: %w", err)
		}
		out = append(out, lib)
	}
	return out, rows.Err()
}

func (s *sqliteMetadataStore) scanLibrary(ctx context.Context, whereClause string, arg any) (*Library, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, context7_id, language, ecosystem, description,
			short_description, aliases_json, keywords_json, category,
			homepage_url, repository_url, author, license, status,
			popularity_score, created_at, updated_at
		FROM libraries WHERE `+whereClause, arg)

	lib, err := scanLibraryRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return lib, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLibraryRow(row rowScanner) (*Library, error) {
	var lib Library
	var aliasesJSON, keywordsJSON, status, createdAt, updatedAt string

	err := row.Scan(
		&lib.ID, &lib.Name, &lib.Context7ID, &lib.Language, &lib.Ecosystem, &lib.Description,
		&lib.ShortDescription, &aliasesJSON, &keywordsJSON, &lib.Category,
		&lib.HomepageURL, &lib.RepositoryURL, &lib.Author, &lib.License, &status,
		&lib.PopularityScore, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	lib.Status = LibraryStatus(status)
	if aliasesJSON != "" {
		_ = json.Unmarshal([]byte(aliasesJSON), &lib.Aliases)
	}
	if keywordsJSON != "" {
		_ = json.Unmarshal([]byte(keywordsJSON), &lib.Keywords)
	}
	lib.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	lib.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)

	return &lib, nil
}

func (s *sqliteMetadataStore) ListLibraries(ctx context.Context, filter LibraryFilter, limit, offset int) ([]*Library, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	query := `SELECT id, name, context7_id, language, ecosystem, description,
		short_description, aliases_json, keywords_json, category,
		homepage_url, repository_url, author, license, status,
		popularity_score, created_at, updated_at FROM libraries WHERE 1=1`
	var args []any

	if filter.Ecosystem != "" {
		query += " AND ecosystem = ?"
		args = append(args, filter.Ecosystem)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY popularity_score DESC, name ASC"
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list libraries: %w", err)
	}
	defer rows.Close()

	var out []*Library
	for rows.Next() {
		lib, err := scanLibraryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan library row: %w", err)
		}
		out = append(out, lib)
	}
	return out, rows.Err()
}

func (s *sqliteMetadataStore) DeleteLibrary(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE library_id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("store: count chunks for library: %w", err)
	}
	if count > 0 {
		return ErrLibraryInUse
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM libraries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete library: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteMetadataStore) CountChunksForLibrary(ctx context.Context, libraryID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE library_id = ?`, libraryID).Scan(&count)
	return count, err
}

func (s *sqliteMetadataStore) CountDocumentsForLibrary(ctx context.Context, libraryID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT document_id) FROM chunks WHERE library_id = ? AND status = ?`,
		libraryID, string(ChunkStatusActive)).Scan(&count)
	return count, err
}

// AppendChunks writes every chunk inside one transaction: either all rows
// land or none do, satisfying the "atomic from the caller's viewpoint"
// requirement even though the vector index (written separately by the
// caller) has no native transaction to join.
func (s *sqliteMetadataStore) AppendChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (
			id, document_id, library_id, title, text, chunk_index,
			chunk_total, source, source_type, status, created_at, metadata_json
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		return fmt.Errorf("store: prepare append: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		status := c.Status
		if status == "" {
			status = ChunkStatusActive
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.DocumentID, c.LibraryID, c.Title, c.Text, c.ChunkIndex,
			c.ChunkTotal, c.Source, c.SourceType, string(status), c.CreatedAt.Format(timeLayout), c.MetadataJSON,
		); err != nil {
			return fmt.Errorf("store: insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// UpdateChunksStatus flips every row for documentID to status in one
// statement, used to finalize a document's pending rows at the end of
// ingestion (spec §5 provisional-row tagging).
func (s *sqliteMetadataStore) UpdateChunksStatus(ctx context.Context, documentID string, status ChunkStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `UPDATE chunks SET status = ? WHERE document_id = ?`, string(status), documentID)
	if err != nil {
		return fmt.Errorf("store: update chunk status: %w", err)
	}
	return nil
}

func (s *sqliteMetadataStore) DeleteChunksWhere(ctx context.Context, filter ChunkFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	where, args := chunkFilterClause(filter)
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("store: delete chunks: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *sqliteMetadataStore) ScanChunksWhere(ctx context.Context, filter ChunkFilter) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	where, args := chunkFilterClause(filter)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, library_id, title, text, chunk_index,
			chunk_total, source, source_type, status, created_at, metadata_json
		FROM chunks WHERE `+where+` ORDER BY document_id, chunk_index`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: scan chunks: %w", err)
	}
	defer rows.Close()

	return scanChunkRows(rows)
}

func (s *sqliteMetadataStore) GetChunksByID(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, library_id, title, text, chunk_index,
			chunk_total, source, source_type, status, created_at, metadata_json
		FROM chunks WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get chunks by id: %w", err)
	}
	defer rows.Close()

	return scanChunkRows(rows)
}

func scanChunkRows(rows *sql.Rows) ([]*Chunk, error) {
	var out []*Chunk
	for rows.Next() {
		var c Chunk
		var status, createdAt string
		if err := rows.Scan(
			&c.ID, &c.DocumentID, &c.LibraryID, &c.Title, &c.Text, &c.ChunkIndex,
			&c.ChunkTotal, &c.Source, &c.SourceType, &status, &createdAt, &c.MetadataJSON,
		); err != nil {
			return nil, fmt.Errorf("store: scan chunk row: %w", err)
		}
		c.Status = ChunkStatus(status)
		c.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func chunkFilterClause(filter ChunkFilter) (string, []any) {
	clause := "1=1"
	var args []any
	if filter.LibraryID != "" {
		clause += " AND library_id = ?"
		args = append(args, filter.LibraryID)
	}
	if filter.DocumentID != "" {
		clause += " AND document_id = ?"
		args = append(args, filter.DocumentID)
	}
	if filter.Status != "" {
		clause += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedBefore.IsZero() {
		clause += " AND created_at < ?"
		args = append(args, filter.CreatedBefore.Format(timeLayout))
	}
	return clause, args
}

func (s *sqliteMetadataStore) GetState(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get state: %w", err)
	}
	return value, true, nil
}

func (s *sqliteMetadataStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("store: set state: %w", err)
	}
	return nil
}

func (s *sqliteMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}
