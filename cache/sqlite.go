package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZaguanLabs/transctl"
	_ "modernc.org/sqlite"
)

// DefaultFileName is the store file created inside the working directory.
const DefaultFileName = "store.sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS tm (
	lang         TEXT    NOT NULL,
	hash         TEXT    NOT NULL,
	translation  TEXT    NOT NULL,
	created_at   INTEGER NOT NULL,
	last_used_at INTEGER NOT NULL,
	PRIMARY KEY (lang, hash)
);
CREATE INDEX IF NOT EXISTS ix_tm_last_used_at ON tm (last_used_at);
`

// SQLiteStore is a translation memory backed by a single SQLite file.
//
// The store holds one connection. While a Session is open, calls made
// directly on the store wait for it to finish, so a caller must commit or
// roll back its session before using the store itself.
type SQLiteStore struct {
	db   *sql.DB
	path string
	opts options
}

var (
	_ Store                      = (*SQLiteStore)(nil)
	_ transctl.TranslationMemory = (*SQLiteStore)(nil)
	_ transctl.MemorySession     = (*sqliteSession)(nil)
)

// Open opens (creating if needed) the store at path.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &transctl.StoreError{Message: "store path is required"}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &transctl.StoreError{Message: "create store directory", Cause: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &transctl.StoreError{Message: "open sqlite", Cause: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, path: path, opts: defaultOptions()}
	for _, opt := range opts {
		opt(&s.opts)
	}

	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	// auto_vacuum only takes effect when set before the first table exists.
	pragmas := []string{
		"PRAGMA auto_vacuum = INCREMENTAL;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return &transctl.StoreError{Message: fmt.Sprintf("exec %q", p), Cause: err}
		}
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return &transctl.StoreError{Message: "create schema", Cause: err}
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lookup(ctx context.Context, q querier, key transctl.CacheKey, now int64) (string, bool, error) {
	var translation string
	err := q.QueryRowContext(ctx,
		`UPDATE tm SET last_used_at = ? WHERE lang = ? AND hash = ? RETURNING translation`,
		now, key.Lang, key.Hash,
	).Scan(&translation)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &transctl.StoreError{Message: "lookup " + key.String(), Cause: err}
	}
	return translation, true, nil
}

func upsert(ctx context.Context, q querier, key transctl.CacheKey, translation string, now int64) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO tm (lang, hash, translation, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (lang, hash) DO UPDATE SET
		   translation = excluded.translation,
		   last_used_at = excluded.last_used_at`,
		key.Lang, key.Hash, translation, now, now,
	)
	if err != nil {
		return &transctl.StoreError{Message: "upsert " + key.String(), Cause: err}
	}
	return nil
}

// Lookup returns the translation for key and refreshes its last use.
func (s *SQLiteStore) Lookup(ctx context.Context, key transctl.CacheKey) (string, bool, error) {
	return lookup(ctx, s.db, key, s.opts.now().Unix())
}

// Upsert inserts or replaces the translation for key.
func (s *SQLiteStore) Upsert(ctx context.Context, key transctl.CacheKey, translation string) error {
	return upsert(ctx, s.db, key, translation, s.opts.now().Unix())
}

// Put stores e, keeping the most recent last use on conflict.
func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tm (lang, hash, translation, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (lang, hash) DO UPDATE SET
		   translation = excluded.translation,
		   created_at = MIN(tm.created_at, excluded.created_at),
		   last_used_at = MAX(tm.last_used_at, excluded.last_used_at)`,
		e.Lang, e.Hash, e.Translation, e.CreatedAt, e.LastUsedAt,
	)
	if err != nil {
		return &transctl.StoreError{Message: "put " + e.Key().String(), Cause: err}
	}
	return nil
}

// Session starts a transaction. Lookups and writes made through it become
// visible to other readers only on Commit.
func (s *SQLiteStore) Session(ctx context.Context) (transctl.MemorySession, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &transctl.StoreError{Message: "begin session", Cause: err}
	}
	return &sqliteSession{tx: tx, now: s.opts.now}, nil
}

type sqliteSession struct {
	tx  *sql.Tx
	now func() time.Time
}

func (ss *sqliteSession) Lookup(ctx context.Context, key transctl.CacheKey) (string, bool, error) {
	return lookup(ctx, ss.tx, key, ss.now().Unix())
}

func (ss *sqliteSession) Upsert(ctx context.Context, key transctl.CacheKey, translation string) error {
	return upsert(ctx, ss.tx, key, translation, ss.now().Unix())
}

func (ss *sqliteSession) Commit() error {
	if err := ss.tx.Commit(); err != nil {
		return &transctl.StoreError{Message: "commit session", Cause: err}
	}
	return nil
}

// Rollback discards the session. Rolling back a finished session is a no-op.
func (ss *sqliteSession) Rollback() error {
	if err := ss.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return &transctl.StoreError{Message: "rollback session", Cause: err}
	}
	return nil
}

func (s *SQLiteStore) count(ctx context.Context, q querier) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tm`).Scan(&n); err != nil {
		return 0, &transctl.StoreError{Message: "count rows", Cause: err}
	}
	return n, nil
}

// fileSize returns the size of the database file, 0 if it does not exist yet.
func (s *SQLiteStore) fileSize() (int64, error) {
	fi, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, &transctl.StoreError{Message: "stat store", Cause: err}
	}
	return fi.Size(), nil
}

// Prune applies policy. It does nothing unless the file is larger than
// MaxDBMB, the table holds more than MaxRows rows or at least one row is
// older than TTLDays. When triggered it deletes expired rows, then the least
// recently used rows down to MaxRows, then reclaims free pages if Vacuum is
// set.
func (s *SQLiteStore) Prune(ctx context.Context, policy PrunePolicy) (PruneResult, error) {
	var res PruneResult
	now := s.opts.now()

	rows, err := s.count(ctx, s.db)
	if err != nil {
		return res, err
	}
	res.RowsBefore, res.RowsAfter = rows, rows

	size, err := s.fileSize()
	if err != nil {
		return res, err
	}
	if policy.MaxDBMB > 0 && size > int64(policy.MaxDBMB)*1024*1024 {
		res.Triggered = true
	}
	if policy.MaxRows > 0 && rows > int64(policy.MaxRows) {
		res.Triggered = true
	}
	if policy.TTLDays > 0 {
		var expired bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM tm WHERE last_used_at < ?)`,
			ttlCutoff(now, policy.TTLDays),
		).Scan(&expired)
		if err != nil {
			return res, &transctl.StoreError{Message: "check expired rows", Cause: err}
		}
		if expired {
			res.Triggered = true
		}
	}
	if !res.Triggered {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, &transctl.StoreError{Message: "begin prune", Cause: err}
	}
	defer tx.Rollback()

	if policy.TTLDays > 0 {
		r, err := tx.ExecContext(ctx, `DELETE FROM tm WHERE last_used_at < ?`, ttlCutoff(now, policy.TTLDays))
		if err != nil {
			return res, &transctl.StoreError{Message: "delete expired rows", Cause: err}
		}
		res.Expired, _ = r.RowsAffected()
	}

	if policy.MaxRows > 0 {
		remaining, err := s.count(ctx, tx)
		if err != nil {
			return res, err
		}
		if over := remaining - int64(policy.MaxRows); over > 0 {
			r, err := tx.ExecContext(ctx,
				`DELETE FROM tm WHERE rowid IN (
				   SELECT rowid FROM tm ORDER BY last_used_at ASC, created_at ASC LIMIT ?
				 )`, over)
			if err != nil {
				return res, &transctl.StoreError{Message: "evict rows", Cause: err}
			}
			res.Evicted, _ = r.RowsAffected()
		}
	}

	if err := tx.Commit(); err != nil {
		return res, &transctl.StoreError{Message: "commit prune", Cause: err}
	}
	res.RowsAfter = res.RowsBefore - res.Expired - res.Evicted

	if policy.Vacuum {
		if _, err := s.db.ExecContext(ctx, `PRAGMA incremental_vacuum;`); err != nil {
			return res, &transctl.StoreError{Message: "incremental vacuum", Cause: err}
		}
		res.Vacuumed = true
	}
	return res, nil
}

// Stats returns row counts per language, the use time range and file size.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Languages: make(map[string]int64)}

	rows, err := s.db.QueryContext(ctx, `SELECT lang, COUNT(*) FROM tm GROUP BY lang`)
	if err != nil {
		return st, &transctl.StoreError{Message: "stats", Cause: err}
	}
	defer rows.Close()
	for rows.Next() {
		var lang string
		var n int64
		if err := rows.Scan(&lang, &n); err != nil {
			return st, &transctl.StoreError{Message: "stats", Cause: err}
		}
		st.Languages[lang] = n
		st.Rows += n
	}
	if err := rows.Err(); err != nil {
		return st, &transctl.StoreError{Message: "stats", Cause: err}
	}

	if st.Rows > 0 {
		var oldest, newest int64
		err := s.db.QueryRowContext(ctx, `SELECT MIN(last_used_at), MAX(last_used_at) FROM tm`).Scan(&oldest, &newest)
		if err != nil {
			return st, &transctl.StoreError{Message: "stats", Cause: err}
		}
		st.OldestUse = time.Unix(oldest, 0)
		st.NewestUse = time.Unix(newest, 0)
	}

	st.SizeBytes, err = s.fileSize()
	return st, err
}

// Entries returns every row ordered by language and hash.
func (s *SQLiteStore) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lang, hash, translation, created_at, last_used_at FROM tm ORDER BY lang, hash`)
	if err != nil {
		return nil, &transctl.StoreError{Message: "list entries", Cause: err}
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Lang, &e.Hash, &e.Translation, &e.CreatedAt, &e.LastUsedAt); err != nil {
			return nil, &transctl.StoreError{Message: "list entries", Cause: err}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &transctl.StoreError{Message: "list entries", Cause: err}
	}
	return out, nil
}
