package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/scopeworks/intake/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Results survive
// process restarts, so a re-run of the CLI can still hit the cache.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path, configures WAL mode,
// and creates the cache table.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analysis_cache (
	key        TEXT PRIMARY KEY,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_cache_expires_at ON analysis_cache(expires_at);
`

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(sqliteMigration)
	return eris.Wrap(err, "cache: migrate")
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*model.StructuredResult, bool, error) {
	var payload string
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT result, expires_at FROM analysis_cache WHERE key = ?`, key,
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: get")
	}
	if time.Now().After(expiresAt) {
		return nil, false, nil
	}

	var result model.StructuredResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, false, eris.Wrap(err, "cache: unmarshal result")
	}
	return &result, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, result *model.StructuredResult, ttl time.Duration) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "cache: marshal result")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_cache (key, result, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET result = excluded.result, expires_at = excluded.expires_at`,
		key, string(payload), time.Now().Add(ttl),
	)
	return eris.Wrap(err, "cache: set")
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM analysis_cache WHERE expires_at < ?`, time.Now(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "cache: delete expired")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "cache: rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analysis_cache WHERE expires_at >= ?`, time.Now(),
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "cache: count")
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
