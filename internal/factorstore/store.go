// Package factorstore persists completed factorizations in SQLite so repeat
// requests for the same modulus skip the search.
package factorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/RowanDark/cryptbreak/internal/numtheory"
)

const schema = `
CREATE TABLE IF NOT EXISTS factorizations (
	id         TEXT PRIMARY KEY,
	n          TEXT UNIQUE NOT NULL,
	factors    TEXT NOT NULL, -- JSON array of decimal strings
	source     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// Store is a SQLite-backed numtheory.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ numtheory.Store = (*Store)(nil)

// Open opens or creates the database at path and runs migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open factor store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate factor store: %w", err)
	}
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored factorization of the decimal n.
func (s *Store) Get(ctx context.Context, n string) (numtheory.FactorResult, bool, error) {
	var raw, source string
	err := s.db.QueryRowContext(ctx,
		`SELECT factors, source FROM factorizations WHERE n = ?`, n,
	).Scan(&raw, &source)
	if errors.Is(err, sql.ErrNoRows) {
		return numtheory.FactorResult{}, false, nil
	}
	if err != nil {
		return numtheory.FactorResult{}, false, fmt.Errorf("query factorization: %w", err)
	}
	var factors []string
	if err := json.Unmarshal([]byte(raw), &factors); err != nil {
		return numtheory.FactorResult{}, false, fmt.Errorf("unmarshal factors for %s: %w", n, err)
	}
	if factors == nil {
		factors = []string{}
	}
	return numtheory.FactorResult{N: n, Factors: factors, Source: source}, true, nil
}

// Put stores res, replacing any earlier factorization of the same n.
func (s *Store) Put(ctx context.Context, res numtheory.FactorResult) error {
	if res.N == "" {
		return errors.New("factorization has no n")
	}
	factors := res.Factors
	if factors == nil {
		factors = []string{}
	}
	encoded, err := json.Marshal(factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO factorizations (id, n, factors, source, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(n) DO UPDATE SET factors = excluded.factors, source = excluded.source`,
		uuid.New().String(), res.N, string(encoded), res.Source, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert factorization: %w", err)
	}
	s.logger.Debug("stored factorization", "n", res.N, "factors", len(factors), "source", res.Source)
	return nil
}

// Count returns the number of stored factorizations.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM factorizations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count factorizations: %w", err)
	}
	return n, nil
}
