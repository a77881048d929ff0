// Package sqlite provides the local durable cache: namespaced key/value rows
// and a queue of mutations waiting to reach the primary claim store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Cache namespaces.
const (
	NamespaceFarmerClaims  = "farmerClaims"
	NamespaceFarmerData    = "farmerData"
	NamespaceOfficialData  = "officialData"
	NamespaceMockFarmers   = "mockFarmers"
	NamespaceRevokedTokens = "revokedTokens"
)

// Mutation queue states.
const (
	MutationPending = "pending"
	MutationDone    = "done"
	MutationFailed  = "failed"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Store is the SQLite-backed local cache.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one cached value.
type Entry struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

// PendingMutation is a queued write that has not reached the primary store.
type PendingMutation struct {
	Seq       int64     `json:"seq"`
	ID        string    `json:"id"`
	ClaimID   string    `json:"claimId"`
	Kind      string    `json:"kind"`
	Payload   []byte    `json:"-"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewStore opens (or creates) the cache database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// EnsureSchema creates the cache tables if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (namespace, key)
	);

	CREATE TABLE IF NOT EXISTS pending_mutations (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		claim_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pending_mutations_status ON pending_mutations(status, seq);
	CREATE INDEX IF NOT EXISTS idx_pending_mutations_claim ON pending_mutations(claim_id);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating cache schema: %w", err)
	}
	return nil
}

// Put stores value as JSON under (namespace, key), replacing any previous value.
func (s *Store) Put(ctx context.Context, namespace, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling %s/%s: %w", namespace, key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, string(data), timeNow().UTC())
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Get decodes the value at (namespace, key) into dst.
func (s *Store) Get(ctx context.Context, namespace, key string, dst interface{}) error {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE namespace = ? AND key = ?`, namespace, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("cache %s/%s: %w", namespace, key, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading %s/%s: %w", namespace, key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decoding %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Delete removes (namespace, key). Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE namespace = ? AND key = ?`, namespace, key)
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", namespace, key, err)
	}
	return nil
}

// List returns every entry in namespace ordered by key.
func (s *Store) List(ctx context.Context, namespace string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, updated_at FROM cache_entries WHERE namespace = ? ORDER BY key`, namespace)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", namespace, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var raw string
		if err := rows.Scan(&e.Key, &raw, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", namespace, err)
		}
		e.Value = []byte(raw)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListAs decodes every value in namespace into T.
func ListAs[T any](ctx context.Context, s *Store, namespace string) ([]T, error) {
	entries, err := s.List(ctx, namespace)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", namespace, e.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Enqueue appends a mutation to the replay queue.
func (s *Store) Enqueue(ctx context.Context, claimID, kind string, payload interface{}) (*PendingMutation, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s mutation: %w", kind, err)
	}
	m := &PendingMutation{
		ID:        uuid.New().String(),
		ClaimID:   claimID,
		Kind:      kind,
		Payload:   data,
		Status:    MutationPending,
		CreatedAt: timeNow().UTC(),
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_mutations (id, claim_id, kind, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ClaimID, m.Kind, string(m.Payload), m.Status, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("queueing %s mutation: %w", kind, err)
	}
	m.Seq, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading queue sequence: %w", err)
	}
	return m, nil
}

// Mutations returns queued mutations with the given status in queue order.
// An empty status returns all of them.
func (s *Store) Mutations(ctx context.Context, status string) ([]PendingMutation, error) {
	query := `SELECT seq, id, claim_id, kind, payload, status, attempts, COALESCE(last_error, ''), created_at
		FROM pending_mutations`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing mutations: %w", err)
	}
	defer rows.Close()

	var out []PendingMutation
	for rows.Next() {
		var m PendingMutation
		var payload string
		if err := rows.Scan(&m.Seq, &m.ID, &m.ClaimID, &m.Kind, &payload, &m.Status, &m.Attempts, &m.LastError, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning mutation: %w", err)
		}
		m.Payload = []byte(payload)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Pending is Mutations(ctx, MutationPending).
func (s *Store) Pending(ctx context.Context) ([]PendingMutation, error) {
	return s.Mutations(ctx, MutationPending)
}

// HasPending reports whether claimID still has queued writes.
func (s *Store) HasPending(ctx context.Context, claimID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_mutations WHERE claim_id = ? AND status = ?`, claimID, MutationPending).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("counting mutations for %s: %w", claimID, err)
	}
	return n > 0, nil
}

// Complete marks a mutation as replayed.
func (s *Store) Complete(ctx context.Context, seq int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_mutations SET status = ?, attempts = attempts + 1, last_error = NULL WHERE seq = ?`,
		MutationDone, seq)
	if err != nil {
		return fmt.Errorf("completing mutation %d: %w", seq, err)
	}
	return nil
}

// Fail records a replay error. A terminal failure leaves the queue; otherwise
// the mutation stays pending and is retried on the next reconcile.
func (s *Store) Fail(ctx context.Context, seq int64, cause error, terminal bool) error {
	status := MutationPending
	if terminal {
		status = MutationFailed
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_mutations SET status = ?, attempts = attempts + 1, last_error = ? WHERE seq = ?`,
		status, cause.Error(), seq)
	if err != nil {
		return fmt.Errorf("failing mutation %d: %w", seq, err)
	}
	return nil
}
