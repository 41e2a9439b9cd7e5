package logstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5"

	"github.com/borelli28/siembackend/internal/normalize"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("logstore: not found")

// StoredLog is a NormalizedLog persisted with an assigned id, content hash,
// and its canonical JSON serialization.
type StoredLog struct {
	ID        string
	Hash      string
	AccountID string
	HostID    string
	Timestamp string
	LogData   string
	CreatedAt time.Time
}

// InsertOutcome distinguishes a freshly persisted row from a dedup hit;
// Duplicate is an outcome, not an error.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	Duplicate
)

// Store is the content-addressed log store. It serializes writers on the
// underlying pool's transactional guarantees and lets readers proceed
// concurrently, and keeps a bounded LRU of (account_id, hash) -> id to avoid
// a round trip to Postgres for the common case of a near-duplicate re-upload.
type Store struct {
	pool       *Pool
	dedupCache *lru.Cache[string, string]
}

// New wraps a Pool with a dedup cache of the given size. A non-positive size
// is treated as 1, so the cache holds only the most recent hash.
func New(pool *Pool, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("logstore: creating dedup cache: %w", err)
	}
	return &Store{pool: pool, dedupCache: cache}, nil
}

// CanonicalJSON serializes a NormalizedLog with keys in the fixed order
// timestamp, src_ip, dst_ip, event_type, host_id, account_id, raw,
// extensions (extensions keys sorted lexicographically). This stable
// ordering is what makes the content hash deterministic.
func CanonicalJSON(n normalize.NormalizedLog) (string, error) {
	extKeys := make([]string, 0, len(n.Extensions))
	for k := range n.Extensions {
		extKeys = append(extKeys, k)
	}
	sort.Strings(extKeys)

	var buf []byte
	buf = append(buf, '{')
	appendField := func(key, value string, isFirst bool) {
		if !isFirst {
			buf = append(buf, ',')
		}
		b, _ := json.Marshal(key)
		buf = append(buf, b...)
		buf = append(buf, ':')
		vb, _ := json.Marshal(value)
		buf = append(buf, vb...)
	}

	appendField("timestamp", n.Timestamp, true)
	appendField("src_ip", n.SrcIP, false)
	appendField("dst_ip", n.DstIP, false)
	appendField("event_type", n.EventType, false)
	appendField("host_id", n.HostID, false)
	appendField("account_id", n.AccountID, false)
	appendField("raw", n.Raw, false)

	buf = append(buf, `,"extensions":{`...)
	for i, k := range extKeys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		buf = append(buf, kb...)
		buf = append(buf, ':')
		vb, _ := json.Marshal(n.Extensions[k])
		buf = append(buf, vb...)
	}
	buf = append(buf, '}', '}')

	return string(buf), nil
}

// HashOf computes the content hash of a canonical JSON serialization.
func HashOf(logData string) string {
	sum := sha256.Sum256([]byte(logData))
	return hex.EncodeToString(sum[:])
}

// Insert serializes n to canonical JSON, computes its content hash, and
// persists it unless a log with that hash already exists for the account.
// The dedup check and the row insert happen inside one transaction so the
// two never diverge under concurrent writers.
func (s *Store) Insert(ctx context.Context, n normalize.NormalizedLog) (StoredLog, InsertOutcome, error) {
	logData, err := CanonicalJSON(n)
	if err != nil {
		return StoredLog{}, 0, fmt.Errorf("logstore: canonicalizing log: %w", err)
	}
	hash := HashOf(logData)
	cacheKey := n.AccountID + "|" + hash

	if _, ok := s.dedupCache.Get(cacheKey); ok {
		return StoredLog{}, Duplicate, nil
	}

	tx, err := s.pool.pool.Begin(ctx)
	if err != nil {
		return StoredLog{}, 0, fmt.Errorf("logstore: begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var existingID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM logs WHERE account_id = $1 AND hash = $2`,
		n.AccountID, hash,
	).Scan(&existingID)
	switch {
	case err == nil:
		s.dedupCache.Add(cacheKey, existingID)
		return StoredLog{}, Duplicate, nil
	case errors.Is(err, pgx.ErrNoRows):
		// fall through to insert
	default:
		return StoredLog{}, 0, fmt.Errorf("logstore: checking for duplicate: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`INSERT INTO logs (id, hash, account_id, host_id, timestamp, log_data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, hash, n.AccountID, n.HostID, n.Timestamp, logData, now,
	)
	if err != nil {
		return StoredLog{}, 0, fmt.Errorf("logstore: inserting log (account=%s hash=%s): %w", n.AccountID, hash, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return StoredLog{}, 0, fmt.Errorf("logstore: committing insert: %w", err)
	}

	s.dedupCache.Add(cacheKey, id)

	return StoredLog{
		ID:        id,
		Hash:      hash,
		AccountID: n.AccountID,
		HostID:    n.HostID,
		Timestamp: n.Timestamp,
		LogData:   logData,
		CreatedAt: now,
	}, Inserted, nil
}

// GetAll returns all stored logs for an account in insertion order.
func (s *Store) GetAll(ctx context.Context, accountID string) ([]StoredLog, error) {
	rows, err := s.pool.pool.Query(ctx,
		`SELECT id, hash, account_id, host_id, timestamp, log_data, created_at
		 FROM logs WHERE account_id = $1 ORDER BY created_at ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("logstore: querying logs for account %s: %w", accountID, err)
	}
	defer rows.Close()

	return scanStoredLogs(rows)
}

// queryRange is the primitive behind StreamRange and so the EQL executor:
// every candidate row for the account's time window, newest first.
func (s *Store) queryRange(ctx context.Context, accountID string, start, end *time.Time) (pgx.Rows, error) {
	query := `SELECT id, hash, account_id, host_id, timestamp, log_data, created_at
		FROM logs WHERE account_id = $1`
	args := []interface{}{accountID}

	if start != nil {
		args = append(args, *start)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if end != nil {
		args = append(args, *end)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY timestamp DESC"

	rows, err := s.pool.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("logstore: querying range for account %s: %w", accountID, err)
	}
	return rows, nil
}

// StreamRange streams candidate rows for an account/time window to fn, one
// row at a time, bounding memory the way EQL query execution requires. The
// iteration stops at the first error fn returns.
func (s *Store) StreamRange(ctx context.Context, accountID string, start, end *time.Time, fn func(StoredLog) error) error {
	rows, err := s.queryRange(ctx, accountID, start, end)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		sl, err := scanOneStoredLog(rows)
		if err != nil {
			return fmt.Errorf("logstore: scanning row: %w", err)
		}
		if err := fn(sl); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("logstore: iterating rows: %w", err)
	}
	return nil
}

func scanStoredLogs(rows pgx.Rows) ([]StoredLog, error) {
	var out []StoredLog
	for rows.Next() {
		sl, err := scanOneStoredLog(rows)
		if err != nil {
			return nil, fmt.Errorf("logstore: scanning row: %w", err)
		}
		out = append(out, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("logstore: iterating rows: %w", err)
	}
	return out, nil
}

func scanOneStoredLog(rows pgx.Rows) (StoredLog, error) {
	var sl StoredLog
	err := rows.Scan(&sl.ID, &sl.Hash, &sl.AccountID, &sl.HostID, &sl.Timestamp, &sl.LogData, &sl.CreatedAt)
	return sl, err
}
