package logstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borelli28/siembackend/internal/normalize"
)

func sampleLog() normalize.NormalizedLog {
	return normalize.NormalizedLog{
		Timestamp: "2024-01-01T00:00:00Z",
		SrcIP:     "10.0.0.1",
		DstIP:     "10.0.0.2",
		EventType: "failed_login",
		HostID:    "host-1",
		AccountID: "acct-1",
		Raw:       "raw line",
		Extensions: map[string]string{
			"b_key": "2",
			"a_key": "1",
		},
	}
}

func TestCanonicalJSON_KeyOrderIsFixed(t *testing.T) {
	data, err := CanonicalJSON(sampleLog())
	require.NoError(t, err)

	assert.Equal(t,
		`{"timestamp":"2024-01-01T00:00:00Z","src_ip":"10.0.0.1","dst_ip":"10.0.0.2","event_type":"failed_login","host_id":"host-1","account_id":"acct-1","raw":"raw line","extensions":{"a_key":"1","b_key":"2"}}`,
		data,
	)
}

func TestCanonicalJSON_IsDeterministicAcrossExtensionInsertionOrder(t *testing.T) {
	a := sampleLog()
	b := sampleLog()
	b.Extensions = map[string]string{"a_key": "1", "b_key": "2"} // different map, same contents

	da, err := CanonicalJSON(a)
	require.NoError(t, err)
	db, err := CanonicalJSON(b)
	require.NoError(t, err)

	assert.Equal(t, da, db)
}

func TestHashOf_Sha256HexLowercase64Chars(t *testing.T) {
	data, err := CanonicalJSON(sampleLog())
	require.NoError(t, err)

	hash := HashOf(data)
	assert.Len(t, hash, 64)
	for _, r := range hash {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
}

func TestHashOf_IdenticalLogDataYieldsSameHash(t *testing.T) {
	data, err := CanonicalJSON(sampleLog())
	require.NoError(t, err)

	assert.Equal(t, HashOf(data), HashOf(data))
}

func TestHashOf_DifferentContentYieldsDifferentHash(t *testing.T) {
	a, err := CanonicalJSON(sampleLog())
	require.NoError(t, err)

	other := sampleLog()
	other.EventType = "successful_login"
	b, err := CanonicalJSON(other)
	require.NoError(t, err)

	assert.NotEqual(t, HashOf(a), HashOf(b))
}

// TestInsertAndDedup_Integration exercises Insert/GetAll against a real
// Postgres instance; it requires SIEMBACKEND_TEST_DATABASE_URL and a
// pre-created `logs` table (id, hash, account_id, host_id, timestamp,
// log_data, created_at), which this package does not create since schema
// DDL is out of scope.
func TestInsertAndDedup_Integration(t *testing.T) {
	dbURL := os.Getenv("SIEMBACKEND_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("SIEMBACKEND_TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, PoolConfig{
		URL:                 dbURL,
		MaxConns:            5,
		MinConns:            1,
		HealthCheckInterval: time.Minute,
		ConnectTimeout:      5 * time.Second,
	})
	require.NoError(t, err)
	defer pool.Close()

	store, err := New(pool, 128)
	require.NoError(t, err)

	n := sampleLog()
	n.AccountID = "integration-acct-" + time.Now().Format(time.RFC3339Nano)

	sl, outcome, err := store.Insert(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)
	assert.NotEmpty(t, sl.ID)

	_, outcome, err = store.Insert(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, outcome)

	logs, err := store.GetAll(ctx, n.AccountID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
