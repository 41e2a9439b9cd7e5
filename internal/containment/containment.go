// Package containment tracks (account_id, host_id) pairs that repeatedly
// submit lines the Normalizer cannot parse, and temporarily contains them so
// a single misconfigured source doesn't dominate Processor throughput.
package containment

import (
	"sync"
	"time"

	"github.com/borelli28/siembackend/internal/monitoring"
	"github.com/borelli28/siembackend/internal/utils"
)

// banInfo stores information about an active containment.
type banInfo struct {
	bannedAt time.Time
	duration time.Duration
}

// ContainedPair describes a currently contained source.
type ContainedPair struct {
	AccountID     string
	HostID        string
	FailureCount  int
	BannedAt      time.Time
	BanDuration   time.Duration
}

// Tracker tracks InvalidFormat outcomes per (account_id, host_id) and places
// a pair under containment once it crosses maxAttempts within window.
type Tracker struct {
	mu          sync.RWMutex
	maxAttempts int
	window      time.Duration
	banDuration time.Duration

	failures  map[string][]time.Time // key -> recent failure timestamps within window
	banned    map[string]*banInfo
}

func key(accountID, hostID string) string {
	return accountID + "|" + hostID
}

func New(maxAttempts int, window, banDuration time.Duration) *Tracker {
	return &Tracker{
		maxAttempts: maxAttempts,
		window:      window,
		banDuration: banDuration,
		failures:    make(map[string][]time.Time),
		banned:      make(map[string]*banInfo),
	}
}

// RecordInvalidFormat records one more unparseable line from the pair. If the
// pair crosses maxAttempts within window, it's placed under containment.
func (t *Tracker) RecordInvalidFormat(accountID, hostID string) {
	k := key(accountID, hostID)
	now := utils.NowUTC()

	t.mu.Lock()
	defer t.mu.Unlock()

	if ban, exists := t.banned[k]; exists {
		if t.banDuration > 0 && now.Sub(ban.bannedAt) > ban.duration {
			delete(t.banned, k)
			delete(t.failures, k)
			monitoring.ContainmentActive.WithLabelValues(accountID, hostID).Set(0)
		} else {
			return
		}
	}

	cutoff := now.Add(-t.window)
	recent := append(t.failures[k], now)
	valid := recent[:0]
	for _, ts := range recent {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	t.failures[k] = valid

	if len(valid) >= t.maxAttempts {
		t.banned[k] = &banInfo{bannedAt: now, duration: t.banDuration}
		monitoring.ContainmentBansTotal.WithLabelValues(accountID, hostID).Inc()
		monitoring.ContainmentActive.WithLabelValues(accountID, hostID).Set(1)
	}
}

// RecordValid resets the failure window for a pair after it produces a line
// that normalizes successfully.
func (t *Tracker) RecordValid(accountID, hostID string) {
	k := key(accountID, hostID)

	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.failures, k)
}

// IsContained reports whether a pair is currently under containment,
// lazily lifting an expired temporary ban.
func (t *Tracker) IsContained(accountID, hostID string) bool {
	k := key(accountID, hostID)

	t.mu.RLock()
	ban, exists := t.banned[k]
	if !exists {
		t.mu.RUnlock()
		return false
	}
	if ban.duration == 0 {
		t.mu.RUnlock()
		return true
	}
	expired := time.Since(ban.bannedAt) > ban.duration
	t.mu.RUnlock()

	if expired {
		t.mu.Lock()
		defer t.mu.Unlock()
		if ban, exists := t.banned[k]; exists && ban.duration > 0 && time.Since(ban.bannedAt) > ban.duration {
			delete(t.banned, k)
			delete(t.failures, k)
			monitoring.ContainmentActive.WithLabelValues(accountID, hostID).Set(0)
			return false
		}
		return false
	}

	return true
}

// Lift removes containment for a pair immediately, regardless of duration.
func (t *Tracker) Lift(accountID, hostID string) {
	k := key(accountID, hostID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.banned[k]; exists {
		delete(t.banned, k)
		delete(t.failures, k)
		monitoring.ContainmentActive.WithLabelValues(accountID, hostID).Set(0)
	}
}

// GetFailureCount returns the number of InvalidFormat outcomes currently
// counted within the active window for a pair.
func (t *Tracker) GetFailureCount(accountID, hostID string) int {
	k := key(accountID, hostID)

	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.failures[k])
}

// GetContainedPairs returns all pairs currently under containment.
func (t *Tracker) GetContainedPairs() []ContainedPair {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pairs := make([]ContainedPair, 0, len(t.banned))
	for k, ban := range t.banned {
		accountID, hostID := splitKey(k)
		pairs = append(pairs, ContainedPair{
			AccountID:    accountID,
			HostID:       hostID,
			FailureCount: len(t.failures[k]),
			BannedAt:     ban.bannedAt,
			BanDuration:  ban.duration,
		})
	}
	return pairs
}

// GetContainedCount returns the number of pairs currently under containment.
func (t *Tracker) GetContainedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.banned)
}

func splitKey(k string) (accountID, hostID string) {
	for i := 0; i < len(k); i++ {
		if k[i] == '|' {
			return k[:i], k[i+1:]
		}
	}
	return k, ""
}
