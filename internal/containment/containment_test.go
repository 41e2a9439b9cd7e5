package containment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsContained_InitiallyFalse(t *testing.T) {
	tr := New(3, time.Minute, 10*time.Minute)
	assert.False(t, tr.IsContained("acct-1", "host-1"))
}

func TestRecordInvalidFormat_ContainsAfterThreshold(t *testing.T) {
	tr := New(3, time.Minute, 10*time.Minute)

	tr.RecordInvalidFormat("acct-1", "host-1")
	assert.False(t, tr.IsContained("acct-1", "host-1"))

	tr.RecordInvalidFormat("acct-1", "host-1")
	assert.False(t, tr.IsContained("acct-1", "host-1"))

	tr.RecordInvalidFormat("acct-1", "host-1")
	assert.True(t, tr.IsContained("acct-1", "host-1"))
}

func TestRecordInvalidFormat_PairsAreIndependent(t *testing.T) {
	tr := New(2, time.Minute, 10*time.Minute)

	tr.RecordInvalidFormat("acct-1", "host-1")
	tr.RecordInvalidFormat("acct-1", "host-1")
	assert.True(t, tr.IsContained("acct-1", "host-1"))
	assert.False(t, tr.IsContained("acct-1", "host-2"))
	assert.False(t, tr.IsContained("acct-2", "host-1"))
}

func TestRecordValid_ResetsFailureWindow(t *testing.T) {
	tr := New(3, time.Minute, 10*time.Minute)

	tr.RecordInvalidFormat("acct-1", "host-1")
	tr.RecordInvalidFormat("acct-1", "host-1")
	assert.Equal(t, 2, tr.GetFailureCount("acct-1", "host-1"))

	tr.RecordValid("acct-1", "host-1")
	assert.Equal(t, 0, tr.GetFailureCount("acct-1", "host-1"))
}

func TestIsContained_ExpiresAfterBanDuration(t *testing.T) {
	tr := New(1, time.Minute, 20*time.Millisecond)

	tr.RecordInvalidFormat("acct-1", "host-1")
	assert.True(t, tr.IsContained("acct-1", "host-1"))

	time.Sleep(30 * time.Millisecond)
	assert.False(t, tr.IsContained("acct-1", "host-1"), "ban should have expired")
}

func TestLift_RemovesContainmentImmediately(t *testing.T) {
	tr := New(1, time.Minute, 10*time.Minute)

	tr.RecordInvalidFormat("acct-1", "host-1")
	assert.True(t, tr.IsContained("acct-1", "host-1"))

	tr.Lift("acct-1", "host-1")
	assert.False(t, tr.IsContained("acct-1", "host-1"))
}

func TestGetContainedPairsAndCount(t *testing.T) {
	tr := New(1, time.Minute, 10*time.Minute)

	tr.RecordInvalidFormat("acct-1", "host-1")
	tr.RecordInvalidFormat("acct-2", "host-2")

	assert.Equal(t, 2, tr.GetContainedCount())

	pairs := tr.GetContainedPairs()
	assert.Len(t, pairs, 2)
	for _, p := range pairs {
		assert.NotEmpty(t, p.AccountID)
		assert.NotEmpty(t, p.HostID)
	}
}

func TestGetFailureCount_UntrackedPairIsZero(t *testing.T) {
	tr := New(3, time.Minute, 10*time.Minute)
	assert.Equal(t, 0, tr.GetFailureCount("acct-x", "host-x"))
}
