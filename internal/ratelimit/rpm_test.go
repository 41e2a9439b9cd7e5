package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllow_UnregisteredAccountDenied(t *testing.T) {
	r := New()
	assert.False(t, r.Allow("acct-unknown"))
}

func TestAllow_WithinLimit(t *testing.T) {
	r := New()
	r.AddAccount("acct-1", 3)

	assert.True(t, r.Allow("acct-1"))
	assert.True(t, r.Allow("acct-1"))
	assert.True(t, r.Allow("acct-1"))
}

func TestAllow_ExceedsLimit(t *testing.T) {
	r := New()
	r.AddAccount("acct-1", 2)

	assert.True(t, r.Allow("acct-1"))
	assert.True(t, r.Allow("acct-1"))
	assert.False(t, r.Allow("acct-1"), "third request should exceed rpm=2")
}

func TestAllow_UnlimitedWhenRPMIsNegativeOne(t *testing.T) {
	r := New()
	r.AddAccount("acct-1", -1)

	for i := 0; i < 1000; i++ {
		assert.True(t, r.Allow("acct-1"))
	}
}

func TestCanAllow_DoesNotRecord(t *testing.T) {
	r := New()
	r.AddAccount("acct-1", 1)

	assert.True(t, r.CanAllow("acct-1"))
	assert.True(t, r.CanAllow("acct-1"), "CanAllow must not consume the single slot")
	assert.True(t, r.Allow("acct-1"))
	assert.False(t, r.Allow("acct-1"))
}

func TestGetCurrentRPM_TracksRecordedRequests(t *testing.T) {
	r := New()
	r.AddAccount("acct-1", 10)

	assert.Equal(t, 0, r.GetCurrentRPM("acct-1"))
	r.Allow("acct-1")
	r.Allow("acct-1")
	assert.Equal(t, 2, r.GetCurrentRPM("acct-1"))
}

func TestGetCurrentRPM_UntrackedAccountIsZero(t *testing.T) {
	r := New()
	assert.Equal(t, 0, r.GetCurrentRPM("acct-unknown"))
}

func TestGetLimitRPM(t *testing.T) {
	r := New()
	r.AddAccount("acct-1", 42)

	assert.Equal(t, 42, r.GetLimitRPM("acct-1"))
	assert.Equal(t, -1, r.GetLimitRPM("acct-unknown"))
}

func TestAddAccount_ResetsPriorUsage(t *testing.T) {
	r := New()
	r.AddAccount("acct-1", 1)
	r.Allow("acct-1")
	assert.Equal(t, 1, r.GetCurrentRPM("acct-1"))

	r.AddAccount("acct-1", 5)
	assert.Equal(t, 0, r.GetCurrentRPM("acct-1"))
	assert.Equal(t, 5, r.GetLimitRPM("acct-1"))
}
