package alerts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttachToCase_SetsCaseID(t *testing.T) {
	a := Alert{ID: "a1"}
	a.AttachToCase("case-1")
	require := assert.New(t)
	require.NotNil(a.CaseID)
	require.Equal("case-1", *a.CaseID)
}

func TestDetachFromCase_ClearsCaseID(t *testing.T) {
	a := Alert{ID: "a1"}
	a.AttachToCase("case-1")
	a.DetachFromCase()
	assert.Nil(t, a.CaseID)
}

func TestAcknowledge_SetsFlagIndependentlyOfCase(t *testing.T) {
	a := Alert{ID: "a1"}
	a.AttachToCase("case-1")
	a.Acknowledge()
	assert.True(t, a.Acknowledged)
	assert.NotNil(t, a.CaseID)
}

// fakeSink is an in-memory Sink for this package's tests; it needs no real
// database.
type fakeSink struct {
	written []Alert
}

func (f *fakeSink) Write(_ context.Context, a Alert) error {
	f.written = append(f.written, a)
	return nil
}

func TestFakeSink_ImplementsSink(t *testing.T) {
	var _ Sink = (*fakeSink)(nil)
}
