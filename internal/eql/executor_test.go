package eql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borelli28/siembackend/internal/logstore"
)

type fakeStreamer struct {
	rows []logstore.StoredLog
}

func (f *fakeStreamer) StreamRange(_ context.Context, _ string, _, _ *time.Time, fn func(logstore.StoredLog) error) error {
	for _, row := range f.rows {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func row(logData string) logstore.StoredLog {
	return logstore.StoredLog{LogData: logData}
}

func TestExecute_EQLQueryScenario(t *testing.T) {
	streamer := &fakeStreamer{rows: []logstore.StoredLog{
		row(`{"timestamp":"2024-01-01T00:00:00Z","event_type":"x","extensions":{"severity":"Low"}}`),
		row(`{"timestamp":"2024-02-01T00:00:00Z","event_type":"failed_login","extensions":{"severity":"High"}}`),
	}}

	plan, err := ParseAndBuild(`severity = "High" AND @timestamp>2024-01-01]`)
	require.NoError(t, err)

	matches, err := Execute(context.Background(), streamer, "acct-1", plan)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0].LogData, "failed_login")
}

func TestExecute_MalformedRowIsNonMatchNotFailure(t *testing.T) {
	streamer := &fakeStreamer{rows: []logstore.StoredLog{
		row(`not json`),
		row(`{"event_type":"a","extensions":{}}`),
	}}

	plan, err := ParseAndBuild(`event_type = "a"`)
	require.NoError(t, err)

	matches, err := Execute(context.Background(), streamer, "acct-1", plan)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestExecute_NoPredicatesMatchesEverything(t *testing.T) {
	streamer := &fakeStreamer{rows: []logstore.StoredLog{
		row(`{"event_type":"a","extensions":{}}`),
		row(`{"event_type":"b","extensions":{}}`),
	}}

	matches, err := Execute(context.Background(), streamer, "acct-1", Plan{})
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestCompare_OperatorSemantics(t *testing.T) {
	assert.True(t, compare("a", "=", "a"))
	assert.False(t, compare("a", "=", "b"))
	assert.True(t, compare("a", "!=", "b"))
	assert.True(t, compare("b", ">", "a"))
	assert.True(t, compare("a", "<", "b"))
	assert.False(t, compare("a", "??", "b"))
}
