package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		allowed  bool
	}{
		{StatusQueued, StatusRunning, true},
		{StatusQueued, StatusFailed, true}, // preflight failure, no RUNNING
		{StatusRunning, StatusSucceeded, true},
		{StatusRunning, StatusFailed, true},

		{StatusQueued, StatusSucceeded, false},
		{StatusRunning, StatusQueued, false},
		{StatusSucceeded, StatusFailed, false},
		{StatusSucceeded, StatusRunning, false},
		{StatusFailed, StatusQueued, false},
		{StatusFailed, StatusRunning, false},

		// idempotent re-application of the same state
		{StatusSucceeded, StatusSucceeded, true},
		{StatusFailed, StatusFailed, true},
		{StatusRunning, StatusRunning, true},
		{StatusQueued, StatusQueued, true},
	}

	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusSucceeded.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusQueued.Valid())
	assert.False(t, JobStatus("CANCELLED").Valid())
	assert.False(t, JobStatus("").Valid())
}

func TestParseTimestamp(t *testing.T) {
	// trailing Z is stripped, not interpreted
	ts, err := ParseTimestamp("2025-03-14T09:26:53Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC), ts)

	// fractional seconds, the way the worker formats them
	ts, err = ParseTimestamp("2025-03-14T09:26:53.123456Z")
	require.NoError(t, err)
	assert.Equal(t, 123456000, ts.Nanosecond())

	// no Z at all
	_, err = ParseTimestamp("2025-03-14T09:26:53")
	require.NoError(t, err)

	_, err = ParseTimestamp("not-a-timestamp")
	assert.Error(t, err)
}

func TestFormatTimestampRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 123456000, time.UTC)
	parsed, err := ParseTimestamp(FormatTimestamp(now))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(now))
}

func TestJobPatchEmpty(t *testing.T) {
	assert.True(t, JobPatch{}.Empty())

	cp := "4"
	assert.False(t, JobPatch{Checkpoint: &cp}.Empty())
	assert.False(t, JobPatch{Metrics: JSONMap{}}.Empty())
}
