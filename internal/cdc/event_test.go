package cdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestInflateInsertHasNoBefore(t *testing.T) {
	ev, err := inflate(RawEvent{Collection: "tasks", ID: "1", Type: Insert, Date: 1, After: strp(`{"a":1}`)})
	require.NoError(t, err)
	ins, ok := ev.(InsertEvent)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1)}, ins.After)
	assert.Equal(t, "tasks", ins.Collection())
	assert.Equal(t, "1", ins.ID())
}

func TestInflateUpdateHasBeforeAndAfter(t *testing.T) {
	ev, err := inflate(RawEvent{Type: Update, Before: strp(`{"a":1}`), After: strp(`{"a":2}`)})
	require.NoError(t, err)
	up, ok := ev.(UpdateEvent)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1)}, up.Before)
	assert.Equal(t, map[string]any{"a": float64(2)}, up.After)
}

func TestInflateDeleteHasOnlyBefore(t *testing.T) {
	ev, err := inflate(RawEvent{Type: Delete, Before: strp(`{"a":1}`)})
	require.NoError(t, err)
	del, ok := ev.(DeleteEvent)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1)}, del.Before)
}

func TestInflateUnknownTypeErrors(t *testing.T) {
	_, err := inflate(RawEvent{Type: "bogus"})
	assert.Error(t, err)
}

func TestAsWriteEligible(t *testing.T) {
	assert.True(t, asWriteEligible(Insert))
	assert.True(t, asWriteEligible(Update))
	assert.True(t, asWriteEligible(Write))
	assert.False(t, asWriteEligible(Delete))
}
