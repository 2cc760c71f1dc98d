package cdc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffSchedule(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, backoff(1))
	assert.Equal(t, 250*time.Millisecond, backoff(10))
	assert.Equal(t, time.Second, backoff(11))
	assert.Equal(t, time.Second, backoff(60))
	assert.Equal(t, 2*time.Second, backoff(61))
	assert.Equal(t, 2*time.Second, backoff(1000))
}

func TestDeliverableExactMatch(t *testing.T) {
	assert.True(t, deliverable(Insert, Insert, 0, 100))
	assert.False(t, deliverable(Insert, Update, 0, 100))
}

func TestDeliverableWriteCatchesInsertAndUpdate(t *testing.T) {
	assert.True(t, deliverable(Write, Insert, 0, 100))
	assert.True(t, deliverable(Write, Update, 0, 100))
	assert.True(t, deliverable(Write, Write, 0, 100))
	assert.False(t, deliverable(Write, Delete, 0, 100))
}

func TestDeliverableRequiresCursorBehindDate(t *testing.T) {
	assert.False(t, deliverable(Insert, Insert, 100, 100))
	assert.False(t, deliverable(Insert, Insert, 200, 100))
	assert.True(t, deliverable(Insert, Insert, 99, 100))
}

func TestDedupeByIDKeepsFirstOccurrence(t *testing.T) {
	rows := []RawEvent{
		{ID: "a", Type: Insert},
		{ID: "b", Type: Insert},
		{ID: "a", Type: Update},
	}
	out := dedupeByID(rows)
	assert.Len(t, out, 2)
	assert.Equal(t, Insert, out[0].Type)
}
