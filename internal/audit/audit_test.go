package audit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(i int) Record {
	return Record{
		Timestamp: time.Date(2026, 3, 1, 12, 0, i, 0, time.UTC),
		ID:        fmt.Sprintf("id-%d", i),
		Operation: "tags",
		Target:    "chat",
		Removed:   int64(i),
	}
}

func TestTrail_ListNewestFirst(t *testing.T) {
	trail := NewTrail(10)
	for i := 0; i < 3; i++ {
		trail.Add(record(i))
	}

	got := trail.List(0)
	require.Len(t, got, 3)
	assert.Equal(t, "id-2", got[0].ID)
	assert.Equal(t, "id-0", got[2].ID)
}

func TestTrail_ListHonorsLimit(t *testing.T) {
	trail := NewTrail(10)
	for i := 0; i < 5; i++ {
		trail.Add(record(i))
	}

	got := trail.List(2)
	require.Len(t, got, 2)
	assert.Equal(t, "id-4", got[0].ID)
	assert.Equal(t, "id-3", got[1].ID)

	// A limit beyond the trail size returns everything.
	assert.Len(t, trail.List(100), 5)
}

func TestTrail_EvictsOldestWhenFull(t *testing.T) {
	trail := NewTrail(3)
	for i := 0; i < 5; i++ {
		trail.Add(record(i))
	}

	got := trail.List(0)
	require.Len(t, got, 3)
	assert.Equal(t, "id-4", got[0].ID)
	assert.Equal(t, "id-2", got[2].ID)
}

func TestTrail_Empty(t *testing.T) {
	trail := NewTrail(3)
	assert.Empty(t, trail.List(0))
	assert.Empty(t, trail.List(10))
}
