package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSeedEvents(t *testing.T) {
	t.Parallel()

	from := time.Date(2030, 3, 1, 15, 45, 0, 0, time.UTC)

	events := GenerateSeedEvents(7, 40, from)
	require.Len(t, events, 40)

	assert.Equal(t, events, GenerateSeedEvents(7, 40, from), "same seed, same events")
	assert.NotEqual(t, events, GenerateSeedEvents(8, 40, from))

	for i, e := range events {
		require.NoError(t, ValidateEvent(e), "event %d", i)

		assert.GreaterOrEqual(t, e.StartTime.Hour(), 8)
		closing := time.Date(e.StartTime.Year(), e.StartTime.Month(), e.StartTime.Day(), 18, 0, 0, 0, time.UTC)
		assert.False(t, e.EndTime.After(closing), "event %d ends after hours", i)

		assert.NotEmpty(t, e.Attendees)
		assert.LessOrEqual(t, len(e.Attendees), 5)

		for _, a := range e.Attendees {
			assert.True(t, a.Status.Valid())
		}

		assert.True(t, IsAvailable(e.StartTime, e.EndTime, events[:i], ""), "event %d overlaps an earlier one", i)
	}
}

func TestGenerateSeedEvents_NoCount(t *testing.T) {
	t.Parallel()

	from := time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, count := range []int{0, -1, -20} {
		assert.Empty(t, GenerateSeedEvents(1, count, from), "count=%d", count)
	}
}
