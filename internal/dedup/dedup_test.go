package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySeenAfterMark(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	seen, err := m.Seen(ctx, "wh-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, m.Mark(ctx, "wh-1"))

	seen, err = m.Seen(ctx, "wh-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = m.Seen(ctx, "wh-2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	current := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	require.NoError(t, m.Mark(ctx, "wh-1"))

	current = current.Add(59 * time.Minute)
	seen, err := m.Seen(ctx, "wh-1")
	require.NoError(t, err)
	assert.True(t, seen)

	current = current.Add(2 * time.Minute)
	seen, err = m.Seen(ctx, "wh-1")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Empty(t, m.entries)
}
