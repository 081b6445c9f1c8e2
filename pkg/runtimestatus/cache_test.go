package runtimestatus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	c := New(0, 0)
	require.NoError(t, c.Set("abc12345", StatusProcessing))
	status, ok := c.Get("abc12345")
	require.True(t, ok)
	assert.Equal(t, StatusProcessing, status)
}

func TestGet_Missing(t *testing.T) {
	c := New(0, 0)
	_, ok := c.Get("missing1")
	assert.False(t, ok)
}

func TestSet_InvalidStatus(t *testing.T) {
	c := New(0, 0)
	err := c.Set("abc12345", Status("bogus"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSet_CapacityEnforced(t *testing.T) {
	c := New(2, 0)
	require.NoError(t, c.Set("a", StatusIdle))
	require.NoError(t, c.Set("b", StatusIdle))
	err := c.Set("c", StatusIdle)
	assert.ErrorIs(t, err, ErrCacheFull)

	// Updating an existing key never counts against capacity.
	require.NoError(t, c.Set("a", StatusProcessing))
}

func TestDelete(t *testing.T) {
	c := New(0, 0)
	require.NoError(t, c.Set("abc12345", StatusIdle))
	c.Delete("abc12345")
	_, ok := c.Get("abc12345")
	assert.False(t, ok)
}

func TestSweep_EvictsStaleEntries(t *testing.T) {
	c := New(0, 10*time.Millisecond)
	require.NoError(t, c.Set("stale123", StatusIdle))
	time.Sleep(20 * time.Millisecond)
	c.sweep()
	_, ok := c.Get("stale123")
	assert.False(t, ok)
}

func TestSweep_KeepsFreshEntries(t *testing.T) {
	c := New(0, time.Hour)
	require.NoError(t, c.Set("fresh123", StatusIdle))
	c.sweep()
	_, ok := c.Get("fresh123")
	assert.True(t, ok)
}

func TestStartStop_CooperativeShutdown(t *testing.T) {
	c := New(0, time.Hour)
	c.StartSweeper(5 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	c.Stop()
}
