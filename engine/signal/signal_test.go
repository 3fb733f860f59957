package signal

import (
	"context"
	"expvar"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetReset(t *testing.T) {
	s := Open("test/set-reset")
	t.Cleanup(func() { Remove(s.Name()) })

	assert.False(t, s.IsSet())
	s.Set()
	s.Set()
	assert.True(t, s.IsSet())
	s.Reset()
	assert.False(t, s.IsSet())
	s.Store(true)
	assert.True(t, s.IsSet())
}

func TestWaitWakesOnSet(t *testing.T) {
	s := Open("test/wait")
	t.Cleanup(func() { Remove(s.Name()) })

	done := make(chan error, 1)
	go func() { done <- s.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait returned before Set")
	case <-time.After(10 * time.Millisecond):
	}
	s.Set()
	require.NoError(t, <-done)
}

func TestWaitHonoursContext(t *testing.T) {
	s := Open("test/ctx")
	t.Cleanup(func() { Remove(s.Name()) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
}

func TestOpenReturnsSameSignal(t *testing.T) {
	a := Open("test/same")
	t.Cleanup(func() { Remove(a.Name()) })
	b := Open("test/same")
	assert.Same(t, a, b)

	got, ok := Lookup("test/same")
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestInstanceSet(t *testing.T) {
	set := NewSet("abc")
	assert.Equal(t, "canopy/abc/no-pending-decodes", set.Name(NoPendingDecodes))
	assert.True(t, set.Animations.IsSet())
	assert.True(t, set.Downloads.IsSet())
	assert.True(t, set.Decodes.IsSet())

	v := expvar.Get("canopy.signals")
	require.NotNil(t, v)
	assert.Contains(t, v.String(), "canopy/abc/no-animations-running")

	set.Close()
	_, ok := Lookup(set.Name(NoAnimationsRunning))
	assert.False(t, ok)
}
