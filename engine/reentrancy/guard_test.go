package reentrancy

import (
	"bytes"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnterRelease(t *testing.T) {
	var violations int
	g := New("frame", func(*ViolationError) { violations++ })

	release, err := g.Enter()
	require.NoError(t, err)
	assert.True(t, g.Busy())

	release()
	release() // idempotent
	assert.False(t, g.Busy())

	release2, err := g.Enter()
	require.NoError(t, err)
	release2()
	assert.Zero(t, violations)
}

func TestNestedEnterIsFatal(t *testing.T) {
	var got *ViolationError
	g := New("frame", func(v *ViolationError) { got = v })

	release, err := g.Enter()
	require.NoError(t, err)
	defer release()

	_, err = g.Enter()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReentrant))
	require.NotNil(t, got)
	assert.Equal(t, "frame", got.Scope)
	assert.NotEmpty(t, got.Stack)
	// The first holder keeps the token.
	assert.True(t, g.Busy())
}

func TestReleaseOnPanic(t *testing.T) {
	g := New("frame", func(*ViolationError) {})
	func() {
		defer func() { _ = recover() }()
		release, err := g.Enter()
		require.NoError(t, err)
		defer release()
		panic("callout failed")
	}()
	assert.False(t, g.Busy())
}

func TestConcurrentEntryAdmitsOne(t *testing.T) {
	var violations atomic.Int32
	g := New("frame", func(*ViolationError) { violations.Add(1) })

	const n = 16
	var (
		entered atomic.Int32
		start   = make(chan struct{})
		hold    = make(chan struct{})
		ready   sync.WaitGroup
		done    sync.WaitGroup
	)
	ready.Add(n)
	done.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer done.Done()
			ready.Done()
			<-start
			release, err := g.Enter()
			if err != nil {
				return
			}
			entered.Add(1)
			<-hold
			release()
		}()
	}
	ready.Wait()
	close(start)
	// Wait until every loser has hit the fatal path.
	for violations.Load() < n-1 {
		if entered.Load() > 1 {
			break
		}
	}
	close(hold)
	done.Wait()

	assert.EqualValues(t, 1, entered.Load())
	assert.EqualValues(t, n-1, violations.Load())
}

func TestTerminateWritesStackToStderr(t *testing.T) {
	var out bytes.Buffer
	code := -1
	stderr, exit = &out, func(c int) { code = c }
	t.Cleanup(func() { stderr, exit = os.Stderr, os.Exit })

	g := New("frame.RunFrame", Terminate)
	release, err := g.Enter()
	require.NoError(t, err)
	defer release()

	_, err = g.Enter()
	require.ErrorIs(t, err, ErrReentrant)
	assert.Equal(t, 2, code)
	assert.Contains(t, out.String(), "frame.RunFrame entered while already running")
	assert.Contains(t, out.String(), "goroutine")
	assert.Contains(t, out.String(), "TestTerminateWritesStackToStderr")
}
