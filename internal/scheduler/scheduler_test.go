package scheduler

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestRunNowExecutesJob(t *testing.T) {
	s := New(log.New(logWriter{t}, "", 0))
	var ran atomic.Int32
	require.NoError(t, s.Register("snapshot", "@every 1h", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}))

	require.True(t, s.RunNow("snapshot"))
	waitFor(t, func() bool { return ran.Load() == 1 })

	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, uint64(1), status[0].Runs)
	assert.Zero(t, status[0].Failures)
	assert.False(t, status[0].LastRun.IsZero())
}

func TestRunNowUnknownJob(t *testing.T) {
	s := New(log.New(logWriter{t}, "", 0))
	assert.False(t, s.RunNow("nope"))
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	s := New(log.New(logWriter{t}, "", 0))
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.Register("slow", "@every 1h", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))

	s.RunNow("slow")
	<-started
	s.RunNow("slow") // previous run still holds the lock

	waitFor(t, func() bool { return s.Status()[0].Skips == 1 })
	close(release)
	waitFor(t, func() bool { return s.Status()[0].Runs == 1 })
	assert.Equal(t, uint64(1), s.Status()[0].Skips)
}

func TestFailureIsCountedAndReported(t *testing.T) {
	s := New(log.New(logWriter{t}, "", 0))
	require.NoError(t, s.Register("flaky", "@every 1h", func(ctx context.Context) error {
		return errors.New("provider down")
	}))

	s.RunNow("flaky")
	waitFor(t, func() bool { return s.Status()[0].Failures == 1 })
	assert.Equal(t, "provider down", s.Status()[0].LastError)

	// a later success clears the error
	s2 := New(log.New(logWriter{t}, "", 0))
	var fail atomic.Bool
	fail.Store(true)
	require.NoError(t, s2.Register("flaky", "@every 1h", func(ctx context.Context) error {
		if fail.Load() {
			return errors.New("boom")
		}
		return nil
	}))
	s2.RunNow("flaky")
	waitFor(t, func() bool { return s2.Status()[0].Runs == 1 })
	fail.Store(false)
	s2.RunNow("flaky")
	waitFor(t, func() bool { return s2.Status()[0].Runs == 2 })
	assert.Empty(t, s2.Status()[0].LastError)
}

func TestStopCancelsJobContext(t *testing.T) {
	s := New(log.New(logWriter{t}, "", 0))
	cancelled := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.Register("looper", "@every 1h", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}))

	s.Start()
	s.RunNow("looper")
	<-started
	s.Stop()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("job context not cancelled on Stop")
	}
}

type logWriter struct{ t *testing.T }

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
