package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNowExecutesJob(t *testing.T) {
	s := New(context.Background(), nil)
	var calls atomic.Int32
	require.NoError(t, s.Add(Job{Name: "expire", Spec: "@every 1h", Run: func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 3, nil
	}}))

	n, err := s.RunNow("expire")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunNowUnknownJob(t *testing.T) {
	s := New(context.Background(), nil)
	_, err := s.RunNow("missing")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(context.Background(), nil)
	err := s.Add(Job{Name: "broken", Spec: "every tuesday", Run: func(context.Context) (int, error) { return 0, nil }})
	assert.Error(t, err)
	assert.Error(t, s.Add(Job{Name: "empty"}))
}

func TestJobErrorIsReturned(t *testing.T) {
	s := New(context.Background(), nil)
	boom := errors.New("store offline")
	require.NoError(t, s.Add(Job{Name: "reconcile", Spec: "@every 1h", Run: func(context.Context) (int, error) {
		return 0, boom
	}}))
	_, err := s.RunNow("reconcile")
	assert.ErrorIs(t, err, boom)
}

func TestJobTimeoutAppliesToContext(t *testing.T) {
	s := New(context.Background(), nil)
	require.NoError(t, s.Add(Job{Name: "slow", Spec: "@every 1h", Timeout: 10 * time.Millisecond, Run: func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}}))
	_, err := s.RunNow("slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	s := New(context.Background(), nil)
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	require.NoError(t, s.Add(Job{Name: "long", Spec: "@every 1h", Run: func(context.Context) (int, error) {
		calls.Add(1)
		close(started)
		<-release
		return 1, nil
	}}))

	go func() { _, _ = s.RunNow("long") }()
	<-started
	n, err := s.RunNow("long")
	require.NoError(t, err)
	assert.Zero(t, n)
	close(release)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStartRunsScheduledJobs(t *testing.T) {
	s := New(context.Background(), nil)
	var calls atomic.Int32
	require.NoError(t, s.Add(Job{Name: "tick", Spec: "@every 1s", Run: func(context.Context) (int, error) {
		calls.Add(1)
		return 0, nil
	}}))
	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
