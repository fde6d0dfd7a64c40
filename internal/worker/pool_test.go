package worker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestPoolRunsJobs(t *testing.T) {
	p := NewPool(2, 10, testLogger())

	var n atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(Job{Name: "count", Run: func(ctx context.Context) error {
			n.Add(1)
			return nil
		}}))
	}

	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, int32(5), n.Load())
}

func TestPoolQueueFull(t *testing.T) {
	p := NewPool(1, 1, testLogger())
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit(Job{Name: "block", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started

	require.NoError(t, p.Submit(Job{Name: "queued", Run: func(ctx context.Context) error { return nil }}))
	err := p.Submit(Job{Name: "overflow", Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	require.NoError(t, p.Stop(context.Background()))
}

func TestPoolSurvivesFailingJobs(t *testing.T) {
	p := NewPool(1, 4, testLogger())

	var ran atomic.Bool
	require.NoError(t, p.Submit(Job{Name: "fail", Run: func(ctx context.Context) error { return errors.New("boom") }}))
	require.NoError(t, p.Submit(Job{Name: "panic", Run: func(ctx context.Context) error { panic("oops") }}))
	require.NoError(t, p.Submit(Job{Name: "ok", Run: func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}}))

	require.NoError(t, p.Stop(context.Background()))
	assert.True(t, ran.Load())
}

func TestPoolSubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1, testLogger())
	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, p.Stop(context.Background()))

	err := p.Submit(Job{Name: "late", Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestPoolStopCancelsRunningJobs(t *testing.T) {
	p := NewPool(1, 1, testLogger())
	started := make(chan struct{})

	require.NoError(t, p.Submit(Job{Name: "wait", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Stop(ctx), context.DeadlineExceeded)
}
