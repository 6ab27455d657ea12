package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasks(t *testing.T) {
	p := New(4)
	assert.Equal(t, 4, p.Size())

	var n atomic.Int32
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Submit(context.Background(), func() { n.Add(1) }))
	}
	p.Close()
	assert.Equal(t, int32(100), n.Load())

	require.ErrorIs(t, p.Submit(context.Background(), func() {}), ErrClosed)
	p.Close()
}

func TestFuturesKeepSubmissionOrder(t *testing.T) {
	p := New(3)
	defer p.Close()

	ctx := context.Background()
	var futures []*Future[int]
	for i := 0; i < 20; i++ {
		f, err := Go(ctx, p, func() (int, error) {
			time.Sleep(time.Duration(20-i) * 100 * time.Microsecond)
			return i * i, nil
		})
		require.NoError(t, err)
		futures = append(futures, f)
	}
	for i, f := range futures {
		v, err := f.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, i*i, v)
	}
}

func TestFutureError(t *testing.T) {
	p := New(1)
	defer p.Close()

	boom := errors.New("boom")
	f, err := Go(context.Background(), p, func() (string, error) { return "", boom })
	require.NoError(t, err)
	_, err = f.Get(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestShutdownDropsQueuedWork(t *testing.T) {
	p := New(1)
	ctx := context.Background()

	release := make(chan struct{})
	running, err := Go(ctx, p, func() (int, error) {
		<-release
		return 1, nil
	})
	require.NoError(t, err)
	queued, err := Go(ctx, p, func() (int, error) { return 2, nil })
	require.NoError(t, err)

	p.Shutdown()
	close(release)

	_, err = queued.Get(ctx)
	require.ErrorIs(t, err, ErrClosed)
	_, err = running.Get(ctx)
	if err != nil {
		require.ErrorIs(t, err, ErrClosed)
	}

	_, err = Go(ctx, p, func() (int, error) { return 3, nil })
	require.ErrorIs(t, err, ErrClosed)
}

func TestGetHonorsContext(t *testing.T) {
	p := New(1)
	defer p.Close()

	release := make(chan struct{})
	defer close(release)
	f, err := Go(context.Background(), p, func() (int, error) {
		<-release
		return 0, nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = f.Get(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
