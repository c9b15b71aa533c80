package transfer_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/docbridge/internal/transfer"
)

func TestWorkerRunsJobsOneAtATime(t *testing.T) {
	w := transfer.NewWorker()
	defer w.Stop()

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := w.Submit(context.Background(), func(context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak)
}

func TestWorkerReturnsJobError(t *testing.T) {
	w := transfer.NewWorker()
	defer w.Stop()

	boom := errors.New("boom")
	err := w.Submit(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestWorkerSubmitHonoursContextWhileBusy(t *testing.T) {
	w := transfer.NewWorker()
	defer w.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	go w.Submit(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := w.Submit(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestWorkerStop(t *testing.T) {
	w := transfer.NewWorker()
	w.Stop()
	w.Stop()

	err := w.Submit(context.Background(), func(context.Context) error { return nil })
	require.ErrorIs(t, err, transfer.ErrWorkerStopped)
}
