package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coldvault/coldvault-agent/internal/model"
	"github.com/stretchr/testify/require"
)

func TestUploadSupervisorCheckpointsOnIdleThenStops(t *testing.T) {
	q := newTestQueue(t)
	pool := NewPool(1, q, newTestLogger(t), func(ctx context.Context, item *model.Item) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poolDone := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(poolDone)
	}()

	var checkpoints atomic.Int32
	interrupt := make(chan struct{})
	supDone := make(chan struct{})
	go func() {
		UploadSupervisor(ctx, pool, interrupt, newTestLogger(t), func(ctx context.Context) error {
			checkpoints.Add(1)
			return nil
		}, func() error { return nil })
		close(supDone)
	}()

	select {
	case <-supDone:
	case <-time.After(7 * time.Second): // first tick fires at config.SupervisorPollInterval (5s)
		t.Fatal("upload supervisor never stopped an idle pool")
	}
	require.GreaterOrEqual(t, checkpoints.Load(), int32(1))
	require.True(t, pool.Stopping())
	cancel()
	<-poolDone
}

func TestUploadSupervisorInterruptSkipsRemoteCheckpoint(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, q.Enqueue(model.NewItem(model.OperationUpload, "/a/f", "m")))
	blocked := make(chan struct{})
	pool := NewPool(1, q, newTestLogger(t), func(ctx context.Context, item *model.Item) error {
		<-blocked
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	var remoteCheckpoints, localSaves atomic.Int32
	interrupt := make(chan struct{})
	supDone := make(chan struct{})
	go func() {
		UploadSupervisor(ctx, pool, interrupt, newTestLogger(t), func(ctx context.Context) error {
			remoteCheckpoints.Add(1)
			return nil
		}, func() error {
			localSaves.Add(1)
			return nil
		})
		close(supDone)
	}()

	close(interrupt)
	select {
	case <-supDone:
	case <-time.After(2 * time.Second):
		t.Fatal("upload supervisor never returned on interrupt")
	}
	require.Equal(t, int32(0), remoteCheckpoints.Load())
	require.Equal(t, int32(1), localSaves.Load())
	close(blocked)
}

func TestDownloadSupervisorDrainsOpenFilesBeforeReturning(t *testing.T) {
	q := newTestQueue(t)
	pool := NewPool(1, q, newTestLogger(t), func(ctx context.Context, item *model.Item) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	pool.BeginFile()
	interrupt := make(chan struct{})
	supDone := make(chan struct{})
	go func() {
		DownloadSupervisor(ctx, pool, interrupt, newTestLogger(t))
		close(supDone)
	}()
	close(interrupt)

	select {
	case <-supDone:
		t.Fatal("download supervisor returned before in-flight file drained")
	case <-time.After(100 * time.Millisecond):
	}

	pool.EndFile()
	select {
	case <-supDone:
	case <-time.After(2 * time.Second):
		t.Fatal("download supervisor never returned after drain")
	}
}
