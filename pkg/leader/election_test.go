package leader

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes/fake"
)

func TestElectorAcquiresLeadershipWithSingleCandidate(t *testing.T) {
	client := fake.NewSimpleClientset()

	var started int32
	leaderCtx := make(chan context.Context, 1)

	elector := NewElector(client, Config{
		LockName:      "test-leader",
		Namespace:     "default",
		Identity:      "pod-a",
		LeaseDuration: 2 * time.Second,
		RenewDeadline: 1 * time.Second,
		RetryPeriod:   200 * time.Millisecond,
	}, func(ctx context.Context) {
		atomic.StoreInt32(&started, 1)
		leaderCtx <- ctx
	})

	require.NoError(t, elector.Start())
	defer elector.Stop()

	select {
	case ctx := <-leaderCtx:
		require.NotNil(t, ctx)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting to become leader")
	}
	require.Equal(t, int32(1), atomic.LoadInt32(&started))
}

func TestElectorStopCancelsLeadingContext(t *testing.T) {
	client := fake.NewSimpleClientset()

	leaderCtx := make(chan context.Context, 1)
	stopped := make(chan struct{}, 1)

	elector := NewElector(client, Config{
		LockName:      "test-leader-stop",
		Namespace:     "default",
		Identity:      "pod-a",
		LeaseDuration: 2 * time.Second,
		RenewDeadline: 1 * time.Second,
		RetryPeriod:   200 * time.Millisecond,
	}, func(ctx context.Context) {
		leaderCtx <- ctx
	})
	elector.OnStoppedLeading(func() {
		stopped <- struct{}{}
	})

	require.NoError(t, elector.Start())

	var ctx context.Context
	select {
	case ctx = <-leaderCtx:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting to become leader")
	}

	require.NoError(t, elector.Stop())
	require.Error(t, ctx.Err())

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnStoppedLeading")
	}
}
