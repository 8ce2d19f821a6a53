package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func TestTrigger_NilIsNoop(t *testing.T) {
	var tr *Trigger
	tr.Fire(context.Background(), "u1")
}

func TestTrigger_FireGenerates(t *testing.T) {
	store := newMemTemplateStore(template("w", core.Weekly, core.NewDate(2024, 1, 1)))
	tr := NewTrigger(newTestGenerator(store, at(2024, 1, 8)), time.Second)

	tr.Fire(context.Background(), "u1")

	assert.Len(t, store.transactions(), 1)
}

func TestTrigger_ConcurrentCallsShareOneSweep(t *testing.T) {
	store := newMemTemplateStore(template("w", core.Weekly, core.NewDate(2024, 1, 1)))
	store.listGate = make(chan struct{})
	tr := NewTrigger(newTestGenerator(store, at(2024, 1, 8)), 5*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Fire(context.Background(), "u1")
		}()
	}

	// Let every caller join the in-flight sweep before releasing it.
	time.Sleep(100 * time.Millisecond)
	close(store.listGate)
	wg.Wait()

	store.mu.Lock()
	calls := store.listCalls
	store.mu.Unlock()
	assert.Equal(t, 1, calls)
	assert.Len(t, store.transactions(), 1)
}

func TestTrigger_ListErrorIsSwallowed(t *testing.T) {
	store := newMemTemplateStore()
	store.listErr = errBoom
	tr := NewTrigger(newTestGenerator(store, at(2024, 1, 8)), time.Second)

	tr.Fire(context.Background(), "u1")
}

func TestTrigger_CallerCancellationDoesNotAbortSweep(t *testing.T) {
	store := newMemTemplateStore(template("w", core.Weekly, core.NewDate(2024, 1, 1)))
	store.listGate = make(chan struct{})
	tr := NewTrigger(newTestGenerator(store, at(2024, 1, 8)), 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Fire(ctx, "u1")
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	close(store.listGate)
	require.Eventually(t, func() bool { return len(store.transactions()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestScheduler_Lifecycle(t *testing.T) {
	store := newMemTemplateStore(template("w", core.Weekly, core.NewDate(2024, 1, 1)))
	s := NewScheduler(newTestGenerator(store, at(2024, 1, 8)), time.Hour)

	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop(context.Background()), "stopping an idle scheduler is a no-op")

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(context.Background()), "second start must fail")

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())

	// The initial sweep completes before Stop returns.
	assert.Len(t, store.transactions(), 1)
}

func TestScheduler_DefaultInterval(t *testing.T) {
	s := NewScheduler(nil, 0)
	assert.Equal(t, DefaultSchedulerInterval, s.interval)
}
