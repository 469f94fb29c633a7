package effects

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestRunnerDetachesFromCallerContext(t *testing.T) {
	r := NewRunner(nil, time.Second, nil)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))
	var gotErr error
	var gotValue any
	done := make(chan struct{})
	r.Go(ctx, "detached", func(taskCtx context.Context) error {
		<-done
		gotErr = taskCtx.Err()
		gotValue = taskCtx.Value(ctxKey{})
		return nil
	})
	cancel()
	close(done)
	r.Wait()

	assert.NoError(t, gotErr)
	assert.Equal(t, "v", gotValue)
}

func TestRunnerReportsFailures(t *testing.T) {
	var mu sync.Mutex
	var tasks []string
	r := NewRunner(nil, time.Second, func(task string) {
		mu.Lock()
		tasks = append(tasks, task)
		mu.Unlock()
	})

	r.Go(context.Background(), "ok", func(context.Context) error { return nil })
	r.Go(context.Background(), "boom", func(context.Context) error { return errors.New("boom") })
	r.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"boom"}, tasks)
}

func TestRunnerRecoversPanickingTask(t *testing.T) {
	var mu sync.Mutex
	var tasks []string
	r := NewRunner(nil, time.Second, func(task string) {
		mu.Lock()
		tasks = append(tasks, task)
		mu.Unlock()
	})

	r.Go(context.Background(), "audit:tickets.create", func(context.Context) error {
		var counts map[string]int
		counts["a"] = 1
		return nil
	})
	var after atomic.Bool
	r.Go(context.Background(), "notify:push", func(context.Context) error {
		after.Store(true)
		return nil
	})
	r.Close()

	assert.True(t, after.Load())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"audit:tickets.create"}, tasks)
}

func TestRunnerDropsAfterClose(t *testing.T) {
	r := NewRunner(nil, time.Second, nil)
	r.Close()

	var ran atomic.Bool
	r.Go(context.Background(), "late", func(context.Context) error {
		ran.Store(true)
		return nil
	})
	r.Wait()
	require.False(t, ran.Load())
}
