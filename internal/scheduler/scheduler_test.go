package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalScheduler_RunImmediatelyThenCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewIntervalScheduler(ctx, 50*time.Millisecond)
	s.RunImmediately = true

	runs := 0
	done := make(chan struct{})
	go func() {
		s.Start(func() {
			runs++
			cancel()
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	assert.Equal(t, 1, runs)
}

func TestIntervalScheduler_InvalidInputsReturn(t *testing.T) {
	s := NewIntervalScheduler(context.Background(), 0)
	s.Start(func() {}) // returns immediately on invalid interval

	s = NewIntervalScheduler(context.Background(), time.Second)
	s.Start(nil) // returns immediately on nil task
}
