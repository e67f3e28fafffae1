package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/diffuselab/sdqueue/internal/db/models"
)

func resetBus() {
	handlers = make(map[EventType][]Handler)
	eventChan = make(chan Event, EventChannelSize)
}

func TestSubscribeAndPublish(t *testing.T) {
	resetBus()

	var wg sync.WaitGroup
	wg.Add(1)

	var mu sync.Mutex
	var received Event
	Subscribe(EventJobFinished, func(ctx context.Context, event Event) error {
		mu.Lock()
		received = event
		mu.Unlock()
		wg.Done()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Start(ctx)

	published := Event{
		Type:     EventJobFinished,
		JobID:    "job-123",
		ClientID: "client-1",
		Status:   models.JobStatusCompleted,
	}
	Publish(published)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event handler")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, published, received)
}

func TestMultipleHandlers(t *testing.T) {
	resetBus()

	var wg sync.WaitGroup
	wg.Add(2)

	var mu sync.Mutex
	calls := make(map[string]bool)
	for _, name := range []string{"first", "second"} {
		name := name
		Subscribe(EventJobEnqueued, func(ctx context.Context, event Event) error {
			mu.Lock()
			calls[name] = true
			mu.Unlock()
			wg.Done()
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Start(ctx)

	Publish(Event{Type: EventJobEnqueued, JobID: "job-456"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event handlers")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, calls["first"])
	assert.True(t, calls["second"])
}

func TestEventTypesAreIndependent(t *testing.T) {
	resetBus()

	var wg sync.WaitGroup
	wg.Add(1)

	Subscribe(EventJobStarted, func(ctx context.Context, event Event) error {
		wg.Done()
		return nil
	})
	Subscribe(EventJobFinished, func(ctx context.Context, event Event) error {
		t.Error("finished handler must not receive started events")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	Start(ctx)

	Publish(Event{Type: EventJobStarted, JobID: "job-789"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event handler")
	}
	time.Sleep(50 * time.Millisecond)
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	resetBus()

	ctx, cancel := context.WithCancel(context.Background())
	Start(ctx)
	cancel()
	time.Sleep(50 * time.Millisecond)

	// the loop is gone; publishing must neither block nor panic
	for i := 0; i < EventChannelSize+10; i++ {
		Publish(Event{Type: EventJobEnqueued, JobID: "job-after-stop"})
	}
}
