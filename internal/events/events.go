// Package events provides in-process notification of job lifecycle changes.
package events

import (
	"context"
	"sync"

	"github.com/diffuselab/sdqueue/internal/db/models"
	"github.com/diffuselab/sdqueue/internal/logger"
)

// EventType represents the type of job lifecycle event
type EventType string

const (
	// EventJobEnqueued is emitted when a job is created and scheduled
	EventJobEnqueued EventType = "job_enqueued"
	// EventJobStarted is emitted when a worker picks a job up
	EventJobStarted EventType = "job_started"
	// EventJobFinished is emitted when a terminal status is recorded
	EventJobFinished EventType = "job_finished"
	// EventChannelSize is the buffer size for the event channel
	EventChannelSize = 100
)

// Event represents a job lifecycle event
type Event struct {
	Type     EventType        // The type of event
	JobID    string           // The job ID
	ClientID string           // The owning client
	Status   models.JobStatus // The job status after the change
	Error    string           // The recorded error, if any
}

// Handler is a function that handles an event
type Handler func(context.Context, Event) error

var (
	handlers   = make(map[EventType][]Handler)
	handlersMu sync.RWMutex
	eventChan  = make(chan Event, EventChannelSize)
)

// Subscribe registers a handler for a specific event type
func Subscribe(eventType EventType, handler Handler) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers[eventType] = append(handlers[eventType], handler)
	logger.Debugf("Registered handler for event type: %s", eventType)
}

// Publish sends an event to be processed. Events are dropped when the
// channel is saturated so publication never blocks the job pipeline.
func Publish(event Event) {
	select {
	case eventChan <- event:
	default:
		logger.Warnf("Event channel full, dropping %s for job %s", event.Type, event.JobID)
	}
}

// Start starts the event processing loop
func Start(ctx context.Context) {
	go processEvents(ctx)
	logger.Info("Started event processing loop")
}

// processEvents handles events in the background
func processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping event processing loop")
			return
		case event := <-eventChan:
			handlersMu.RLock()
			eventHandlers := handlers[event.Type]
			handlersMu.RUnlock()

			for _, handler := range eventHandlers {
				go func(h Handler, e Event) {
					if err := h(ctx, e); err != nil {
						logger.Errorf("Failed to handle event %s for job %s: %v", e.Type, e.JobID, err)
					}
				}(handler, event)
			}
		}
	}
}
