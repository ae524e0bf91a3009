package notification

import (
	"context"
	"log/slog"
)

const defaultQueueSize = 256

// Dispatcher decouples notification delivery from workflow transitions: events
// are queued on a buffered channel and delivered by a worker goroutine, so a
// slow or failing gateway can never block a transition. When the queue is
// full the event is dropped with a warning, consistent with the best-effort
// delivery contract.
type Dispatcher struct {
	gateway Gateway
	queue   chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewDispatcher(gateway Gateway) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		gateway: gateway,
		queue:   make(chan Event, defaultQueueSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Notify enqueues the event without blocking the caller.
func (d *Dispatcher) Notify(ctx context.Context, event Event) {
	select {
	case d.queue <- event:
	default:
		slog.Warn("notification queue full, dropping event",
			"event", event.EventType,
			"requestID", event.RequestID)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.ctx.Done():
			// Drain whatever is already queued before exiting.
			for {
				select {
				case event := <-d.queue:
					d.gateway.Notify(context.Background(), event)
				default:
					return
				}
			}
		case event := <-d.queue:
			d.gateway.Notify(d.ctx, event)
		}
	}
}

// Stop shuts down the worker after draining queued events.
func (d *Dispatcher) Stop() {
	d.cancel()
	<-d.done
}
