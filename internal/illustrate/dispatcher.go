package illustrate

import (
	"context"
	"log"

	"illustro/models"
)

// Dispatcher serializes pipeline triggering behind a channel. Producers
// (the API layer, the restorer) enqueue message-ready events; a single
// goroutine drains them and starts one pipeline run each, so trigger
// ordering matches arrival ordering and producers never block on LLM
// latency beyond the buffer.
type Dispatcher struct {
	pipeline *Pipeline
	ready    chan models.Message
	done     chan struct{}
	logger   *log.Logger
}

func NewDispatcher(pipeline *Pipeline, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		pipeline: pipeline,
		ready:    make(chan models.Message, buffer),
		done:     make(chan struct{}),
		logger:   log.New(log.Writer(), "[DISPATCH] ", log.LstdFlags),
	}
}

// Start runs the drain loop until ctx is cancelled. Each event gets its
// own pipeline goroutine; the in-flight set inside the pipeline, not the
// dispatcher, is what prevents duplicate work per message.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-d.ready:
				go func(msg models.Message) {
					if _, err := d.pipeline.Run(ctx, msg); err != nil {
						d.logger.Printf("pipeline run for message %d: %v", msg.ID, err)
					}
				}(msg)
			}
		}
	}()
}

// Enqueue hands a message to the drain loop. It drops the event when the
// buffer is full rather than blocking the producer; a dropped trigger is
// recoverable since the message stays eligible.
func (d *Dispatcher) Enqueue(msg models.Message) bool {
	select {
	case d.ready <- msg:
		return true
	default:
		d.logger.Printf("queue full, dropping trigger for message %d", msg.ID)
		return false
	}
}

// Wait blocks until the drain loop has exited after cancellation.
func (d *Dispatcher) Wait() {
	<-d.done
}
