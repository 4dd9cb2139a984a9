// internal/event/dispatcher.go
package event

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink delivers an event to the notification layer.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// Dispatcher fans events out to a sink asynchronously. Delivery runs on its
// own goroutine with its own deadline: a slow or failing notification layer
// must never block or roll back a state transition.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	log     *logrus.Entry
}

func NewDispatcher(sink Sink, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		sink:    sink,
		timeout: 5 * time.Second,
		log:     log,
	}
}

// Dispatch hands the event to the sink and returns immediately.
func (d *Dispatcher) Dispatch(ev Event) {
	if d == nil || d.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sink.Deliver(ctx, ev); err != nil {
			d.log.WithFields(logrus.Fields{
				"event": string(ev.Type),
				"error": err.Error(),
			}).Warn("event delivery failed")
		}
	}()
}

// LogSink writes events to the structured log. It is the default sink when
// no notifier endpoint is configured.
type LogSink struct {
	Log *logrus.Entry
}

func (s LogSink) Deliver(ctx context.Context, ev Event) error {
	s.Log.WithField("event", string(ev.Type)).Info("domain event")
	return nil
}
