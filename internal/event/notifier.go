// internal/event/notifier.go
package event

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// NotifierSink posts events to the external notification dispatcher over
// HTTP. A circuit breaker sheds load while the dispatcher is down; tripping
// it only drops notifications, never the transitions that produced them.
type NotifierSink struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
}

func NewNotifierSink(baseURL string, log *logrus.Entry) *NotifierSink {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(3 * time.Second).
		SetRetryCount(2)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notifier",
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"circuit": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("circuit breaker state changed")
		},
	})

	return &NotifierSink{client: client, breaker: breaker}
}

func (s *NotifierSink) Deliver(ctx context.Context, ev Event) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(ev).
			Post("/events")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("notifier returned status %d", resp.StatusCode())
		}
		return nil, nil
	})
	return err
}
