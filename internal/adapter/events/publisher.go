// internal/adapter/events/publisher.go

package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/nats-io/nats.go"

	"mapaeleitoral/internal/service/session"
)

// bus is the part of *nats.Conn the publisher needs
type bus interface {
	Publish(subject string, data []byte) error
}

// Publisher forwards session events to NATS on
// "<topic>.<session>.<kind>". It implements session.Observer.
type Publisher struct {
	bus   bus
	topic string
}

var _ session.Observer = (*Publisher)(nil)

// NewPublisher creates a publisher on an open NATS connection
func NewPublisher(nc *nats.Conn, topic string) *Publisher {
	return newPublisher(nc, topic)
}

func newPublisher(b bus, topic string) *Publisher {
	topic = strings.Trim(topic, ".")
	if topic == "" {
		topic = "mapa"
	}
	return &Publisher{
		bus:   b,
		topic: topic,
	}
}

// Subject returns the subject an event is published on
func (p *Publisher) Subject(event session.Event) string {
	return fmt.Sprintf("%s.%s.%s", p.topic, token(event.Session), token(event.Kind))
}

// Notify publishes the event. The NATS client buffers writes, so this
// never waits on the network; failures are logged.
func (p *Publisher) Notify(event session.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("events: error encoding %s event for session %s: %v", event.Kind, event.Session, err)
		return
	}

	if err := p.bus.Publish(p.Subject(event), data); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return
		}
		log.Printf("events: error publishing %s event for session %s: %v", event.Kind, event.Session, err)
	}
}

// token makes a value safe to use as one subject token
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
