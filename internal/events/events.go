// Package events publishes generation lifecycle events to Kafka for the
// project and quoting systems.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/wallpanels/internal/core/observability"
	"github.com/mohammed-shakir/wallpanels/internal/tiling"
)

const (
	TypeCompleted = "generation.completed"
	TypeReleased  = "generation.released"
	TypeExpired   = "generation.expired"
	TypeEvicted   = "generation.evicted"
)

type Event struct {
	Type        string             `json:"type"`
	JobID       string             `json:"job_id"`
	NumPanels   int                `json:"num_panels"`
	Layout      tiling.LayoutSpec  `json:"layout"`
	Dimensions  *tiling.Dimensions `json:"dimensions,omitempty"`
	Fingerprint string             `json:"fingerprint"`
	TS          time.Time          `json:"ts"`
}

// Interface is what the panel service needs from a publisher.
type Interface interface {
	Publish(ev Event)
	Close() error
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(Event) {}
func (Noop) Close() error { return nil }

type Publisher struct {
	topic   string
	log     *slog.Logger
	events  chan Event
	prod    sarama.AsyncProducer
	stopped chan struct{}
	errDone chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = "wallpanels"
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	return cfg
}

func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	prod, err := sarama.NewAsyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}
	return NewWithProducer(prod, topic, queueSize, log), nil
}

// NewWithProducer starts a publisher on an existing producer, which it
// owns from then on.
func NewWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		log:     log,
		events:  make(chan Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
		errDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				observability.IncEvent(ev.Type, err)
				p.log.Warn("events: marshal error", "err", err, "type", ev.Type)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.JobID),
				Value: sarama.ByteEncoder(b),
			}
			observability.IncEvent(ev.Type, nil)
		}
	}()

	go func() {
		defer close(p.errDone)
		for err := range p.prod.Errors() {
			if err != nil {
				observability.IncEvent("producer", err)
				p.log.Warn("events: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish enqueues ev without blocking; when the queue is full the event
// is dropped.
func (p *Publisher) Publish(ev Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
		observability.IncEvent("dropped", nil)
	}
}

// Close drains queued events into the producer and closes it. Later
// Publish calls are ignored.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	<-p.errDone
	return nil
}
