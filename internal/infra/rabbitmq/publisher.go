package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"quizmaster/internal/domain"
)

const (
	// DefaultExchange receives every quiz event.
	DefaultExchange = "quiz.events"
	// RoutingKeySessionFinished is used for finished-session outcomes.
	RoutingKeySessionFinished = "session.finished"
)

// channel is the part of *amqp091.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// OutcomePublisher publishes finished sessions to a topic exchange.
type OutcomePublisher struct {
	conn     *amqp091.Connection
	mu       sync.Mutex
	channel  channel
	exchange string
	enabled  bool
}

// NewOutcomePublisher connects and declares the exchange. An empty url returns a
// disabled publisher that drops events.
func NewOutcomePublisher(url, exchange string) (*OutcomePublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if url == "" {
		log.Println("rabbitmq url is empty, outcome publishing is disabled")
		return &OutcomePublisher{exchange: exchange}, nil
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	log.Printf("outcome publisher ready on exchange %s", exchange)
	return &OutcomePublisher{conn: conn, channel: ch, exchange: exchange, enabled: true}, nil
}

func newPublisherWithChannel(ch channel, exchange string) *OutcomePublisher {
	return &OutcomePublisher{channel: ch, exchange: exchange, enabled: true}
}

func (p *OutcomePublisher) Enabled() bool {
	return p.enabled
}

func (p *OutcomePublisher) PublishOutcome(ctx context.Context, event domain.OutcomeEvent) error {
	if !p.enabled {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		p.exchange,                // exchange
		RoutingKeySessionFinished, // routing key
		false,                     // mandatory
		false,                     // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			MessageId:    event.SessionID,
			Body:         body,
			Headers: amqp091.Table{
				"category": event.CategoryID,
				"mode":     string(event.Mode),
				"user_id":  event.UserID,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("publish outcome: %w", err)
	}
	return nil
}

func (p *OutcomePublisher) Close() error {
	if !p.enabled {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		log.Printf("close rabbitmq channel: %v", err)
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
