package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/edumatch/matching-service/internal/adapter/observability"
	"github.com/edumatch/matching-service/internal/domain"
)

// Publisher emits match alerts on the shared events exchange. It lazily
// opens one connection and channel, guarded by a mutex, and redials on the
// next publish after a failure.
type Publisher struct {
	URL string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher constructs a Publisher for the given broker URL.
func NewPublisher(url string) *Publisher { return &Publisher{URL: url} }

// PublishMatchAlert publishes the alert with routing key
// scholarship.new.match for the notification consumer downstream.
func (p *Publisher) PublishMatchAlert(ctx domain.Context, a domain.MatchAlert) error {
	body, err := json.Marshal(a)
	if err != nil {
		observability.AlertPublishFailuresTotal.Inc()
		return fmt.Errorf("op=publisher.marshal: %w", err)
	}
	if err := p.publish(ctx, domain.RouteNewMatch, body); err != nil {
		observability.AlertPublishFailuresTotal.Inc()
		return err
	}
	observability.AlertsPublishedTotal.Inc()
	return nil
}

func (p *Publisher) publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, ExchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ulid.Make().String(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("op=publisher.publish key=%s: %w", routingKey, err)
	}
	return nil
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return nil, fmt.Errorf("op=publisher.dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("op=publisher.channel: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("op=publisher.declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
