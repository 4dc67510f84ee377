// Package rabbit provides the RabbitMQ integration: exchange and queue
// topology, the consuming supervisor, message dispatch, and the match-alert
// publisher.
package rabbit

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker topology. The exchange and bindings are shared contract with the
// upstream services that publish user and scholarship events.
const (
	ExchangeName = "events_exchange"

	UserEventsQueue        = "user_events_queue"
	ScholarshipEventsQueue = "scholarship_events_queue"

	userBindingKey        = "user.#"
	scholarshipBindingKey = "scholarship.#"
)

// Topology carries the queue arguments that bound broker-side buildup.
type Topology struct {
	MessageTTL time.Duration
	MaxLength  int64
}

// Declare sets up the exchange, both queues, and their wildcard bindings on
// the given channel. Declarations are idempotent as long as the arguments
// match what the broker already holds.
func (t Topology) Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("op=rabbit.declare exchange: %w", err)
	}

	args := amqp.Table{
		"x-message-ttl": t.MessageTTL.Milliseconds(),
		"x-max-length":  t.MaxLength,
	}
	for _, q := range []struct {
		name    string
		binding string
	}{
		{UserEventsQueue, userBindingKey},
		{ScholarshipEventsQueue, scholarshipBindingKey},
	} {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, args); err != nil {
			return fmt.Errorf("op=rabbit.declare queue=%s: %w", q.name, err)
		}
		if err := ch.QueueBind(q.name, q.binding, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("op=rabbit.declare bind=%s: %w", q.name, err)
		}
	}
	return nil
}
