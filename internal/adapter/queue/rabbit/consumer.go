package rabbit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer is the connection supervisor: it owns the dial/declare/consume
// lifecycle for both event queues and reconnects with a fixed delay until
// its context is cancelled. Message handling is delegated to the Dispatcher;
// the supervisor only settles deliveries according to its decisions.
type Consumer struct {
	URL            string
	Topology       Topology
	Dispatcher     *Dispatcher
	ReconnectDelay time.Duration
	Log            *slog.Logger
}

// Run blocks consuming both queues until ctx is cancelled. Connection and
// channel failures are logged and retried after ReconnectDelay; Run only
// returns the ctx error.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := c.consumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Log.Error("broker session ended, reconnecting",
				slog.Any("error", err),
				slog.Duration("delay", c.ReconnectDelay))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.ReconnectDelay):
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context) error {
	conn, err := amqp.Dial(c.URL)
	if err != nil {
		return fmt.Errorf("op=rabbit.dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("op=rabbit.channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := c.Topology.Declare(ch); err != nil {
		return err
	}
	// One unacked message at a time; handler retries make processing slow
	// and prefetch>1 would just hold deliveries hostage.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("op=rabbit.qos: %w", err)
	}

	userDeliveries, err := ch.Consume(UserEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("op=rabbit.consume queue=%s: %w", UserEventsQueue, err)
	}
	oppDeliveries, err := ch.Consume(ScholarshipEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("op=rabbit.consume queue=%s: %w", ScholarshipEventsQueue, err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	c.Log.Info("consuming",
		slog.String("exchange", ExchangeName),
		slog.String("queues", UserEventsQueue+","+ScholarshipEventsQueue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			return fmt.Errorf("op=rabbit.session: connection closed: %v", amqpErr)
		case d, ok := <-userDeliveries:
			if !ok {
				return fmt.Errorf("op=rabbit.session: %s delivery channel closed", UserEventsQueue)
			}
			c.settle(ctx, d)
		case d, ok := <-oppDeliveries:
			if !ok {
				return fmt.Errorf("op=rabbit.session: %s delivery channel closed", ScholarshipEventsQueue)
			}
			c.settle(ctx, d)
		}
	}
}

func (c *Consumer) settle(ctx context.Context, d amqp.Delivery) {
	decision := c.Dispatcher.Dispatch(ctx, d.RoutingKey, d.Body)
	var err error
	switch decision {
	case AckMessage:
		err = d.Ack(false)
	case RejectDiscard:
		err = d.Nack(false, false)
	case RejectRequeue:
		err = d.Nack(false, true)
	}
	if err != nil {
		c.Log.Error("failed to settle delivery",
			slog.String("routing_key", d.RoutingKey),
			slog.Any("error", err))
	}
}
