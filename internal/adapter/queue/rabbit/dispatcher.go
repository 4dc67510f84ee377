package rabbit

import (
	"log/slog"

	"github.com/edumatch/matching-service/internal/adapter/observability"
	"github.com/edumatch/matching-service/internal/domain"
)

// EventHandler processes one parsed event under the service retry policy.
type EventHandler interface {
	Handle(ctx domain.Context, ev domain.Event) domain.RetryResult
}

// AckDecision is the broker-level disposition for one delivery.
type AckDecision int

const (
	// AckMessage removes the delivery from the queue.
	AckMessage AckDecision = iota
	// RejectDiscard nacks without requeue: poison payloads that can never
	// succeed.
	RejectDiscard
	// RejectRequeue nacks with requeue so a later delivery retries after
	// transient failures outlast the in-process attempt budget.
	RejectRequeue
)

// Dispatcher parses raw deliveries into typed events and maps handler
// results to broker dispositions.
type Dispatcher struct {
	Handler EventHandler
	Log     *slog.Logger
}

// Dispatch processes one delivery and returns how to settle it.
//
// Parse failures are poison and are discarded: redelivering a payload that
// cannot be decoded can never succeed. Unrecognized routing keys are acked;
// producers may ship new event types before this consumer learns them.
// Terminal handler failures are discarded, exhausted retryable failures are
// requeued for a later delivery.
func (d *Dispatcher) Dispatch(ctx domain.Context, routingKey string, body []byte) AckDecision {
	observability.EventsConsumedTotal.WithLabelValues(routingKey).Inc()

	ev, err := domain.ParseEvent(routingKey, body)
	if err != nil {
		d.Log.Warn("discarding unparseable event",
			slog.String("routing_key", routingKey),
			slog.Any("error", err))
		observability.EventsProcessedTotal.WithLabelValues(routingKey, "poison").Inc()
		return RejectDiscard
	}
	if _, ok := ev.(domain.UnrecognizedEvent); ok {
		d.Log.Info("no handler for routing key", slog.String("routing_key", routingKey))
		observability.EventsProcessedTotal.WithLabelValues(routingKey, "unhandled").Inc()
		return AckMessage
	}

	res := d.Handler.Handle(ctx, ev)
	if res.Attempts > 1 {
		observability.EventRetriesTotal.WithLabelValues(routingKey).Add(float64(res.Attempts - 1))
	}
	observability.EventsProcessedTotal.WithLabelValues(routingKey, string(res.Outcome)).Inc()

	switch res.Outcome {
	case domain.OutcomeSuccess:
		return AckMessage
	default:
		if domain.Classify(res.Err) == domain.OutcomeTerminal {
			d.Log.Error("discarding event after terminal failure",
				slog.String("routing_key", routingKey),
				slog.Int("attempts", res.Attempts),
				slog.Any("error", res.Err))
			return RejectDiscard
		}
		d.Log.Warn("requeueing event after exhausted retries",
			slog.String("routing_key", routingKey),
			slog.Int("attempts", res.Attempts),
			slog.Any("error", res.Err))
		return RejectRequeue
	}
}
