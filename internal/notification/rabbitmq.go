package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Publisher is the subset of *amqp.Channel used for publishing
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitSender publishes events to a topic exchange, one routing key per user
type RabbitSender struct {
	pub      Publisher
	exchange string
	breaker  *gobreaker.CircuitBreaker
	log      *logrus.Logger
	closer   func() error
}

// NewRabbitSender wraps pub with a circuit breaker
func NewRabbitSender(pub Publisher, exchange string, log *logrus.Logger) *RabbitSender {
	s := &RabbitSender{pub: pub, exchange: exchange, log: log}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rabbitmq-" + exchange,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("Circuit breaker %s changed from %s to %s", name, from, to)
		},
	})
	return s
}

// DialRabbit connects to the broker and declares the exchange
func DialRabbit(url, exchange string, log *logrus.Logger) (*RabbitSender, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	s := NewRabbitSender(ch, exchange, log)
	s.closer = func() error {
		ch.Close()
		return conn.Close()
	}
	log.Infof("Publishing notifications to exchange %s", exchange)
	return s, nil
}

// RoutingKey is the key a user's consumers bind to.
func RoutingKey(userID int64) string {
	return fmt.Sprintf("notifications.user.%d", userID)
}

func (s *RabbitSender) Send(ctx context.Context, event Event, targetUserID int64) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.pub.PublishWithContext(ctx, s.exchange, RoutingKey(targetUserID), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Type:         event.Type,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// Close releases the broker connection when the sender owns it
func (s *RabbitSender) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
