package failure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultExchange = "claimqueue.failures"

// Publisher is the part of *amqp.Channel the sink uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AMQPConfig struct {
	URL              string
	Exchange         string
	OperationTimeout time.Duration
}

// AMQPSink publishes reports as JSON to a topic exchange with routing key
// job.failed.<TYPE> so alerting can subscribe per type.
type AMQPSink struct {
	pub      Publisher
	exchange string
	timeout  time.Duration
	closers  []func() error
}

func NewAMQPSink(pub Publisher, exchange string) *AMQPSink {
	if exchange == "" {
		exchange = defaultExchange
	}
	return &AMQPSink{pub: pub, exchange: exchange, timeout: 5 * time.Second}
}

// DialAMQPSink connects to the broker and declares the exchange.
func DialAMQPSink(cfg AMQPConfig) (*AMQPSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("amqp URL is required")
	}
	if cfg.Exchange == "" {
		cfg.Exchange = defaultExchange
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	sink := NewAMQPSink(ch, cfg.Exchange)
	if cfg.OperationTimeout > 0 {
		sink.timeout = cfg.OperationTimeout
	}
	sink.closers = []func() error{ch.Close, conn.Close}
	return sink, nil
}

func (s *AMQPSink) Record(ctx context.Context, r Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("amqp sink: encode report: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    r.JobID.String(),
		Timestamp:    r.Timestamp,
		Type:         string(r.Type),
		Body:         body,
	}
	if err := s.pub.PublishWithContext(ctx, s.exchange, RoutingKey(r), false, false, msg); err != nil {
		return fmt.Errorf("amqp sink: publish: %w", err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func RoutingKey(r Report) string {
	return "job.failed." + string(r.Type)
}
