package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/image-tattoo/internal/queue"
)

// Publisher emits domain events.  Publishing is best effort: callers log the
// error and carry on with the request.
type Publisher interface {
	ImageWatermarked(ctx context.Context, ev queue.ImageWatermarkedEvent) error
	ImageDeleted(ctx context.Context, ev queue.ImageDeletedEvent) error
}

// NewPublisher returns an AMQP publisher for url, or a no-op publisher when
// url is empty.
func NewPublisher(url string) Publisher {
	if url == "" {
		return NopPublisher{}
	}
	return &AMQPPublisher{URL: url}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) ImageWatermarked(context.Context, queue.ImageWatermarkedEvent) error { return nil }
func (NopPublisher) ImageDeleted(context.Context, queue.ImageDeletedEvent) error         { return nil }

// AMQPPublisher dials RabbitMQ once per event and sends a persistent JSON
// message to the durable queue named after the event.
type AMQPPublisher struct {
	URL string
}

func (p *AMQPPublisher) ImageWatermarked(ctx context.Context, ev queue.ImageWatermarkedEvent) error {
	return p.publish(ctx, queue.ImageWatermarkedQueue, ev)
}

func (p *AMQPPublisher) ImageDeleted(ctx context.Context, ev queue.ImageDeletedEvent) error {
	return p.publish(ctx, queue.ImageDeletedQueue, ev)
}

func (p *AMQPPublisher) publish(ctx context.Context, queueName string, event any) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		slog.Warn("rabbitmq: dial failed", "err", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		slog.Warn("rabbitmq: channel open failed", "err", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := queue.Declare(ch, queueName); err != nil {
		slog.Warn("rabbitmq: queue declare failed", "queue", queueName, "err", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		slog.Warn("rabbitmq: publish failed", "queue", queueName, "err", err)
		return err
	}
	return nil
}
