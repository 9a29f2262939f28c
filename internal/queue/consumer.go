package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditLogName is the file, inside the consumer's log directory, that
// receives one line per event.
const AuditLogName = "watermark.log"

// StartAuditConsumer connects to RabbitMQ, declares both image queues and
// appends one line per delivery to <logDir>/watermark.log.  It reconnects
// with exponential backoff until ctx is cancelled.
func StartAuditConsumer(ctx context.Context, url, logDir string) error {
	if url == "" {
		return errors.New("audit-consumer: RABBITMQ_URL is empty")
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			slog.Warn("audit-consumer: failed to dial broker", "err", err, "retry_in", backoff)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logDir)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("audit-consumer: consume loop ended, reconnecting", "err", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logDir string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		slog.Warn("audit-consumer: set QoS failed", "err", err)
	}

	watermarked, err := subscribe(ch, ImageWatermarkedQueue)
	if err != nil {
		return err
	}
	deleted, err := subscribe(ch, ImageDeletedQueue)
	if err != nil {
		return err
	}

	for {
		var (
			d     amqp.Delivery
			ok    bool
			queue string
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-watermarked:
			queue = ImageWatermarkedQueue
		case d, ok = <-deleted:
			queue = ImageDeletedQueue
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := handleMessage(logDir, queue, d.Body); err != nil {
			slog.Error("audit-consumer: handle message failed", "queue", queue, "err", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
}

func subscribe(ch *amqp.Channel, name string) (<-chan amqp.Delivery, error) {
	if err := Declare(ch, name); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", name, err)
	}
	msgs, err := ch.Consume(name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", name, err)
	}
	return msgs, nil
}

// FormatLine renders one audit line for a raw message taken from queue.
func FormatLine(queue string, body []byte) (string, error) {
	switch queue {
	case ImageWatermarkedQueue:
		var ev ImageWatermarkedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Image watermarked | image_id=%s | user_id=%s | original=%q | watermarked=%q | metadata=%q\n",
			ev.CreatedAt, ev.ImageID, orGuest(ev.UserID), ev.OriginalName, ev.WatermarkedName, ev.Metadata), nil
	case ImageDeletedQueue:
		var ev ImageDeletedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Image deleted | image_id=%s | user_id=%s\n",
			ev.DeletedAt, ev.ImageID, orGuest(ev.UserID)), nil
	default:
		return "", fmt.Errorf("unknown queue %q", queue)
	}
}

func orGuest(id string) string {
	if id == "" {
		return "guest"
	}
	return id
}

func handleMessage(logDir, queue string, body []byte) error {
	line, err := FormatLine(queue, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, AuditLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
