// Package queue defines the messages exchanged over RabbitMQ and the audit
// consumer that records them.
package queue

import amqp "github.com/rabbitmq/amqp091-go"

const (
	ImageWatermarkedQueue = "image.watermarked"
	ImageDeletedQueue     = "image.deleted"
)

// ImageWatermarkedEvent is published after an upload has been tattooed and
// stored.
type ImageWatermarkedEvent struct {
	ImageID         string `json:"image_id"`
	OriginalName    string `json:"original_name"`
	WatermarkedName string `json:"watermarked_name"`
	Metadata        string `json:"metadata"`
	UserID          string `json:"user_id,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// ImageDeletedEvent is published after an image record has been removed.
type ImageDeletedEvent struct {
	ImageID   string `json:"image_id"`
	UserID    string `json:"user_id,omitempty"`
	DeletedAt string `json:"deleted_at"`
}

// Declare creates the durable queue name if it does not exist yet.
func Declare(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	return err
}
