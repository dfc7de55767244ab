package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/project-radar/backend/internal/models"
)

// EventNewProject is the event name attached to every accepted-project
// message so subscribers can route on it.
const EventNewProject = "new-project"

// Notifier broadcasts accepted projects to a Kafka topic. Delivery is
// best-effort from the pipeline's point of view: the caller logs failures and
// never retries.
type Notifier struct {
	writer *kafka.Writer
}

// New builds a notifier publishing to the given topic.
func New(brokers []string, topic string) *Notifier {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		MaxAttempts: 1,
	})
	return &Notifier{writer: writer}
}

// Publish sends the project as a JSON message keyed by slug.
func (n *Notifier) Publish(ctx context.Context, project models.Project) error {
	payload, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("marshal project event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(project.Slug),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(EventNewProject)},
		},
	}

	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish project event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (n *Notifier) Close() error {
	return n.writer.Close()
}
