package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduguide-api/internal/dto"
)

// NATSImportPublisher publishes import completion events on a NATS subject.
type NATSImportPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSImportPublisher builds a publisher for the given subject.
func NewNATSImportPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) *NATSImportPublisher {
	return &NATSImportPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "import_event_publisher").Logger(),
	}
}

// PublishImportCompleted serialises the event and hands it to NATS.
func (p *NATSImportPublisher) PublishImportCompleted(ctx context.Context, event dto.ImportCompletedEvent) error {
	if p == nil || p.conn == nil || p.subject == "" {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode import event: %w", err)
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("failed to publish import event: %w", err)
	}

	p.logger.Debug().Uint("upload_id", event.UploadID).Str("subject", p.subject).Msg("import event published")
	return nil
}
