// Package notify delivers trigger notifications over NATS.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoryd/internal/logging"
)

// ErrInvalidConfig indicates missing or malformed publisher configuration.
var ErrInvalidConfig = errors.New("invalid notify configuration")

// Notification is one published trigger event.
type Notification struct {
	UserID         string    `json:"userId"`
	ConversationID string    `json:"conversationId,omitempty"`
	Subject        string    `json:"subject,omitempty"`
	Message        string    `json:"message"`
	SentAt         time.Time `json:"sentAt"`
}

// Publisher delivers notifications.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
	Close()
}

// Config holds NATS publisher configuration.
type Config struct {
	URL     string
	Subject string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Subject == "" {
		c.Subject = "memoryd.triggers"
	}
}

// NATSPublisher publishes notifications to a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to the configured NATS server.
func NewNATSPublisher(config Config) (*NATSPublisher, error) {
	config.ApplyDefaults()
	if config.URL == "" {
		return nil, fmt.Errorf("%w: url required", ErrInvalidConfig)
	}
	conn, err := nats.Connect(config.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &NATSPublisher{conn: conn, subject: config.Subject}, nil
}

// Publish sends one notification as JSON. A failed publish is retried once,
// so delivery is at-least-once.
func (p *NATSPublisher) Publish(ctx context.Context, n Notification) error {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	var pubErr error
	for attempt := 0; attempt < 2; attempt++ {
		if pubErr = p.conn.Publish(p.subject, payload); pubErr == nil {
			return nil
		}
	}
	return fmt.Errorf("publishing notification: %w", pubErr)
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	_ = p.conn.Drain()
}

// LogPublisher is the fallback when no NATS server is configured: it logs
// the notification instead of delivering it.
type LogPublisher struct {
	logger *logging.Logger
}

// NewLogPublisher creates the logging fallback publisher.
func NewLogPublisher(logger *logging.Logger) *LogPublisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogPublisher{logger: logger.Named("notify")}
}

// Publish logs the notification.
func (p *LogPublisher) Publish(ctx context.Context, n Notification) error {
	p.logger.Info(ctx, "notification",
		zap.String("user_id", n.UserID),
		zap.String("conversation_id", n.ConversationID),
		zap.String("subject", n.Subject),
		zap.String("message", n.Message))
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() {}
