package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-routine-api/pkg/middleware/requestid"
)

// Event subjects, relative to the configured prefix.
const (
	SubjectRoutineGenerated  = "routine.generated"
	SubjectRoutineRefactored = "routine.refactored"
	SubjectBatchCompleted    = "routine.batch.completed"
)

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
	Close() error
}

// Config holds NATS connection settings.
type Config struct {
	URL            string
	Name           string
	SubjectPrefix  string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// Envelope wraps every published payload.
type Envelope struct {
	Subject    string      `json:"subject"`
	OccurredAt time.Time   `json:"occurredAt"`
	RequestID  string      `json:"requestId,omitempty"`
	Data       interface{} `json:"data"`
}

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes JSON envelopes on core NATS subjects.
type NATSPublisher struct {
	conn   conn
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewNATSPublisher connects to NATS.
func NewNATSPublisher(cfg Config, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 10
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return newNATSPublisher(nc, cfg.SubjectPrefix, logger), nil
}

func newNATSPublisher(c conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{conn: c, prefix: strings.Trim(prefix, "."), logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Subject joins the prefix and the event subject.
func (p *NATSPublisher) Subject(subject string) string {
	if p.prefix == "" {
		return subject
	}
	return p.prefix + "." + subject
}

// Publish marshals the payload into an envelope and sends it.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := p.Subject(subject)
	body, err := json.Marshal(Envelope{
		Subject:    full,
		OccurredAt: p.now(),
		RequestID:  requestid.FromContext(ctx),
		Data:       payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", full, err)
	}
	if err := p.conn.Publish(full, body); err != nil {
		return fmt.Errorf("publish event %s: %w", full, err)
	}
	p.logger.Debug("event published", zap.String("subject", full), zap.Int("bytes", len(body)))
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
