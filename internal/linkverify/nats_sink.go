package linkverify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/sitebuilder/internal/retry"
)

// Sink receives broken link events.
type Sink interface {
	Publish(ctx context.Context, events []BrokenLinkEvent) error
	Close() error
}

// NATSSink publishes broken link events to a NATS subject.
type NATSSink struct {
	conn    *nats.Conn
	subject string
	policy  retry.Policy
}

// NewNATSSink connects to the NATS server at url.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	if subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}
	conn, err := nats.Connect(url,
		nats.Name("sitebuilder-linkverify"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS sink initialized for link verification", "url", url, "subject", subject)
	return &NATSSink{conn: conn, subject: subject, policy: retry.DefaultPolicy()}, nil
}

// Publish sends every event and flushes the connection. A failed publish or
// flush is retried as a whole.
func (s *NATSSink) Publish(ctx context.Context, events []BrokenLinkEvent) error {
	if len(events) == 0 {
		return nil
	}
	payloads := make([][]byte, len(events))
	for i := range events {
		data, err := json.Marshal(&events[i])
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		payloads[i] = data
	}
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		for _, data := range payloads {
			if err := s.conn.Publish(s.subject, data); err != nil {
				return fmt.Errorf("failed to publish event: %w", err)
			}
		}
		if err := s.conn.FlushWithContext(ctx); err != nil {
			return fmt.Errorf("failed to flush events: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.Debug("Published broken link events", "count", len(events), "subject", s.subject)
	return nil
}

// Close drains and closes the connection.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
