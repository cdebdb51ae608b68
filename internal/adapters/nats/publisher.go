package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/hazardmap/internal/core/domain"
)

// Subjects used for record events.
const (
	StreamRecords  = "HAZARD_RECORDS"
	SubjectRecords = "hazardmap.records.>"
)

// RecordSubject returns "hazardmap.records.<kind>.<type>".
func RecordSubject(kind domain.Kind, typ domain.EventType) string {
	return "hazardmap.records." + string(kind) + "." + string(typ)
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure the stream exists
	cfg := nats.StreamConfig{
		Name:      StreamRecords,
		Subjects:  []string{SubjectRecords},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishRecordEvent publishes a created/deleted event. The event id doubles
// as the JetStream message id so retried publishes are de-duplicated.
func (p *Publisher) PublishRecordEvent(ctx context.Context, event *domain.RecordEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msgID := string(event.Kind) + ":" + event.ID + ":" + string(event.Type)
	_, err = p.js.Publish(RecordSubject(event.Kind, event.Type), data, nats.Context(ctx), nats.MsgId(msgID))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("hazardmap"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
