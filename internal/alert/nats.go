package alert

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
	"github.com/vigilproject/vigil/internal/model"
)

// DefaultSubject is the NATS subject alerts are published to.
const DefaultSubject = "vigil.alerts"

// NATSPublisher forwards alerts to a NATS subject so downstream consumers
// (dashboards, responders) can subscribe without tailing the alert file.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to url and publishes to subject.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url, nats.Name("vigil"))
	if err != nil {
		return nil, fmt.Errorf("alert: nats connect: %w", err)
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// Emit implements model.AlertSink.
func (p *NATSPublisher) Emit(a *model.Alert) error {
	if p.conn == nil || !p.conn.IsConnected() {
		return fmt.Errorf("alert: nats connection not available")
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("alert: marshal for nats: %w", err)
	}

	header := nats.Header{}
	header.Set("x-alert-id", a.ID)
	header.Set("x-alert-kind", string(a.Kind))
	if a.Key != "" {
		header.Set("x-alert-key", a.Key)
	}

	msg := &nats.Msg{Subject: p.subject, Data: payload, Header: header}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("alert: nats publish: %w", err)
	}
	return nil
}

// Close flushes and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Flush(); err != nil {
		log.Printf("alert: nats flush: %v", err)
	}
	p.conn.Close()
}
