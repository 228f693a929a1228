// Package events publishes classified negotiation events to NATS for
// downstream fan-out (push gateways, analytics). Optional: a nil
// Publisher drops everything.
package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/movaride/negotiation/internal/trip"
	"github.com/movaride/negotiation/pkg/logger"
)

// SubjectPrefix is the NATS subject prefix for trip events.
const SubjectPrefix = "trips."

// Envelope is the wire form of a published event.
type Envelope struct {
	Type      string      `json:"type"`
	TripID    string      `json:"tripId"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher sends trip events to NATS.
type Publisher struct {
	conn *nats.Conn
}

// Connect dials the NATS server and returns a publisher.
func Connect(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn}, nil
}

// Publish sends the classified event on the trip's subject. Best effort:
// failures are logged, never surfaced to the negotiation path.
func (p *Publisher) Publish(tripID string, event trip.Event) {
	if p == nil || event == nil {
		return
	}

	payload, err := json.Marshal(Envelope{
		Type:      event.Kind(),
		TripID:    tripID,
		Data:      event,
		Timestamp: time.Now(),
	})
	if err != nil {
		logger.Error("marshal trip event", zap.String("trip_id", tripID), zap.Error(err))
		return
	}

	if err := p.conn.Publish(SubjectPrefix+tripID, payload); err != nil {
		logger.Error("publish trip event", zap.String("trip_id", tripID), zap.Error(err))
	}
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
}
