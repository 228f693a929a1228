package realtime

// Message is the wire frame exchanged over a WebSocket connection.
// Client-to-server types: "subscribe", "unsubscribe". Server-to-client
// types carry the classified negotiation event kind.
type Message struct {
	Type   string                 `json:"type"`
	TripID string                 `json:"tripId,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
}
