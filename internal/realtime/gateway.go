package realtime

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/movaride/negotiation/internal/negotiation"
	"github.com/movaride/negotiation/internal/trip"
	"github.com/movaride/negotiation/pkg/common"
	"github.com/movaride/negotiation/pkg/logger"
	"github.com/movaride/negotiation/pkg/middleware"
)

// Gateway bridges WebSocket connections to negotiation sessions: a
// "subscribe" frame joins the trip's room and opens a store subscription
// whose classified events are pushed back to the room member.
type Gateway struct {
	hub      *Hub
	svc      *negotiation.Service
	upgrader websocket.Upgrader

	mu      sync.Mutex
	cancels map[string]map[string]func()
}

// NewGateway wires the gateway's message handlers into the hub.
func NewGateway(hub *Hub, svc *negotiation.Service) *Gateway {
	g := &Gateway{
		hub: hub,
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks happen at the gateway in front of this service.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cancels: make(map[string]map[string]func()),
	}

	hub.RegisterHandler("subscribe", g.handleSubscribe)
	hub.RegisterHandler("unsubscribe", g.handleUnsubscribe)
	hub.OnDisconnect(g.dropSubscriptions)
	return g
}

// HandleWebSocket upgrades the request and starts the connection pumps.
func (g *Gateway) HandleWebSocket(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	role, err := middleware.GetUserRole(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(userID, conn, g.hub, role, logger.Get())
	g.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

func (g *Gateway) handleSubscribe(client *Client, msg *Message) {
	if msg.TripID == "" {
		client.SendMessage(&Message{Type: "error", Data: map[string]interface{}{
			"message": "tripId is required",
		}})
		return
	}

	party := trip.Party{Role: trip.Role(client.Role), ID: client.ID}
	var observe func(context.Context, negotiation.ObserveFunc) (func(), error)
	if party.Role == trip.RoleDriver {
		observe = g.svc.DriverSession(party, msg.TripID).Observe
	} else {
		observe = g.svc.ClientSession(party, msg.TripID).Observe
	}

	cancel, err := observe(context.Background(), func(event trip.Event, t *trip.TripRequest) {
		g.hub.SendToUser(client.ID, &Message{
			Type:   event.Kind(),
			TripID: t.ID,
			Data: map[string]interface{}{
				"event": event,
				"trip":  t,
			},
		})
	})
	if err != nil {
		client.SendMessage(&Message{Type: "error", TripID: msg.TripID, Data: map[string]interface{}{
			"message": "subscription failed",
		}})
		logger.Warn("trip subscription failed",
			zap.String("trip_id", msg.TripID), zap.String("client_id", client.ID), zap.Error(err))
		return
	}

	g.mu.Lock()
	byTrip, ok := g.cancels[client.ID]
	if !ok {
		byTrip = make(map[string]func())
		g.cancels[client.ID] = byTrip
	}
	if prev, ok := byTrip[msg.TripID]; ok {
		prev()
	}
	byTrip[msg.TripID] = cancel
	g.mu.Unlock()

	g.hub.AddClientToTrip(client.ID, msg.TripID)
	client.SendMessage(&Message{Type: "subscribed", TripID: msg.TripID})
}

func (g *Gateway) handleUnsubscribe(client *Client, msg *Message) {
	g.mu.Lock()
	if byTrip, ok := g.cancels[client.ID]; ok {
		if cancel, ok := byTrip[msg.TripID]; ok {
			cancel()
			delete(byTrip, msg.TripID)
		}
	}
	g.mu.Unlock()

	g.hub.RemoveClientFromTrip(client.ID, msg.TripID)
	client.SendMessage(&Message{Type: "unsubscribed", TripID: msg.TripID})
}

func (g *Gateway) dropSubscriptions(clientID string) {
	g.mu.Lock()
	byTrip := g.cancels[clientID]
	delete(g.cancels, clientID)
	g.mu.Unlock()

	for _, cancel := range byTrip {
		cancel()
	}
}
