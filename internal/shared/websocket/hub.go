package websocket

import (
	"context"
	"net"
	"time"

	"github.com/cristianortiz/bidEngine/internal/shared/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// SendBuffer is the per-client outbound queue, a client that falls this far behind is dropped
	SendBuffer = 64
)

// Conn is the subset of *websocket.Conn used by the pumps
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
	Close() error
}

// Hub keeps client's registry grouped by room (one room per auction) and handles broadcasting
type Hub struct {
	rooms map[string]map[*Client]struct{}

	broadcast  chan *Message
	direct     chan *ClientMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// InboundMessages is listened to by module-specific handlers (e.g, auction handler)
	InboundMessages chan *ClientMessage
}

// Client represents a ws individual connection
type Client struct {
	Hub  *Hub
	Conn Conn
	// Buffered channel of outbound messages, closed by the hub only
	Send chan []byte
	Room string
	ID   string
	// UserID is the authenticated caller, empty for anonymous viewers
	UserID string
}

type Message struct {
	Room string
	Data []byte
}

// ClientMessage wraps the client and the data it sent
type ClientMessage struct {
	Client *Client
	Data   []byte
}

func NewHub() *Hub {
	return &Hub{
		rooms:           make(map[string]map[*Client]struct{}),
		broadcast:       make(chan *Message, 256),
		direct:          make(chan *ClientMessage, 256),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		done:            make(chan struct{}),
		InboundMessages: make(chan *ClientMessage, 256),
	}
}

// Run starts the hub listening in their channels, all room state is owned by this goroutine
func (h *Hub) Run(ctx context.Context) {
	log.Info("WebSocket Hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			total := 0
			for room, clients := range h.rooms {
				for client := range clients {
					close(client.Send)
					total++
				}
				delete(h.rooms, room)
			}
			log.Info("WebSocket Hub shutting down", zap.Int("closed_clients", total))
			return

		case client := <-h.register:
			if _, ok := h.rooms[client.Room]; !ok {
				h.rooms[client.Room] = make(map[*Client]struct{})
			}
			h.rooms[client.Room][client] = struct{}{}
			log.Info("Client registered",
				zap.String("clientID", client.ID),
				zap.String("room", client.Room),
				zap.Int("room_clients", len(h.rooms[client.Room])),
			)

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.direct:
			if _, ok := h.rooms[message.Client.Room][message.Client]; !ok {
				continue
			}
			select {
			case message.Client.Send <- message.Data:
			default:
				h.remove(message.Client)
			}

		case message := <-h.broadcast:
			clients := h.rooms[message.Room]
			log.Debug("Broadcasting message to room", zap.String("room", message.Room), zap.Int("clients", len(clients)))
			for client := range clients {
				select {
				case client.Send <- message.Data:
				default:
					// slow consumer, it re-queries state on reconnect
					log.Warn("Client send buffer full, unregistering",
						zap.String("clientID", client.ID),
						zap.String("room", client.Room),
					)
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.Room]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	log.Info("Client unregistered", zap.String("clientID", client.ID), zap.String("room", client.Room))
	if len(clients) == 0 {
		delete(h.rooms, client.Room)
	}
}

// RegisterClient adds a client to its room, it returns false once the hub stopped
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// UnregisterClient removes a client, safe to call more than once
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues data for every client in room, dropping it when the hub is saturated
func (h *Hub) Broadcast(room string, data []byte) {
	select {
	case h.broadcast <- &Message{Room: room, Data: data}:
	default:
		log.Error("Broadcast channel is full, message dropped", zap.String("room", room))
	}
}

// SendTo queues data for a single client, dropped if the client already left
func (h *Hub) SendTo(client *Client, data []byte) {
	select {
	case h.direct <- &ClientMessage{Client: client, Data: data}:
	default:
		log.Error("Direct channel is full, message dropped", zap.String("clientID", client.ID))
	}
}

// ReadPump forwards client frames to InboundMessages until the connection fails.
// It runs in the connection handler goroutine.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
		log.Debug("ReadPump stopped for client", zap.String("clientID", c.ID), zap.String("room", c.Room))
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { return c.Conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket read error",
					zap.String("clientID", c.ID),
					zap.String("room", c.Room),
					zap.Error(err),
				)
			}
			return
		}

		select {
		case c.Hub.InboundMessages <- &ClientMessage{Client: c, Data: message}:
		default:
			log.Error("Hub InboundMessages channel is full, dropping message",
				zap.String("clientID", c.ID),
				zap.String("room", c.Room),
			)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// At most one goroutine writes to a connection, so WriteControl and
// WriteMessage are only called from here.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return

		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The Hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one JSON document per frame
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn("Failed to write message to client",
					zap.String("clientID", c.ID),
					zap.String("room", c.Room),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug("Failed to write ping message to client", zap.String("clientID", c.ID), zap.Error(err))
				return
			}
		}
	}
}
