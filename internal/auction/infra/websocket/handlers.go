package websocket

import (
	"context"
	"encoding/json"

	"github.com/cristianortiz/bidEngine/internal/auction/application"
	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/shared/logger"
	"github.com/cristianortiz/bidEngine/internal/shared/websocket"
	"github.com/cristianortiz/bidEngine/internal/user/infra/identity"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// AuctionWSHandler handles the ws inbound msgs wich are specific for auction module (remember is a bounded context)
type AuctionWSHandler struct {
	auctionService application.AuctionService // application layer dependency
	hub            *websocket.Hub             // shared hub dependency to send msgs
}

// NewAuctionWSHandler creates a new instance of AuctionWSHandler
func NewAuctionWSHandler(auctionService application.AuctionService, hub *websocket.Hub) *AuctionWSHandler {
	return &AuctionWSHandler{
		auctionService: auctionService,
		hub:            hub,
	}
}

// Register mounts the viewer endpoint, identity locals set before the upgrade reach Serve
func (h *AuctionWSHandler) Register(ctx context.Context, router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws/auctions/:id", fiberws.New(h.Serve(ctx)))
}

// Serve returns the per-connection handler for websocket.New; ctx bounds every connection
func (h *AuctionWSHandler) Serve(ctx context.Context) func(*fiberws.Conn) {
	return func(conn *fiberws.Conn) {
		auctionID, err := uuid.Parse(conn.Params("id"))
		if err != nil {
			h.writeError(conn, "invalid auction id")
			return
		}
		userID, _ := conn.Locals(identity.LocalUserID).(string)

		client := &websocket.Client{
			Hub:    h.hub,
			Conn:   conn,
			Send:   make(chan []byte, websocket.SendBuffer),
			Room:   auctionID.String(),
			ID:     uuid.NewString(),
			UserID: userID,
		}

		state, err := h.auctionService.GetAuctionState(ctx, auctionID)
		if err != nil {
			h.writeError(conn, domain.ReasonCode(err))
			return
		}
		if data, err := json.Marshal(ServerInitialStateMessage{
			BaseMessage: BaseMessage{Type: MessageTypeServerInitialState},
			Payload:     state,
		}); err == nil {
			client.Send <- data
		}

		if !h.hub.RegisterClient(client) {
			return
		}
		go client.WritePump(ctx)
		client.ReadPump(ctx)
	}
}

// ListenForMessages starts a go routine that listen the Hub inbound channel for messages and proccess every one of them
func (h *AuctionWSHandler) ListenForMessages(ctx context.Context) {
	log.Info("AuctionWSHandler started listening for inbound messages from hub")
	for {
		select {
		case <-ctx.Done():
			log.Info("AuctionWSHandler stopped listening for inbound messages from hub")
			return
		case msg := <-h.hub.InboundMessages:
			go h.processMessage(ctx, msg.Client, msg.Data)
		}
	}
}

// processMesssage dispatch the message by this type
func (h *AuctionWSHandler) processMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var baseMsg BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		h.sendErrorToClient(client, "invalid message format")
		return
	}
	switch baseMsg.Type {
	case MessageTypeClientBid:
		h.handleClientBidMessage(ctx, client, data)
	case MessageTypeClientBuyNow:
		h.handleClientBuyNowMessage(ctx, client, data)
	default:
		h.sendErrorToClient(client, "unknown message type")
	}
}

func (h *AuctionWSHandler) handleClientBidMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var bidMsg ClientBidMessage
	if err := json.Unmarshal(data, &bidMsg); err != nil {
		h.sendErrorToClient(client, "invalid bid message format")
		return
	}
	bidder, ok := h.identify(client, bidMsg.Payload.AuctionID)
	if !ok {
		return
	}

	res, err := h.auctionService.PlaceBid(ctx, application.PlaceBidDTO{
		AuctionID:      bidMsg.Payload.AuctionID,
		BidderID:       bidder,
		Amount:         bidMsg.Payload.Amount,
		IdempotencyKey: bidMsg.Payload.IdempotencyKey,
	})
	// the room learns about accepted bids through the change publisher
	h.sendResult(client, application.NewOutcome(res, err))
}

func (h *AuctionWSHandler) handleClientBuyNowMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var buyMsg ClientBuyNowMessage
	if err := json.Unmarshal(data, &buyMsg); err != nil {
		h.sendErrorToClient(client, "invalid buy-now message format")
		return
	}
	buyer, ok := h.identify(client, buyMsg.Payload.AuctionID)
	if !ok {
		return
	}

	res, err := h.auctionService.BuyNow(ctx, application.BuyNowDTO{
		AuctionID: buyMsg.Payload.AuctionID,
		BuyerID:   buyer,
	})
	h.sendResult(client, application.NewOutcome(res, err))
}

// identify checks the message targets the joined auction and the connection carries an identity
func (h *AuctionWSHandler) identify(client *websocket.Client, auctionID uuid.UUID) (uuid.UUID, bool) {
	if auctionID.String() != client.Room {
		h.sendErrorToClient(client, "auction ID mismatch")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(client.UserID)
	if err != nil {
		h.sendErrorToClient(client, "authenticated user required")
		return uuid.Nil, false
	}
	return userID, true
}

func (h *AuctionWSHandler) sendResult(client *websocket.Client, outcome application.OutcomeDTO) {
	data, err := json.Marshal(ServerBidResultMessage{
		BaseMessage: BaseMessage{Type: MessageTypeServerBidResult},
		Payload:     outcome,
	})
	if err != nil {
		log.Error("failed to marshal ServerBidResultMessage", zap.Error(err))
		return
	}
	h.hub.SendTo(client, data)
}

// sendErrorToClient serializes and sends an error msg to a specific client
func (h *AuctionWSHandler) sendErrorToClient(client *websocket.Client, errorMessage string) {
	data, err := json.Marshal(newErrorMessage(errorMessage))
	if err != nil {
		log.Error("failed to marshal ServerErrorMessage", zap.Error(err))
		return
	}
	h.hub.SendTo(client, data)
}

// writeError answers directly on a connection that never joined the hub
func (h *AuctionWSHandler) writeError(conn *fiberws.Conn, errorMessage string) {
	data, err := json.Marshal(newErrorMessage(errorMessage))
	if err != nil {
		return
	}
	_ = conn.WriteMessage(fiberws.TextMessage, data)
}

func newErrorMessage(msg string) ServerErrorMessage {
	m := ServerErrorMessage{BaseMessage: BaseMessage{Type: MessageTypeServerError}}
	m.Payload.Error = msg
	return m
}
