package websocket

import (
	"github.com/cristianortiz/bidEngine/internal/auction/application"
	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/google/uuid"
)

// MessageType defines ws type message
type MessageType string

const (
	MessageTypeClientBid           MessageType = "client_bid"            // client msg to make a bid
	MessageTypeClientBuyNow        MessageType = "client_buy_now"        // client msg to buy at the buy-now price
	MessageTypeServerAuctionUpdate MessageType = "server_auction_update" // server msg with an auction change
	MessageTypeServerInitialState  MessageType = "server_initial_state"  // server msg with state on join
	MessageTypeServerBidResult     MessageType = "server_bid_result"     // server msg answering client_bid/client_buy_now
	MessageTypeServerError         MessageType = "server_error"          // server msg indicating error
)

// BaseMessage is base struct for all the WS messages, includes a Type field for identify the message type
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// ClientBidMessage is DTO for a bid message sent by the client, the bidder is the connection identity
type ClientBidMessage struct {
	BaseMessage
	Payload struct {
		AuctionID      uuid.UUID `json:"auction_id"`
		Amount         int64     `json:"amount"`
		IdempotencyKey string    `json:"idempotency_key"`
	} `json:"payload"`
}

type ClientBuyNowMessage struct {
	BaseMessage
	Payload struct {
		AuctionID uuid.UUID `json:"auction_id"`
	} `json:"payload"`
}

// ServerAuctionUpdateMessage is notify-only, viewers re-query state on reconnect
type ServerAuctionUpdateMessage struct {
	BaseMessage
	Payload domain.AuctionChanged `json:"payload"`
}

type ServerInitialStateMessage struct {
	BaseMessage
	Payload *application.AuctionStateDTO `json:"payload"`
}

type ServerBidResultMessage struct {
	BaseMessage
	Payload application.OutcomeDTO `json:"payload"`
}

type ServerErrorMessage struct {
	BaseMessage
	Payload struct {
		Error string `json:"error"`
	} `json:"payload"`
}
