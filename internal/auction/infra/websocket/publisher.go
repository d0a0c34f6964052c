package websocket

import (
	"context"
	"encoding/json"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/shared/websocket"
)

// HubPublisher pushes auction changes to the viewers connected to this instance
type HubPublisher struct {
	hub *websocket.Hub
}

func NewHubPublisher(hub *websocket.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

// PublishAuctionChanged implements application.ChangePublisher
func (p *HubPublisher) PublishAuctionChanged(_ context.Context, event domain.AuctionChanged) error {
	data, err := json.Marshal(ServerAuctionUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeServerAuctionUpdate},
		Payload:     event,
	})
	if err != nil {
		return err
	}
	p.hub.Broadcast(event.AuctionID.String(), data)
	return nil
}
