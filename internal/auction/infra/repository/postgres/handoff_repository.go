package postgres

import (
	"context"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// HandoffRepository reads and acknowledges the order_handoffs outbox
type HandoffRepository struct {
	pool *pgxpool.Pool
}

func NewHandoffRepository(pool *pgxpool.Pool) *HandoffRepository {
	return &HandoffRepository{pool: pool}
}

func (r *HandoffRepository) ListPendingHandoffs(ctx context.Context, limit int) ([]*domain.OrderHandoff, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT auction_id, seller_id, winner_id, amount, sold_via_buy_now, ended_at
        FROM order_handoffs
        WHERE published_at IS NULL
        ORDER BY ended_at
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []*domain.OrderHandoff
	for rows.Next() {
		h := &domain.OrderHandoff{}
		if err := rows.Scan(&h.AuctionID, &h.SellerID, &h.WinnerID, &h.Amount, &h.SoldViaBuyNow, &h.EndedAt); err != nil {
			return nil, err
		}
		h.EndedAt = h.EndedAt.UTC()
		pending = append(pending, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pending, nil
}

func (r *HandoffRepository) MarkHandoffPublished(ctx context.Context, auctionID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
        UPDATE order_handoffs SET published_at = $2
        WHERE auction_id = $1 AND published_at IS NULL
    `, auctionID, at)
	return err
}
