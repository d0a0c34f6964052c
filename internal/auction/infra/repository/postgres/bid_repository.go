package postgres

import (
	"context"
	"errors"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BidRepository implements domain.BidRepository interface
type BidRepository struct {
	pool *pgxpool.Pool
}

// NewBidRepository creates new instance of BidRepository.
func NewBidRepository(pool *pgxpool.Pool) *BidRepository {
	return &BidRepository{pool: pool}
}

// insertBid appends to the ledger, only called inside AuctionRepository.Commit
func insertBid(ctx context.Context, tx pgx.Tx, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (id, auction_id, bidder_id, amount, placed_at, idempotency_key, kind)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.AuctionID,
		bid.BidderID,
		bid.Amount,
		bid.PlacedAt,
		nullableKey(bid.IdempotencyKey),
		string(bid.Kind),
	)
	return err
}

// ListByAuction returns the newest bids first
func (r *BidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID, limit int) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, placed_at, COALESCE(idempotency_key, ''), kind
        FROM bids
        WHERE auction_id = $1
        ORDER BY seq DESC
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, query, auctionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *BidRepository) GetLatestByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, placed_at, COALESCE(idempotency_key, ''), kind
        FROM bids
        WHERE auction_id = $1
        ORDER BY seq DESC
        LIMIT 1
    `
	bid, err := scanBid(r.pool.QueryRow(ctx, query, auctionID))
	if err != nil {
		//no bids yet for this auction
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return bid, nil
}

func scanBid(row pgx.Row) (*domain.Bid, error) {
	bid := &domain.Bid{}
	var kind string
	err := row.Scan(
		&bid.ID,
		&bid.AuctionID,
		&bid.BidderID,
		&bid.Amount,
		&bid.PlacedAt,
		&bid.IdempotencyKey,
		&kind,
	)
	if err != nil {
		return nil, err
	}
	bid.Kind = domain.BidKind(kind)
	bid.PlacedAt = bid.PlacedAt.UTC()
	return bid, nil
}

// buy-now entries carry no key, NULL keeps them out of the idempotency index
func nullableKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}
