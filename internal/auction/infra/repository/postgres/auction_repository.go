package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const auctionColumns = `id, seller_id, title, description, status, start_at, end_at, starting_price,
        current_bid, leading_bidder_id, min_bid_increment, buy_now_price, winner_id, sold_via_buy_now,
        bid_count, version, ended_at, created_at, updated_at`

// AuctionRepository implements domain.AuctionRepository interface
type AuctionRepository struct {
	pool *pgxpool.Pool
}

// NewAuctionRepository creates a new instance of AuctionRepository
func NewAuctionRepository(pool *pgxpool.Pool) *AuctionRepository {
	return &AuctionRepository{pool: pool}
}

func (r *AuctionRepository) Create(ctx context.Context, a *domain.Auction) error {
	query := `
        INSERT INTO auctions (` + auctionColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
    `
	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.SellerID,
		a.Title,
		a.Description,
		string(a.Status),
		a.StartAt,
		a.EndAt,
		a.StartingPrice,
		a.CurrentBid,
		a.LeadingBidderID,
		a.MinBidIncrement,
		a.BuyNowPrice,
		a.WinnerID,
		a.SoldViaBuyNow,
		a.BidCount,
		a.Version,
		a.EndedAt,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return err
}

func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := scanAuction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}
	return a, nil
}

// Commit writes the record with a compare-and-swap on version, plus ledger entry, receipt and
// outbox row, in one transaction
func (r *AuctionRepository) Commit(ctx context.Context, c domain.Commit) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("auction repository: failed to begin transaction: %w", err)
	}

	//config defer() to handles commit/rollback
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			if isUniqueViolation(err) {
				err = domain.ErrVersionConflict
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error("AuctionRepository: Failed to commit transaction",
				zap.String("auctionID", c.Auction.ID.String()),
				zap.Error(commitErr),
			)
			err = fmt.Errorf("auction repository: failed to commit transaction: %w", commitErr)
			if isUniqueViolation(commitErr) {
				err = domain.ErrVersionConflict
			}
		}
	}()

	a := c.Auction
	tag, err := tx.Exec(ctx, `
        UPDATE auctions
        SET status = $3, end_at = $4, current_bid = $5, leading_bidder_id = $6, winner_id = $7,
            sold_via_buy_now = $8, bid_count = $9, version = $10, ended_at = $11, updated_at = $12
        WHERE id = $1 AND version = $2
    `,
		a.ID,
		c.ExpectedVersion,
		string(a.Status),
		a.EndAt,
		a.CurrentBid,
		a.LeadingBidderID,
		a.WinnerID,
		a.SoldViaBuyNow,
		a.BidCount,
		a.Version,
		a.EndedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrVersionConflict
		return err
	}

	if c.Bid != nil {
		if err = insertBid(ctx, tx, c.Bid); err != nil {
			return err
		}
	}
	if c.Receipt != nil {
		_, err = tx.Exec(ctx, `
            INSERT INTO bid_receipts (auction_id, bidder_id, idempotency_key, result, created_at)
            VALUES ($1, $2, $3, $4, $5)
        `, c.Receipt.AuctionID, c.Receipt.BidderID, c.Receipt.IdempotencyKey, c.Receipt.Result, c.Receipt.CreatedAt)
		if err != nil {
			return err
		}
	}
	if c.Handoff != nil {
		h := c.Handoff
		_, err = tx.Exec(ctx, `
            INSERT INTO order_handoffs (auction_id, seller_id, winner_id, amount, sold_via_buy_now, ended_at)
            VALUES ($1, $2, $3, $4, $5, $6)
            ON CONFLICT (auction_id) DO NOTHING
        `, h.AuctionID, h.SellerID, h.WinnerID, h.Amount, h.SoldViaBuyNow, h.EndedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// PromoteScheduled is a single idempotent UPDATE, a row already active no longer matches
func (r *AuctionRepository) PromoteScheduled(ctx context.Context, cutoff, now time.Time) ([]*domain.Auction, error) {
	query := `
        UPDATE auctions
        SET status = 'active', version = version + 1, updated_at = $2
        WHERE status = 'scheduled' AND start_at <= $1
        RETURNING ` + auctionColumns
	rows, err := r.pool.Query(ctx, query, cutoff, now)
	if err != nil {
		return nil, err
	}
	return collectAuctions(rows)
}

func (r *AuctionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	query := `
        SELECT ` + auctionColumns + `
        FROM auctions
        WHERE status = 'active' AND end_at <= $1
        ORDER BY end_at
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	return collectAuctions(rows)
}

func (r *AuctionRepository) FindReceipt(ctx context.Context, auctionID, bidderID uuid.UUID, key string) (*domain.BidReceipt, error) {
	receipt := &domain.BidReceipt{AuctionID: auctionID, BidderID: bidderID, IdempotencyKey: key}
	err := r.pool.QueryRow(ctx, `
        SELECT result, created_at
        FROM bid_receipts
        WHERE auction_id = $1 AND bidder_id = $2 AND idempotency_key = $3
    `, auctionID, bidderID, key).Scan(&receipt.Result, &receipt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return receipt, nil
}

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	a := &domain.Auction{}
	var status string
	err := row.Scan(
		&a.ID,
		&a.SellerID,
		&a.Title,
		&a.Description,
		&status,
		&a.StartAt,
		&a.EndAt,
		&a.StartingPrice,
		&a.CurrentBid,
		&a.LeadingBidderID,
		&a.MinBidIncrement,
		&a.BuyNowPrice,
		&a.WinnerID,
		&a.SoldViaBuyNow,
		&a.BidCount,
		&a.Version,
		&a.EndedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = domain.Status(status)
	a.StartAt = a.StartAt.UTC()
	a.EndAt = a.EndAt.UTC()
	return a, nil
}

func collectAuctions(rows pgx.Rows) ([]*domain.Auction, error) {
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return auctions, nil
}

// isUniqueViolation reports a 23505, a duplicate receipt or buy-now lost to a concurrent commit
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
