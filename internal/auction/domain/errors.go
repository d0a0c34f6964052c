package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrForbidden        = errors.New("caller is not allowed to perform this operation")
	ErrInvalidState     = errors.New("auction is not accepting this operation in its current state")
	ErrBidTooLow        = errors.New("bid amount is too low")
	ErrAlreadySold      = errors.New("auction was already sold through buy-now")
	ErrAuctionEnded     = errors.New("auction has ended")
	ErrDuplicateRequest = errors.New("request was already processed")
	ErrUnavailable      = errors.New("auction store unavailable, safe to retry")

	ErrInvalidAmount         = errors.New("bid amount must be positive and within the accepted range")
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
	ErrInvalidSchedule       = errors.New("auction schedule or prices are invalid")

	ErrSellerBid = fmt.Errorf("%w: seller cannot bid on own auction", ErrForbidden)

	// ErrVersionConflict never leaves the application layer, the loser re-validates
	ErrVersionConflict = errors.New("auction version changed concurrently")
)

// Reason codes exposed to clients
const (
	ReasonNotFound         = "NotFound"
	ReasonForbidden        = "Forbidden"
	ReasonInvalidState     = "InvalidState"
	ReasonBidTooLow        = "BidTooLow"
	ReasonAlreadySold      = "AlreadySold"
	ReasonAuctionEnded     = "AuctionEnded"
	ReasonDuplicateRequest = "DuplicateRequest"
	ReasonUnavailable      = "Unavailable"
	ReasonInvalidInput     = "InvalidInput"
)

// Rejection is a business rejection carrying the auction state the caller needs to recover
// (new price to outbid, deadline, status)
type Rejection struct {
	Err        error
	CurrentBid *int64
	MinNextBid int64
	EndAt      time.Time
	Status     Status
}

func (r *Rejection) Error() string {
	if r.CurrentBid != nil {
		return fmt.Sprintf("%s (current bid %d, minimum next bid %d)", r.Err, *r.CurrentBid, r.MinNextBid)
	}
	return r.Err.Error()
}

func (r *Rejection) Unwrap() error { return r.Err }

func reject(err error, a *Auction, minNext int64) *Rejection {
	return &Rejection{
		Err:        err,
		CurrentBid: copyInt64(a.CurrentBid),
		MinNextBid: minNext,
		EndAt:      a.EndAt,
		Status:     a.Status,
	}
}

// ReasonCode maps an error to its stable client-facing reason
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuctionNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrForbidden):
		return ReasonForbidden
	case errors.Is(err, ErrAlreadySold):
		return ReasonAlreadySold
	case errors.Is(err, ErrAuctionEnded):
		return ReasonAuctionEnded
	case errors.Is(err, ErrBidTooLow):
		return ReasonBidTooLow
	case errors.Is(err, ErrInvalidState):
		return ReasonInvalidState
	case errors.Is(err, ErrDuplicateRequest):
		return ReasonDuplicateRequest
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrMissingIdempotencyKey), errors.Is(err, ErrInvalidSchedule):
		return ReasonInvalidInput
	default:
		return ReasonUnavailable
	}
}

// Reject builds a rejection of err against the current state of a
func (a *Auction) Reject(err error, policy IncrementPolicy) *Rejection {
	return reject(err, a, a.MinNextBid(policy))
}
