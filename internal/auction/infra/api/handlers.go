package api

import (
	"crypto/subtle"
	"strconv"
	"strings"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/application"
	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/shared/logger"
	"github.com/cristianortiz/bidEngine/internal/user/infra/identity"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// IdempotencyHeader is accepted when the body carries no idempotency_key
const IdempotencyHeader = "Idempotency-Key"

// AuctionHandler exposes the auction service over REST
type AuctionHandler struct {
	auctionService application.AuctionService
	schedulerToken string
}

func NewAuctionHandler(auctionService application.AuctionService, schedulerToken string) *AuctionHandler {
	return &AuctionHandler{auctionService: auctionService, schedulerToken: schedulerToken}
}

// Register mounts the public and internal routes, router must already run identity.Middleware
func (h *AuctionHandler) Register(router fiber.Router) {
	v1 := router.Group("/api/v1")
	v1.Get("/increments", h.incrementHint)
	v1.Post("/auctions", identity.Require, h.createAuction)
	v1.Get("/auctions/:id", h.getAuctionState)
	v1.Get("/auctions/:id/bids", h.listBids)
	v1.Post("/auctions/:id/bids", identity.Require, h.placeBid)
	v1.Post("/auctions/:id/buy-now", identity.Require, h.buyNow)
	v1.Post("/auctions/:id/cancel", identity.Require, h.cancelAuction)

	internal := router.Group("/internal", h.requireScheduler)
	internal.Post("/auctions/sweep", h.sweep)
	internal.Post("/auctions/:id/cancel", h.adminCancel)
}

type createAuctionRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	StartingPrice   int64     `json:"starting_price"`
	MinBidIncrement *int64    `json:"min_bid_increment"`
	BuyNowPrice     *int64    `json:"buy_now_price"`
}

type placeBidRequest struct {
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func (h *AuctionHandler) createAuction(c *fiber.Ctx) error {
	var req createAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	seller, _ := identity.UserID(c)

	state, err := h.auctionService.CreateAuction(c.UserContext(), application.CreateAuctionDTO{
		SellerID:        seller,
		Title:           req.Title,
		Description:     req.Description,
		StartAt:         req.StartAt,
		EndAt:           req.EndAt,
		StartingPrice:   req.StartingPrice,
		MinBidIncrement: req.MinBidIncrement,
		BuyNowPrice:     req.BuyNowPrice,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(state)
}

func (h *AuctionHandler) getAuctionState(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	state, err := h.auctionService.GetAuctionState(c.UserContext(), auctionID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(state)
}

func (h *AuctionHandler) listBids(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	bids, err := h.auctionService.ListBids(c.UserContext(), application.ListBidsDTO{
		AuctionID: auctionID,
		Limit:     c.QueryInt("limit", 0),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"auction_id": auctionID, "bids": bids})
}

func (h *AuctionHandler) placeBid(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	var req placeBidRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.Get(IdempotencyHeader)
	}
	bidder, _ := identity.UserID(c)

	res, err := h.auctionService.PlaceBid(c.UserContext(), application.PlaceBidDTO{
		AuctionID:      auctionID,
		BidderID:       bidder,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
	})
	return outcome(c, res, err)
}

func (h *AuctionHandler) buyNow(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	buyer, _ := identity.UserID(c)

	res, err := h.auctionService.BuyNow(c.UserContext(), application.BuyNowDTO{
		AuctionID: auctionID,
		BuyerID:   buyer,
	})
	return outcome(c, res, err)
}

func (h *AuctionHandler) cancelAuction(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	actor, _ := identity.UserID(c)
	return h.cancel(c, application.CancelAuctionDTO{AuctionID: auctionID, ActorID: actor})
}

func (h *AuctionHandler) adminCancel(c *fiber.Ctx) error {
	auctionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid auction id")
	}
	return h.cancel(c, application.CancelAuctionDTO{AuctionID: auctionID, Admin: true})
}

func (h *AuctionHandler) cancel(c *fiber.Ctx, cmd application.CancelAuctionDTO) error {
	state, err := h.auctionService.CancelAuction(c.UserContext(), cmd)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(state)
}

func (h *AuctionHandler) sweep(c *fiber.Ctx) error {
	res, err := h.auctionService.Sweep(c.UserContext())
	if err != nil {
		log.Error("sweep failed", zap.Error(err))
		return fail(c, err)
	}
	return c.JSON(res)
}

func (h *AuctionHandler) incrementHint(c *fiber.Ctx) error {
	price, err := strconv.ParseInt(c.Query("price"), 10, 64)
	if err != nil || price < 0 {
		return badRequest(c, "price must be a non-negative integer in minor units")
	}
	return c.JSON(h.auctionService.IncrementHint(price))
}

// requireScheduler checks the bearer credential of the internal routes, an empty token disables them
func (h *AuctionHandler) requireScheduler(c *fiber.Ctx) error {
	token, found := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if h.schedulerToken == "" || !found ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.schedulerToken)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: "invalid scheduler credential"})
	}
	return c.Next()
}

// outcome answers bid and buy-now calls, rejections keep the state the client needs to recover
func outcome(c *fiber.Ctx, res *domain.BidResult, err error) error {
	out := application.NewOutcome(res, err)
	if err != nil {
		if out.Reason == domain.ReasonUnavailable {
			log.Warn("bid submission unavailable", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(StatusCode(out.Reason)).JSON(out)
	}
	return c.JSON(out)
}

func fail(c *fiber.Ctx, err error) error {
	reason := domain.ReasonCode(err)
	return c.Status(StatusCode(reason)).JSON(errorResponse{Error: err.Error(), Reason: reason})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: msg, Reason: domain.ReasonInvalidInput})
}

// StatusCode maps a reason code to its HTTP status
func StatusCode(reason string) int {
	switch reason {
	case domain.ReasonNotFound:
		return fiber.StatusNotFound
	case domain.ReasonForbidden:
		return fiber.StatusForbidden
	case domain.ReasonInvalidState, domain.ReasonAuctionEnded, domain.ReasonAlreadySold, domain.ReasonDuplicateRequest:
		return fiber.StatusConflict
	case domain.ReasonBidTooLow:
		return fiber.StatusUnprocessableEntity
	case domain.ReasonInvalidInput:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusServiceUnavailable
	}
}
