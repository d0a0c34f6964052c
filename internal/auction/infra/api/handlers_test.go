package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cristianortiz/bidEngine/internal/auction/application"
	"github.com/cristianortiz/bidEngine/internal/auction/application/apptest"
	"github.com/cristianortiz/bidEngine/internal/auction/domain"
	"github.com/cristianortiz/bidEngine/internal/user/infra/identity"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const token = "s3cret"

func newApp(svc application.AuctionService) *fiber.App {
	app := fiber.New()
	app.Use(identity.Middleware(nil))
	NewAuctionHandler(svc, token).Register(app)
	return app
}

type call struct {
	method string
	path   string
	body   string
	header map[string]string
}

func (c call) do(t *testing.T, app *fiber.App) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestStatusCode(t *testing.T) {
	tests := map[string]int{
		domain.ReasonNotFound:         http.StatusNotFound,
		domain.ReasonForbidden:        http.StatusForbidden,
		domain.ReasonInvalidState:     http.StatusConflict,
		domain.ReasonAuctionEnded:     http.StatusConflict,
		domain.ReasonAlreadySold:      http.StatusConflict,
		domain.ReasonDuplicateRequest: http.StatusConflict,
		domain.ReasonBidTooLow:        http.StatusUnprocessableEntity,
		domain.ReasonInvalidInput:     http.StatusBadRequest,
		domain.ReasonUnavailable:      http.StatusServiceUnavailable,
	}
	for reason, want := range tests {
		assert.Equal(t, want, StatusCode(reason), reason)
	}
}

func TestPlaceBid(t *testing.T) {
	auctionID := uuid.New()
	bidder := uuid.New()
	path := fmt.Sprintf("/api/v1/auctions/%s/bids", auctionID)

	t.Run("accepted", func(t *testing.T) {
		svc := new(apptest.MockAuctionService)
		svc.On("PlaceBid", mock.Anything, application.PlaceBidDTO{
			AuctionID: auctionID, BidderID: bidder, Amount: 105_000, IdempotencyKey: "k1",
		}).Return(&domain.BidResult{Accepted: true, BidID: uuid.New(), NewCurrentBid: 105_000, MinNextBid: 110_000, Status: domain.StatusActive}, nil).Once()

		resp, body := call{
			method: fiber.MethodPost,
			path:   path,
			body:   `{"amount":105000,"idempotency_key":"k1"}`,
			header: map[string]string{identity.Header: bidder.String()},
		}.do(t, newApp(svc))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var out application.OutcomeDTO
		require.NoError(t, json.Unmarshal(body, &out))
		assert.True(t, out.Accepted)
		assert.Equal(t, int64(105_000), *out.NewCurrentBid)
		svc.AssertExpectations(t)
	})

	t.Run("idempotency key from header", func(t *testing.T) {
		svc := new(apptest.MockAuctionService)
		svc.On("PlaceBid", mock.Anything, mock.MatchedBy(func(cmd application.PlaceBidDTO) bool {
			return cmd.IdempotencyKey == "from-header"
		})).Return(&domain.BidResult{Accepted: true}, nil).Once()

		resp, _ := call{
			method: fiber.MethodPost,
			path:   path,
			body:   `{"amount":105000}`,
			header: map[string]string{identity.Header: bidder.String(), IdempotencyHeader: "from-header"},
		}.do(t, newApp(svc))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		svc.AssertExpectations(t)
	})

	t.Run("too low keeps recovery state", func(t *testing.T) {
		current := int64(115_000)
		endAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		svc := new(apptest.MockAuctionService)
		svc.On("PlaceBid", mock.Anything, mock.Anything).Return(nil, &domain.Rejection{
			Err: domain.ErrBidTooLow, CurrentBid: &current, MinNextBid: 120_000, EndAt: endAt, Status: domain.StatusActive,
		}).Once()

		resp, body := call{
			method: fiber.MethodPost,
			path:   path,
			body:   `{"amount":110000,"idempotency_key":"k2"}`,
			header: map[string]string{identity.Header: bidder.String()},
		}.do(t, newApp(svc))

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		var out application.OutcomeDTO
		require.NoError(t, json.Unmarshal(body, &out))
		assert.False(t, out.Accepted)
		assert.Equal(t, domain.ReasonBidTooLow, out.Reason)
		assert.Equal(t, int64(115_000), *out.CurrentBid)
		assert.Equal(t, int64(120_000), out.MinNextBid)
		assert.True(t, endAt.Equal(*out.EndAt))
	})

	t.Run("unavailable", func(t *testing.T) {
		svc := new(apptest.MockAuctionService)
		svc.On("PlaceBid", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("place bid: %w: %w", domain.ErrUnavailable, errors.New("conn refused"))).Once()

		resp, _ := call{
			method: fiber.MethodPost,
			path:   path,
			body:   `{"amount":110000,"idempotency_key":"k3"}`,
			header: map[string]string{identity.Header: bidder.String()},
		}.do(t, newApp(svc))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("anonymous", func(t *testing.T) {
		svc := new(apptest.MockAuctionService)
		resp, _ := call{method: fiber.MethodPost, path: path, body: `{"amount":1,"idempotency_key":"k"}`}.do(t, newApp(svc))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		svc.AssertNotCalled(t, "PlaceBid", mock.Anything, mock.Anything)
	})

	t.Run("malformed id", func(t *testing.T) {
		svc := new(apptest.MockAuctionService)
		resp, _ := call{
			method: fiber.MethodPost,
			path:   "/api/v1/auctions/nope/bids",
			body:   `{"amount":1,"idempotency_key":"k"}`,
			header: map[string]string{identity.Header: bidder.String()},
		}.do(t, newApp(svc))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestBuyNow_AlreadySold(t *testing.T) {
	auctionID := uuid.New()
	svc := new(apptest.MockAuctionService)
	svc.On("BuyNow", mock.Anything, mock.Anything).
		Return(nil, &domain.Rejection{Err: domain.ErrAlreadySold, Status: domain.StatusEnded}).Once()

	resp, body := call{
		method: fiber.MethodPost,
		path:   fmt.Sprintf("/api/v1/auctions/%s/buy-now", auctionID),
		header: map[string]string{identity.Header: uuid.NewString()},
	}.do(t, newApp(svc))

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var out application.OutcomeDTO
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, domain.ReasonAlreadySold, out.Reason)
	assert.Equal(t, domain.StatusEnded, out.Status)
}

func TestGetAuctionState(t *testing.T) {
	auctionID := uuid.New()
	svc := new(apptest.MockAuctionService)
	svc.On("GetAuctionState", mock.Anything, auctionID).
		Return(&application.AuctionStateDTO{AuctionID: auctionID, Status: domain.StatusActive, MinNextBid: 100_000}, nil).Once()
	svc.On("GetAuctionState", mock.Anything, mock.Anything).Return(nil, domain.ErrAuctionNotFound).Once()

	app := newApp(svc)
	resp, body := call{method: fiber.MethodGet, path: "/api/v1/auctions/" + auctionID.String()}.do(t, app)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var state application.AuctionStateDTO
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, int64(100_000), state.MinNextBid)

	resp, body = call{method: fiber.MethodGet, path: "/api/v1/auctions/" + uuid.NewString()}.do(t, app)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"auction not found","reason":"NotFound"}`, string(body))
}

func TestListBids_PassesLimit(t *testing.T) {
	auctionID := uuid.New()
	svc := new(apptest.MockAuctionService)
	svc.On("ListBids", mock.Anything, application.ListBidsDTO{AuctionID: auctionID, Limit: 10}).
		Return([]application.BidDTO{{BidID: uuid.New(), Amount: 105_000}}, nil).Once()

	resp, body := call{method: fiber.MethodGet, path: fmt.Sprintf("/api/v1/auctions/%s/bids?limit=10", auctionID)}.do(t, newApp(svc))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Bids []application.BidDTO `json:"bids"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Len(t, out.Bids, 1)
	svc.AssertExpectations(t)
}

func TestCreateAuction(t *testing.T) {
	seller := uuid.New()
	svc := new(apptest.MockAuctionService)
	svc.On("CreateAuction", mock.Anything, mock.MatchedBy(func(cmd application.CreateAuctionDTO) bool {
		return cmd.SellerID == seller && cmd.StartingPrice == 100_000 && *cmd.BuyNowPrice == 300_000
	})).Return(&application.AuctionStateDTO{SellerID: seller, Status: domain.StatusScheduled}, nil).Once()

	resp, _ := call{
		method: fiber.MethodPost,
		path:   "/api/v1/auctions",
		body:   `{"title":"Bike","start_at":"2026-03-01T10:00:00Z","end_at":"2026-03-01T12:00:00Z","starting_price":100000,"buy_now_price":300000}`,
		header: map[string]string{identity.Header: seller.String()},
	}.do(t, newApp(svc))

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	svc.AssertExpectations(t)
}

func TestInternalRoutes_RequireSchedulerToken(t *testing.T) {
	svc := new(apptest.MockAuctionService)
	svc.On("Sweep", mock.Anything).Return(&application.SweepResult{Promoted: 2, Closed: 1, Handoffs: 1}, nil).Once()
	auctionID := uuid.New()
	svc.On("CancelAuction", mock.Anything, application.CancelAuctionDTO{AuctionID: auctionID, Admin: true}).
		Return(&application.AuctionStateDTO{AuctionID: auctionID, Status: domain.StatusCancelled}, nil).Once()
	app := newApp(svc)

	resp, _ := call{method: fiber.MethodPost, path: "/internal/auctions/sweep"}.do(t, app)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = call{
		method: fiber.MethodPost,
		path:   "/internal/auctions/sweep",
		header: map[string]string{fiber.HeaderAuthorization: "Bearer wrong"},
	}.do(t, app)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := call{
		method: fiber.MethodPost,
		path:   "/internal/auctions/sweep",
		header: map[string]string{fiber.HeaderAuthorization: "Bearer " + token},
	}.do(t, app)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"promoted":2,"closed":1,"handoffs":1}`, string(body))

	resp, _ = call{
		method: fiber.MethodPost,
		path:   "/internal/auctions/" + auctionID.String() + "/cancel",
		header: map[string]string{fiber.HeaderAuthorization: "Bearer " + token},
	}.do(t, app)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	svc.AssertExpectations(t)
}

func TestIncrementHint(t *testing.T) {
	svc := new(apptest.MockAuctionService)
	svc.On("IncrementHint", int64(100_000)).
		Return(application.IncrementHintDTO{Price: 100_000, MinIncrement: 5_000, MinNextBid: 105_000}).Once()
	app := newApp(svc)

	resp, body := call{method: fiber.MethodGet, path: "/api/v1/increments?price=100000"}.do(t, app)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"price":100000,"min_increment":5000,"min_next_bid":105000}`, string(body))

	resp, _ = call{method: fiber.MethodGet, path: "/api/v1/increments?price=-1"}.do(t, app)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
