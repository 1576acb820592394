package ledger

import (
	"errors"
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/bidmaster/auction-api/internal/gateway"
	"github.com/bidmaster/auction-api/internal/types"
	"github.com/bidmaster/auction-api/pkg/response"
)

// Store is the persistence collaborator the ledger settles against.
type Store interface {
	Fetch() (*types.Snapshot, error)
	Commit(*types.Snapshot) error
}

// Service runs the fetch -> settle -> commit cycle around the pure
// settlement function and serves the read views the shell polls.
type Service struct {
	store Store
	rules Rules
}

// NewService creates a ledger service with the given settlement rules.
func NewService(store Store, rules Rules) *Service {
	return &Service{store: store, rules: rules}
}

// PlaceBid settles one bid against the latest snapshot and commits the
// result. A failed commit discards the optimistic settlement: the snapshot
// in storage is untouched and the caller retries against a fresh fetch.
func (s *Service) PlaceBid(bidderID, itemID string, amount int64) (*SettleResult, error) {
	logger := log.With().
		Str("bidder_id", bidderID).
		Str("item_id", itemID).
		Int64("amount", amount).
		Str("service", "ledger").
		Logger()

	snap, err := s.store.Fetch()
	if err != nil {
		logger.Error().Err(err).Msg("failed to fetch snapshot")
		return nil, err
	}

	result, err := Settle(snap, BidRequest{BidderID: bidderID, ItemID: itemID, Amount: amount}, s.rules, time.Now().UTC())
	if err != nil {
		logger.Info().Err(err).Msg("bid rejected")
		return nil, err
	}

	// The settlement emits its audit entries for the caller; commit them
	// together with the snapshot so both land atomically.
	result.Snapshot.Logs = append(append([]types.LogRecord{}, result.Logs...), result.Snapshot.Logs...)

	if err := s.store.Commit(result.Snapshot); err != nil {
		logger.Error().Err(err).Msg("failed to commit settled snapshot")
		return nil, err
	}

	logger.Info().
		Str("bid_id", result.Bid.BidID).
		Bool("is_tie", result.IsTie).
		Str("refunded_user_id", result.RefundedUserID).
		Msg("bid settled")
	return result, nil
}

// GetState returns the full snapshot for the shell's poll loop.
func (s *Service) GetState() (*types.Snapshot, error) {
	return s.store.Fetch()
}

// GetItems returns all items.
func (s *Service) GetItems() ([]types.BiddingItem, error) {
	snap, err := s.store.Fetch()
	if err != nil {
		return nil, err
	}
	return snap.Items, nil
}

// GetItem returns one item by its public id.
func (s *Service) GetItem(itemID string) (*types.BiddingItem, error) {
	snap, err := s.store.Fetch()
	if err != nil {
		return nil, err
	}
	item := snap.FindItem(itemID)
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// GetBidsForItem returns the item's bid history, newest first.
func (s *Service) GetBidsForItem(itemID string) ([]types.BidRecord, error) {
	snap, err := s.store.Fetch()
	if err != nil {
		return nil, err
	}
	if snap.FindItem(itemID) == nil {
		return nil, ErrItemNotFound
	}
	bids := make([]types.BidRecord, 0, len(snap.Bids))
	for _, b := range snap.Bids {
		if b.ItemID == itemID {
			bids = append(bids, b)
		}
	}
	return bids, nil
}

// GetUser returns the freshest copy of a user, never the token-cached one,
// so callers always see the current wallet balance and role.
func (s *Service) GetUser(userID string) (*types.User, error) {
	snap, err := s.store.Fetch()
	if err != nil {
		return nil, err
	}
	user := snap.FindUser(userID)
	if user == nil {
		return nil, ErrSessionInvalid
	}
	return user, nil
}

// PlaceBidRequest is the bid submission payload. Fractional amounts are
// floored to whole currency units before settlement.
type PlaceBidRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// PlaceBidResponse reports the settled bid back to the bidder, including
// their refreshed wallet balance so the shell can update its cached view.
type PlaceBidResponse struct {
	Bid            types.BidRecord `json:"bid"`
	IsTie          bool            `json:"is_tie"`
	WalletBalance  int64           `json:"wallet_balance"`
	RefundedUserID string          `json:"refunded_user_id,omitempty"`
	RefundedAmount int64           `json:"refunded_amount,omitempty"`
}

// GinHandlers contains HTTP handlers for bidding endpoints.
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for bidding endpoints.
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// PlaceBidHandler handles POST requests to place a bid on an item.
// The acting bidder comes from the authenticated session, never the body.
func (h *GinHandlers) PlaceBidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bidderID := c.GetString("userID")
		if bidderID == "" {
			response.Unauthorized(c, "Missing authenticated user")
			return
		}

		var req PlaceBidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		itemID := c.Param("item_id")
		result, err := h.service.PlaceBid(bidderID, itemID, int64(math.Floor(req.Amount)))
		if err != nil {
			respondBidError(c, err)
			return
		}

		balance := int64(0)
		if me := result.Snapshot.FindUser(bidderID); me != nil {
			balance = me.WalletBalance
		}
		response.Success(c, PlaceBidResponse{
			Bid:            result.Bid,
			IsTie:          result.IsTie,
			WalletBalance:  balance,
			RefundedUserID: result.RefundedUserID,
			RefundedAmount: result.RefundedAmount,
		})
	}
}

// GetStateHandler handles GET requests for the full snapshot poll.
func (h *GinHandlers) GetStateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := h.service.GetState()
		response.Handle(c, snap, err)
	}
}

// GetItemsHandler handles GET requests for all items.
func (h *GinHandlers) GetItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := h.service.GetItems()
		response.Handle(c, items, err)
	}
}

// GetItemHandler handles GET requests for a single item.
func (h *GinHandlers) GetItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := h.service.GetItem(c.Param("item_id"))
		if errors.Is(err, ErrItemNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.Handle(c, item, err)
	}
}

// GetItemBidsHandler handles GET requests for an item's bid history.
func (h *GinHandlers) GetItemBidsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bids, err := h.service.GetBidsForItem(c.Param("item_id"))
		if errors.Is(err, ErrItemNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		response.Handle(c, bids, err)
	}
}

// GetMeHandler handles GET requests for the acting user's fresh record.
func (h *GinHandlers) GetMeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.service.GetUser(c.GetString("userID"))
		if errors.Is(err, ErrSessionInvalid) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, user, err)
	}
}

// respondBidError maps the settlement error taxonomy onto HTTP responses.
func respondBidError(c *gin.Context, err error) {
	var cooldown *CooldownError
	switch {
	case errors.Is(err, ErrSessionInvalid):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, ErrItemNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrMarketClosed),
		errors.Is(err, ErrBidTooLow),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, gateway.ErrConflict):
		response.Conflict(c, err.Error())
	case errors.As(err, &cooldown):
		response.TooManyRequests(c, err.Error(), cooldown.Remaining)
	default:
		response.InternalError(c, "bid could not be processed")
	}
}
