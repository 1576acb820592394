package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/bidmaster/auction-api/internal/types"
)

// Rules are the settlement constants: how long a bidder must wait between
// bids on the same item, and how far every accepted bid pushes the end time.
type Rules struct {
	Cooldown  time.Duration
	Extension time.Duration
}

// BidRequest is one bid intent against a snapshot.
type BidRequest struct {
	BidderID string
	ItemID   string
	Amount   int64
}

// SettleResult carries the settled snapshot plus everything the caller needs
// to commit and report: the bid record already applied to the snapshot, the
// audit entries to append, and the refund that was issued, if any.
type SettleResult struct {
	Snapshot       *types.Snapshot
	Bid            types.BidRecord
	Logs           []types.LogRecord
	IsTie          bool
	RefundedUserID string
	RefundedAmount int64
}

// Settle validates and applies one bid against a snapshot. It is a pure
// function of (snapshot, request, rules, now): the input snapshot is never
// mutated, and the caller is responsible for committing the result.
//
// Preconditions are checked in a fixed order and the first failure wins:
// resolvable bidder, resolvable item, item biddable (OPEN and end time in the
// future), amount at or above the current highest (a matching amount is a
// valid tie, not a rejection), wallet coverage, and the per-item cooldown.
//
// The wallet check is against the bidder's full balance: a bidder raising
// their own standing bid pays the new full amount with no credit for the old
// one, because the refund branch excludes the same-bidder case.
func Settle(snap *types.Snapshot, req BidRequest, rules Rules, now time.Time) (*SettleResult, error) {
	work := snap.Clone()

	bidder := work.FindUser(req.BidderID)
	if bidder == nil {
		return nil, ErrSessionInvalid
	}

	item := work.FindItem(req.ItemID)
	if item == nil {
		return nil, ErrItemNotFound
	}

	if item.Status != types.StatusOpen || !item.EndTime.After(now) {
		return nil, ErrMarketClosed
	}

	if req.Amount < item.HighestBidAmount {
		return nil, ErrBidTooLow
	}

	if bidder.WalletBalance < req.Amount {
		return nil, ErrInsufficientFunds
	}

	if remaining := cooldownRemaining(work.Bids, req.ItemID, req.BidderID, rules.Cooldown, now); remaining > 0 {
		return nil, &CooldownError{Remaining: remaining}
	}

	hadBidder := item.HighestBidUserID != ""
	previousBidderID := item.HighestBidUserID
	previousAmount := item.HighestBidAmount
	isTie := req.Amount == item.HighestBidAmount && hadBidder

	item.HighestBidAmount = req.Amount
	item.HighestBidUserID = bidder.UserID
	item.HighestBidUserName = bidder.Name
	item.IsTie = isTie
	// Anti-snipe extension on every accepted bid, however much time remained.
	item.EndTime = item.EndTime.Add(rules.Extension)

	bidder.WalletBalance -= req.Amount

	result := &SettleResult{Snapshot: work, IsTie: isTie}

	if hadBidder && previousBidderID != bidder.UserID && req.Amount > previousAmount {
		if previous := work.FindUser(previousBidderID); previous != nil {
			previous.WalletBalance += previousAmount
			result.RefundedUserID = previous.UserID
			result.RefundedAmount = previousAmount
			result.Logs = append(result.Logs, types.LogRecord{
				LogID:       uuid.New().String(),
				UserID:      previous.UserID,
				UserName:    previous.Name,
				Action:      types.ActionRefund,
				Description: fmt.Sprintf("Refunded $%d after being outbid on %s.", previousAmount, item.Name),
				Timestamp:   now,
			})
		}
	}

	bid := types.BidRecord{
		BidID:     uuid.New().String(),
		ItemID:    item.ItemID,
		UserID:    bidder.UserID,
		UserName:  bidder.Name,
		Amount:    req.Amount,
		Timestamp: now,
		Kind:      types.BidPlace,
	}
	work.Bids = append([]types.BidRecord{bid}, work.Bids...)
	result.Bid = bid

	action := types.ActionPlaceBid
	verb := "Authorized"
	if isTie {
		action = types.ActionMatchBid
		verb = "Matched"
	}
	result.Logs = append([]types.LogRecord{{
		LogID:       uuid.New().String(),
		UserID:      bidder.UserID,
		UserName:    bidder.Name,
		Action:      action,
		Description: fmt.Sprintf("%s $%d offer on %s.", verb, req.Amount, item.Name),
		Timestamp:   now,
	}}, result.Logs...)

	return result, nil
}

// cooldownRemaining scans the newest-first bid history for the bidder's most
// recent bid on the item and returns the whole seconds left in the window,
// or 0 when the bidder is clear to bid.
func cooldownRemaining(bids []types.BidRecord, itemID, bidderID string, cooldown time.Duration, now time.Time) int {
	if cooldown <= 0 {
		return 0
	}
	for _, b := range bids {
		if b.ItemID != itemID || b.UserID != bidderID {
			continue
		}
		elapsed := now.Sub(b.Timestamp)
		if elapsed < cooldown {
			return int(math.Ceil((cooldown - elapsed).Seconds()))
		}
		return 0
	}
	return 0
}
