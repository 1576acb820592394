package types

import (
	"time"

	"gorm.io/gorm"
)

// Role identifies what a user is allowed to do.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleBidder Role = "BIDDER"
)

// ItemStatus is the lifecycle state of an auction item.
type ItemStatus string

const (
	StatusPending ItemStatus = "PENDING"
	StatusOpen    ItemStatus = "OPEN"
	StatusClosed  ItemStatus = "CLOSED"
)

// BidKind tags a bid history record. Only PLACE is written by the current
// settlement flow; OUTBID and REFUND are reserved.
type BidKind string

const (
	BidPlace  BidKind = "PLACE"
	BidOutbid BidKind = "OUTBID"
	BidRefund BidKind = "REFUND"
)

// LogAction is the closed set of audit log actions. Consumers match on the
// action tag, never on description wording.
type LogAction string

const (
	ActionLogin          LogAction = "LOGIN"
	ActionLogout         LogAction = "LOGOUT"
	ActionPlaceBid       LogAction = "PLACE_BID"
	ActionMatchBid       LogAction = "MATCH_BID"
	ActionRefund         LogAction = "REFUND"
	ActionItemCreated    LogAction = "ITEM_CREATED"
	ActionItemUpdated    LogAction = "ITEM_UPDATED"
	ActionItemDeleted    LogAction = "ITEM_DELETED"
	ActionBiddingStarted LogAction = "BIDDING_STARTED"
	ActionItemClosed     LogAction = "ITEM_CLOSED"
	ActionWinnerAwarded  LogAction = "WINNER_AWARDED"
)

// User is a registered participant. WalletBalance is held in whole currency
// units; all settlement arithmetic is exact integer math.
type User struct {
	gorm.Model    `json:"-"`
	UserID        string `gorm:"uniqueIndex" json:"user_id"`
	Name          string `json:"name"`
	Role          Role   `json:"role"`
	WalletBalance int64  `json:"wallet_balance"`
	Secret        string `json:"-"`
	PowerScore    int    `json:"power_score"`
}

// BiddingItem is an auction lot. HighestBidAmount starts at the starting
// price and never decreases while the item is OPEN.
type BiddingItem struct {
	gorm.Model         `json:"-"`
	ItemID             string     `gorm:"uniqueIndex" json:"item_id"`
	Name               string     `json:"name"`
	ImageURL           string     `json:"image_url"`
	StartingPrice      int64      `json:"starting_price"`
	HighestBidAmount   int64      `json:"highest_bid_amount"`
	HighestBidUserID   string     `json:"highest_bid_user_id"`
	HighestBidUserName string     `json:"highest_bid_user_name"`
	EndTime            time.Time  `json:"end_time"`
	Status             ItemStatus `json:"status"`
	IsTie              bool       `json:"is_tie"`
}

// BidRecord is an append-only bid history entry, served newest-first.
type BidRecord struct {
	gorm.Model `json:"-"`
	BidID      string    `gorm:"uniqueIndex" json:"bid_id"`
	ItemID     string    `json:"item_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	Amount     int64     `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       BidKind   `json:"kind"`
}

// LogRecord is an append-only audit entry. Storage is capped at a configured
// retention limit; the oldest entries are dropped beyond the cap.
type LogRecord struct {
	gorm.Model  `json:"-"`
	LogID       string    `gorm:"uniqueIndex" json:"log_id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	Action      LogAction `json:"action"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// Winner records the final award for a closed item. Written once per item.
type Winner struct {
	gorm.Model    `json:"-"`
	ItemID        string    `gorm:"uniqueIndex" json:"item_id"`
	ItemName      string    `json:"item_name"`
	WinnerID      string    `json:"winner_id"`
	WinnerName    string    `json:"winner_name"`
	WinningAmount int64     `json:"winning_amount"`
	IsTie         bool      `json:"is_tie"`
	AwardedAt     time.Time `json:"awarded_at"`
}

// Snapshot is the full application aggregate at one point in time. Version
// is a monotonic counter bumped on every committed mutation; a commit whose
// base version is stale is rejected by the gateway.
//
// Bids and Logs are ordered newest-first.
type Snapshot struct {
	Version int64         `json:"version"`
	Users   []User        `json:"users"`
	Items   []BiddingItem `json:"items"`
	Bids    []BidRecord   `json:"bids"`
	Logs    []LogRecord   `json:"logs"`
	Winners []Winner      `json:"winners"`
}

// Clone returns a deep copy of the snapshot so callers can apply mutations
// without aliasing the gateway's cached state.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Version: s.Version,
		Users:   make([]User, len(s.Users)),
		Items:   make([]BiddingItem, len(s.Items)),
		Bids:    make([]BidRecord, len(s.Bids)),
		Logs:    make([]LogRecord, len(s.Logs)),
		Winners: make([]Winner, len(s.Winners)),
	}
	copy(c.Users, s.Users)
	copy(c.Items, s.Items)
	copy(c.Bids, s.Bids)
	copy(c.Logs, s.Logs)
	copy(c.Winners, s.Winners)
	return c
}

// FindUser returns a pointer into the snapshot's user slice, or nil.
func (s *Snapshot) FindUser(userID string) *User {
	for i := range s.Users {
		if s.Users[i].UserID == userID {
			return &s.Users[i]
		}
	}
	return nil
}

// FindItem returns a pointer into the snapshot's item slice, or nil.
func (s *Snapshot) FindItem(itemID string) *BiddingItem {
	for i := range s.Items {
		if s.Items[i].ItemID == itemID {
			return &s.Items[i]
		}
	}
	return nil
}
