package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bidmaster/auction-api/internal/types"
)

var (
	// ErrValidation blocks a save with a user-facing message; no partial
	// item is ever persisted.
	ErrValidation = errors.New("validation failed")

	// ErrItemNotFound reports a stale reference to an unknown item.
	ErrItemNotFound = errors.New("item not found")
)

const (
	// DefaultDuration is assigned when bidding starts on an item whose
	// stored end time is already in the past.
	DefaultDuration = time.Hour

	defaultImageURL = "https://picsum.photos/seed/placeholder/600/400"
)

// EndTimeMode selects how an item edit derives its end time.
type EndTimeMode string

const (
	// ModeDuration computes end time as now + hours/minutes/seconds. A
	// zero total silently keeps whatever end time was already present.
	ModeDuration EndTimeMode = "duration"
	// ModeFixed takes the explicit timestamp as given.
	ModeFixed EndTimeMode = "fixed"
)

// ItemInput is the admin create/edit payload. Pointer fields are merged only
// when set, so an edit never clobbers fields the admin did not touch.
type ItemInput struct {
	Name          *string     `json:"name"`
	ImageURL      *string     `json:"image_url"`
	StartingPrice *int64      `json:"starting_price"`
	Mode          EndTimeMode `json:"mode"`
	EndTime       *time.Time  `json:"end_time"`
	DurationH     int         `json:"duration_h"`
	DurationM     int         `json:"duration_m"`
	DurationS     int         `json:"duration_s"`
}

// Store is the persistence collaborator for lifecycle mutations.
type Store interface {
	Fetch() (*types.Snapshot, error)
	Commit(*types.Snapshot) error
}

// Service owns item state transitions and admin overrides. Status moves
// PENDING -> OPEN -> CLOSED; the ledger still checks the wall clock itself,
// so the status field stays advisory between sweep runs.
type Service struct {
	store Store
}

// NewService creates a lifecycle service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateItem validates and persists a new PENDING item. The highest bid
// defaults to the starting price so the ledger's floor holds from the start.
func (s *Service) CreateItem(actor types.User, input ItemInput) (*types.BiddingItem, error) {
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" ||
		input.StartingPrice == nil || *input.StartingPrice <= 0 {
		return nil, fmt.Errorf("%w: item name and a positive starting price are required", ErrValidation)
	}

	snap, err := s.store.Fetch()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	endTime := now.Add(DefaultDuration)
	if input.Mode == ModeFixed && input.EndTime != nil {
		endTime = input.EndTime.UTC()
	}
	if input.Mode == ModeDuration {
		if d := durationOf(input); d > 0 {
			endTime = now.Add(d)
		}
	}

	imageURL := defaultImageURL
	if input.ImageURL != nil && *input.ImageURL != "" {
		imageURL = *input.ImageURL
	}

	item := types.BiddingItem{
		ItemID:             "I" + strings.ToUpper(uuid.New().String()[:4]),
		Name:               *input.Name,
		ImageURL:           imageURL,
		StartingPrice:      *input.StartingPrice,
		HighestBidAmount:   *input.StartingPrice,
		HighestBidUserName: "None",
		EndTime:            endTime,
		Status:             types.StatusPending,
	}

	snap.Items = append(snap.Items, item)
	appendLog(snap, actor, types.ActionItemCreated,
		fmt.Sprintf("Listed %s at $%d.", item.Name, item.StartingPrice), now)

	if err := s.store.Commit(snap); err != nil {
		return nil, err
	}

	log.Info().Str("item_id", item.ItemID).Str("service", "lifecycle").Msg("item created")
	return &item, nil
}

// UpdateItem merges the input into an existing item. End time recomputation
// follows the edit mode: an explicit timestamp, or a duration from now that
// is only applied when the computed total is greater than zero.
func (s *Service) UpdateItem(actor types.User, itemID string, input ItemInput) (*types.BiddingItem, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, fmt.Errorf("%w: item name cannot be blank", ErrValidation)
	}
	if input.StartingPrice != nil && *input.StartingPrice <= 0 {
		return nil, fmt.Errorf("%w: starting price must be positive", ErrValidation)
	}

	snap, err := s.store.Fetch()
	if err != nil {
		return nil, err
	}

	item := snap.FindItem(itemID)
	if item == nil {
		return nil, ErrItemNotFound
	}

	if input.Name != nil {
		item.Name = *input.Name
	}
	if input.ImageURL != nil {
		item.ImageURL = *input.ImageURL
	}
	if input.StartingPrice != nil {
		item.StartingPrice = *input.StartingPrice
		if item.HighestBidAmount < item.StartingPrice {
			item.HighestBidAmount = item.StartingPrice
		}
	}

	now := time.Now().UTC()
	switch input.Mode {
	case ModeFixed:
		if input.EndTime != nil {
			item.EndTime = input.EndTime.UTC()
		}
	case ModeDuration:
		if d := durationOf(input); d > 0 {
			item.EndTime = now.Add(d)
		}
	}

	appendLog(snap, actor, types.ActionItemUpdated,
		fmt.Sprintf("Updated listing %s.", item.Name), now)

	updated := *item
	if err := s.store.Commit(snap); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteItem removes the item unconditionally. Bid history referencing it is
// append-only audit data and stays behind, orphaned on purpose.
func (s *Service) DeleteItem(actor types.User, itemID string) error {
	snap, err := s.store.Fetch()
	if err != nil {
		return err
	}

	idx := -1
	for i := range snap.Items {
		if snap.Items[i].ItemID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrItemNotFound
	}

	name := snap.Items[idx].Name
	snap.Items = append(snap.Items[:idx], snap.Items[idx+1:]...)
	appendLog(snap, actor, types.ActionItemDeleted,
		fmt.Sprintf("Removed listing %s.", name), time.Now().UTC())

	return s.store.Commit(snap)
}

// StartBidding flips an item to OPEN. A stored end time already in the past
// is replaced with the default duration from now; a future one is preserved.
func (s *Service) StartBidding(actor types.User, itemID string) (*types.BiddingItem, error) {
	snap, err := s.store.Fetch()
	if err != nil {
		return nil, err
	}

	item := snap.FindItem(itemID)
	if item == nil {
		return nil, ErrItemNotFound
	}

	now := time.Now().UTC()
	if !item.EndTime.After(now) {
		item.EndTime = now.Add(DefaultDuration)
	}
	item.Status = types.StatusOpen

	appendLog(snap, actor, types.ActionBiddingStarted,
		fmt.Sprintf("Opened bidding on %s until %s.", item.Name, item.EndTime.Format(time.RFC3339)), now)

	opened := *item
	if err := s.store.Commit(snap); err != nil {
		return nil, err
	}

	log.Info().Str("item_id", itemID).Time("end_time", opened.EndTime).Str("service", "lifecycle").Msg("bidding started")
	return &opened, nil
}

// FinalizeExpired closes every OPEN item whose end time has passed and awards
// a winner record, once, to items that attracted a bidder. Returns the number
// of items closed.
func (s *Service) FinalizeExpired(actor types.User) (int, error) {
	snap, err := s.store.Fetch()
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	closed := 0
	for i := range snap.Items {
		item := &snap.Items[i]
		if item.Status != types.StatusOpen || item.EndTime.After(now) {
			continue
		}

		item.Status = types.StatusClosed
		closed++
		appendLog(snap, actor, types.ActionItemClosed,
			fmt.Sprintf("Closed bidding on %s.", item.Name), now)

		if item.HighestBidUserID == "" || hasWinner(snap, item.ItemID) {
			continue
		}
		snap.Winners = append(snap.Winners, types.Winner{
			ItemID:        item.ItemID,
			ItemName:      item.Name,
			WinnerID:      item.HighestBidUserID,
			WinnerName:    item.HighestBidUserName,
			WinningAmount: item.HighestBidAmount,
			IsTie:         item.IsTie,
			AwardedAt:     now,
		})
		appendLog(snap, actor, types.ActionWinnerAwarded,
			fmt.Sprintf("Awarded %s to %s at $%d.", item.Name, item.HighestBidUserName, item.HighestBidAmount), now)
	}

	if closed == 0 {
		return 0, nil
	}
	if err := s.store.Commit(snap); err != nil {
		return 0, err
	}

	log.Info().Int("closed", closed).Str("service", "lifecycle").Msg("finalized expired items")
	return closed, nil
}

// GetLogs returns the audit trail, newest first.
func (s *Service) GetLogs() ([]types.LogRecord, error) {
	snap, err := s.store.Fetch()
	if err != nil {
		return nil, err
	}
	return snap.Logs, nil
}

// GetWinners returns all awarded winners.
func (s *Service) GetWinners() ([]types.Winner, error) {
	snap, err := s.store.Fetch()
	if err != nil {
		return nil, err
	}
	return snap.Winners, nil
}

// GetUsers returns all registered users.
func (s *Service) GetUsers() ([]types.User, error) {
	snap, err := s.store.Fetch()
	if err != nil {
		return nil, err
	}
	return snap.Users, nil
}

func durationOf(input ItemInput) time.Duration {
	return time.Duration(input.DurationH)*time.Hour +
		time.Duration(input.DurationM)*time.Minute +
		time.Duration(input.DurationS)*time.Second
}

func hasWinner(snap *types.Snapshot, itemID string) bool {
	for _, w := range snap.Winners {
		if w.ItemID == itemID {
			return true
		}
	}
	return false
}

func appendLog(snap *types.Snapshot, actor types.User, action types.LogAction, description string, ts time.Time) {
	snap.Logs = append([]types.LogRecord{{
		LogID:       uuid.New().String(),
		UserID:      actor.UserID,
		UserName:    actor.Name,
		Action:      action,
		Description: description,
		Timestamp:   ts,
	}}, snap.Logs...)
}
