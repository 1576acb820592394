package gateway

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bidmaster/auction-api/internal/types"
)

func newTestGateway(t *testing.T, retention int) *Gateway {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	g, err := New(dsn, retention)
	require.NoError(t, err)
	return g
}

func TestNew_SeedsBootstrapRecords(t *testing.T) {
	g := newTestGateway(t, 100)

	snap, err := g.Fetch()
	require.NoError(t, err)

	require.Equal(t, int64(1), snap.Version)
	require.Len(t, snap.Users, 4)
	require.Len(t, snap.Items, 3)
	require.Empty(t, snap.Bids)
	require.Empty(t, snap.Winners)

	admin := snap.FindUser("U001")
	require.NotNil(t, admin)
	require.Equal(t, types.RoleAdmin, admin.Role)
	require.Equal(t, int64(250000), admin.WalletBalance)

	watch := snap.FindItem("I001")
	require.NotNil(t, watch)
	require.Equal(t, int64(8500), watch.StartingPrice)
	require.Equal(t, watch.StartingPrice, watch.HighestBidAmount)
	require.Equal(t, types.StatusOpen, watch.Status)
	require.True(t, watch.EndTime.After(time.Now().UTC()))
}

func TestCommit_RoundTripsSnapshot(t *testing.T) {
	g := newTestGateway(t, 100)

	snap, err := g.Fetch()
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	item := snap.FindItem("I001")
	item.HighestBidAmount = 9000
	item.HighestBidUserID = "U002"
	item.HighestBidUserName = "John Doe"
	snap.FindUser("U002").WalletBalance -= 9000
	snap.Bids = []types.BidRecord{{
		BidID:     uuid.New().String(),
		ItemID:    "I001",
		UserID:    "U002",
		UserName:  "John Doe",
		Amount:    9000,
		Timestamp: now,
		Kind:      types.BidPlace,
	}}

	require.NoError(t, g.Commit(snap))
	require.Equal(t, int64(2), snap.Version)

	reloaded, err := g.Fetch()
	require.NoError(t, err)
	require.Equal(t, int64(2), reloaded.Version)
	require.Equal(t, int64(9000), reloaded.FindItem("I001").HighestBidAmount)
	require.Equal(t, int64(3000), reloaded.FindUser("U002").WalletBalance)
	require.Len(t, reloaded.Bids, 1)
	require.Equal(t, types.BidPlace, reloaded.Bids[0].Kind)
}

func TestCommit_RejectsStaleVersion(t *testing.T) {
	g := newTestGateway(t, 100)

	first, err := g.Fetch()
	require.NoError(t, err)
	second, err := g.Fetch()
	require.NoError(t, err)

	first.FindUser("U002").WalletBalance = 1
	require.NoError(t, g.Commit(first))

	second.FindUser("U002").WalletBalance = 99999
	err = g.Commit(second)
	require.ErrorIs(t, err, ErrConflict)

	// The stale write must not have touched the store.
	current, err := g.Fetch()
	require.NoError(t, err)
	require.Equal(t, int64(1), current.FindUser("U002").WalletBalance)
}

func TestCommit_SupportsRepeatedRewrites(t *testing.T) {
	g := newTestGateway(t, 100)

	for i := 0; i < 5; i++ {
		snap, err := g.Fetch()
		require.NoError(t, err)
		snap.FindUser("U002").WalletBalance = int64(1000 + i)
		require.NoError(t, g.Commit(snap))
	}

	snap, err := g.Fetch()
	require.NoError(t, err)
	require.Equal(t, int64(1004), snap.FindUser("U002").WalletBalance)
	require.Equal(t, int64(6), snap.Version)

	// Each rewrite replaces the rows outright; nothing accumulates in the
	// tables, soft-deleted or otherwise.
	var users int64
	require.NoError(t, g.db.Unscoped().Model(&types.User{}).Count(&users).Error)
	require.Equal(t, int64(4), users)

	var items int64
	require.NoError(t, g.db.Unscoped().Model(&types.BiddingItem{}).Count(&items).Error)
	require.Equal(t, int64(3), items)
}

func TestFetch_OrdersBidsAndLogsNewestFirst(t *testing.T) {
	g := newTestGateway(t, 100)

	snap, err := g.Fetch()
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		snap.Bids = append([]types.BidRecord{{
			BidID:     uuid.New().String(),
			ItemID:    "I001",
			UserID:    "U002",
			Amount:    int64(9000 + i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Kind:      types.BidPlace,
		}}, snap.Bids...)
	}
	require.NoError(t, g.Commit(snap))

	reloaded, err := g.Fetch()
	require.NoError(t, err)
	require.Len(t, reloaded.Bids, 3)
	require.Equal(t, int64(9002), reloaded.Bids[0].Amount)
	require.Equal(t, int64(9000), reloaded.Bids[2].Amount)
}

func TestAppendLog_DefaultsAndRetention(t *testing.T) {
	g := newTestGateway(t, 5)

	for i := 0; i < 8; i++ {
		require.NoError(t, g.AppendLog(types.LogRecord{
			UserID:      "U001",
			UserName:    "Admin Master",
			Action:      types.ActionLogin,
			Description: fmt.Sprintf("entry %d", i),
		}))
	}

	snap, err := g.Fetch()
	require.NoError(t, err)
	require.Len(t, snap.Logs, 5)

	// Newest entry first, with generated id and timestamp.
	require.Equal(t, "entry 7", snap.Logs[0].Description)
	require.Equal(t, "entry 3", snap.Logs[4].Description)
	require.NotEmpty(t, snap.Logs[0].LogID)
	require.False(t, snap.Logs[0].Timestamp.IsZero())
}

func TestFetch_ServesLastKnownStateWhenStoreFails(t *testing.T) {
	g := newTestGateway(t, 100)

	snap, err := g.Fetch()
	require.NoError(t, err)

	sqlDB, err := g.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	cached, err := g.Fetch()
	require.NoError(t, err)
	require.Equal(t, snap.Version, cached.Version)
	require.Len(t, cached.Users, len(snap.Users))

	// Each fallback read hands out an independent copy.
	cached.FindUser("U002").WalletBalance = 0
	again, err := g.Fetch()
	require.NoError(t, err)
	require.Equal(t, snap.FindUser("U002").WalletBalance, again.FindUser("U002").WalletBalance)
}
