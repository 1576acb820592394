package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bidmaster/auction-api/internal/gateway"
	"github.com/bidmaster/auction-api/internal/types"
)

func newTestLedger(t *testing.T) (*Service, *gateway.Gateway) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	g, err := gateway.New(dsn, 100)
	require.NoError(t, err)
	return NewService(g, Rules{Cooldown: time.Second, Extension: 2 * time.Minute}), g
}

func TestPlaceBid_PersistsSettlement(t *testing.T) {
	svc, g := newTestLedger(t)

	result, err := svc.PlaceBid("U002", "I001", 9000)
	require.NoError(t, err)
	require.False(t, result.IsTie)
	require.Equal(t, int64(9000), result.Bid.Amount)

	snap, err := g.Fetch()
	require.NoError(t, err)
	require.Equal(t, int64(9000), snap.FindItem("I001").HighestBidAmount)
	require.Equal(t, "U002", snap.FindItem("I001").HighestBidUserID)
	require.Equal(t, int64(12000-9000), snap.FindUser("U002").WalletBalance)

	require.Len(t, snap.Bids, 1)
	require.Equal(t, result.Bid.BidID, snap.Bids[0].BidID)
	require.Equal(t, types.ActionPlaceBid, snap.Logs[0].Action)
}

func TestPlaceBid_RejectionLeavesStoreUntouched(t *testing.T) {
	svc, g := newTestLedger(t)

	before, err := g.Fetch()
	require.NoError(t, err)

	_, err = svc.PlaceBid("U002", "I001", 8499)
	require.ErrorIs(t, err, ErrBidTooLow)

	after, err := g.Fetch()
	require.NoError(t, err)
	require.Equal(t, before.Version, after.Version)
	require.Empty(t, after.Bids)
	require.Equal(t, int64(12000), after.FindUser("U002").WalletBalance)
}

func TestPlaceBid_OutbidRefundAndAuditOrdering(t *testing.T) {
	svc, g := newTestLedger(t)

	_, err := svc.PlaceBid("U002", "I001", 9000)
	require.NoError(t, err)

	result, err := svc.PlaceBid("U003", "I001", 9500)
	require.NoError(t, err)
	require.Equal(t, "U002", result.RefundedUserID)
	require.Equal(t, int64(9000), result.RefundedAmount)

	snap, err := g.Fetch()
	require.NoError(t, err)
	require.Equal(t, int64(12000), snap.FindUser("U002").WalletBalance)
	require.Equal(t, int64(15500-9500), snap.FindUser("U003").WalletBalance)

	// Audit entries land newest-first with the refund alongside the bid.
	require.Equal(t, types.ActionPlaceBid, snap.Logs[0].Action)
	require.Equal(t, types.ActionRefund, snap.Logs[1].Action)
	require.Equal(t, types.ActionPlaceBid, snap.Logs[2].Action)
}

func TestGetBidsForItem_FiltersByItem(t *testing.T) {
	svc, _ := newTestLedger(t)

	_, err := svc.PlaceBid("U002", "I001", 9000)
	require.NoError(t, err)
	_, err = svc.PlaceBid("U003", "I003", 4600)
	require.NoError(t, err)

	bids, err := svc.GetBidsForItem("I001")
	require.NoError(t, err)
	require.Len(t, bids, 1)
	require.Equal(t, "U002", bids[0].UserID)

	_, err = svc.GetBidsForItem("I999")
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestGetUser_ReturnsFreshBalance(t *testing.T) {
	svc, _ := newTestLedger(t)

	_, err := svc.PlaceBid("U004", "I003", 5000)
	require.NoError(t, err)

	user, err := svc.GetUser("U004")
	require.NoError(t, err)
	require.Equal(t, int64(25000-5000), user.WalletBalance)

	_, err = svc.GetUser("U999")
	require.ErrorIs(t, err, ErrSessionInvalid)
}

func TestGetState_ReflectsVersionBumps(t *testing.T) {
	svc, _ := newTestLedger(t)

	initial, err := svc.GetState()
	require.NoError(t, err)

	_, err = svc.PlaceBid("U001", "I002", 120000)
	require.NoError(t, err)

	current, err := svc.GetState()
	require.NoError(t, err)
	require.Equal(t, initial.Version+1, current.Version)
}
