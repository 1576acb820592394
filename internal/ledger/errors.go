package ledger

import (
	"errors"
	"fmt"
)

// Settlement error taxonomy. Every rejection is a typed, user-visible
// condition; none is fatal to the process.
var (
	ErrSessionInvalid    = errors.New("acting user is not resolvable")
	ErrItemNotFound      = errors.New("item not found")
	ErrMarketClosed      = errors.New("market window closed for this item")
	ErrBidTooLow         = errors.New("bid amount below current highest")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)

// CooldownError rejects a bid placed too soon after the bidder's previous
// bid on the same item. Remaining is always positive.
type CooldownError struct {
	Remaining int // seconds until the bidder may bid on this item again
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("bid cooldown active, %ds remaining", e.Remaining)
}
