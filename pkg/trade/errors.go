package trade

import (
	"errors"
	"fmt"
)

// Precondition failures from the stores pass through unchanged
// (assets.ErrNotOwner, assets.ErrOwnershipMismatch, market.ErrAlreadyListed,
// market.ErrListingNotActive, ...). The orchestrator adds only the failures
// that exist between the stores.
var (
	// ErrSelfPurchase rejects a buyer who already owns the asset.
	ErrSelfPurchase = errors.New("buyer already owns this asset")

	// ErrStaleListing means the asset changed hands outside the marketplace
	// after the listing was created. The listing is retired as a corrective
	// side effect; the purchase did not execute.
	ErrStaleListing = errors.New("listing is stale: asset owner changed since listing")
)

// PartialFailureError reports a divergence: the authoritative store already
// committed the caller's intent, but the dependent store's mirror write
// failed after bounded retries. The ids identify what a reconciliation call
// must converge. Callers should treat this as "intent succeeded, display
// state may lag", not as an operation failure.
type PartialFailureError struct {
	Op        string
	ListingID int64
	AssetID   int64
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s partially applied (listing %d, asset %d), reconciliation required: %v",
		e.Op, e.ListingID, e.AssetID, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
