package trade

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"assetbay/pkg/assets"
	"assetbay/pkg/market"
)

// The orchestrator sequences the asset and marketplace stores for the three
// compound operations. Each store call is atomic within its store; nothing
// here is atomic across both. The rule throughout is
// authoritative-intent-wins: once the store owning the fact has committed,
// the other store's mirror write is retried, never unwound.

// AssetStore is the slice of the asset registry the orchestrator consumes.
type AssetStore interface {
	GetAssetByID(ctx context.Context, id int64) (assets.Asset, error)
	SetForSale(ctx context.Context, caller string, id int64, forSale bool) (assets.Asset, error)
	MarketplaceTransfer(ctx context.Context, caller string, id int64, expectedOwner, newOwner string) (assets.Asset, error)
}

// MarketStore is the slice of the marketplace the orchestrator consumes.
type MarketStore interface {
	CreateListing(ctx context.Context, caller string, assetID int64, price int64) (market.Listing, error)
	GetListingByID(ctx context.Context, id int64) (market.Listing, error)
	GetActiveListingByAsset(ctx context.Context, assetID int64) (market.Listing, error)
	CancelListing(ctx context.Context, caller string, id int64) (market.Listing, error)
	DeactivateListing(ctx context.Context, id int64) (market.Listing, error)
	RecordTransaction(ctx context.Context, listingID int64, buyer string) (market.Transaction, error)
	RecordFailedAttempt(ctx context.Context, listingID int64, buyer string) (market.Transaction, error)
	ListListings(ctx context.Context, filters market.ListingFilters, page, limit int) ([]market.Listing, int64, error)
}

// Broadcaster fans marketplace events out to connected clients.
type Broadcaster interface {
	Broadcast(v any)
}

// Alerter notifies an operator about a divergence needing attention.
type Alerter interface {
	Divergence(op string, listingID, assetID int64, cause error)
}

type Orchestrator struct {
	assets AssetStore
	market MarketStore

	// principal is the marketplace's own identity, the only caller the
	// asset store accepts for sale-mediated ownership transfers.
	principal string

	log           *zap.Logger
	feed          Broadcaster
	alerter       Alerter
	maxRetries    uint64
	retryInterval time.Duration
}

type Option func(*Orchestrator)

func WithFeed(b Broadcaster) Option {
	return func(o *Orchestrator) { o.feed = b }
}

func WithAlerter(a Alerter) Option {
	return func(o *Orchestrator) { o.alerter = a }
}

func WithRetryPolicy(maxRetries uint64, interval time.Duration) Option {
	return func(o *Orchestrator) {
		o.maxRetries = maxRetries
		o.retryInterval = interval
	}
}

func NewOrchestrator(assetStore AssetStore, marketStore MarketStore, marketplacePrincipal string, log *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		assets:        assetStore,
		market:        marketStore,
		principal:     marketplacePrincipal,
		log:           log,
		maxRetries:    3,
		retryInterval: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Event types pushed to the feed.
type ListingEvent struct {
	Type    string         `json:"type"` // "listed" or "cancelled"
	Listing market.Listing `json:"listing"`
}

type SaleEvent struct {
	Type        string             `json:"type"` // "sold"
	Transaction market.Transaction `json:"transaction"`
}

// ListForSale creates a listing and raises the asset's for-sale flag.
// The listing is the authoritative fact: if it commits but the flag write
// keeps failing, the listing stands and the divergence is surfaced for
// reconciliation rather than rolled back.
func (o *Orchestrator) ListForSale(ctx context.Context, caller string, assetID, price int64) (market.Listing, error) {
	a, err := o.assets.GetAssetByID(ctx, assetID)
	if err != nil {
		return market.Listing{}, err
	}
	if a.Owner != caller {
		return market.Listing{}, assets.ErrNotOwner
	}

	if _, err := o.market.GetActiveListingByAsset(ctx, assetID); err == nil {
		return market.Listing{}, market.ErrAlreadyListed
	} else if !errors.Is(err, market.ErrListingNotFound) {
		return market.Listing{}, err
	}

	// No asset-store side effect has happened yet: a failure here leaves
	// both stores untouched and the whole call safely retryable.
	l, err := o.market.CreateListing(ctx, caller, assetID, price)
	if err != nil {
		return market.Listing{}, err
	}

	if err := o.setForSaleWithRetry(ctx, caller, assetID, true); err != nil {
		o.reportDivergence("list_for_sale", l.ID, assetID, err)
		return l, &PartialFailureError{Op: "list_for_sale", ListingID: l.ID, AssetID: assetID, Err: err}
	}

	o.broadcast(ListingEvent{Type: "listed", Listing: l})
	return l, nil
}

// CancelListing deactivates the listing, then clears the asset's for-sale
// flag. Once the listing is canonically cancelled the only residual risk is
// a stale flag, which never gates a purchase.
func (o *Orchestrator) CancelListing(ctx context.Context, caller string, listingID int64) (market.Listing, error) {
	l, err := o.market.CancelListing(ctx, caller, listingID)
	if err != nil {
		return market.Listing{}, err
	}

	if err := o.setForSaleWithRetry(ctx, caller, l.AssetID, false); err != nil {
		o.reportDivergence("cancel_listing", l.ID, l.AssetID, err)
		return l, &PartialFailureError{Op: "cancel_listing", ListingID: l.ID, AssetID: l.AssetID, Err: err}
	}

	o.broadcast(ListingEvent{Type: "cancelled", Listing: l})
	return l, nil
}

// Purchase transfers ownership, records the completed transaction, and
// clears the for-sale flag, in that order. Ownership is the economically
// meaningful fact, so it moves first; everything after it is retried
// forward, never undone.
func (o *Orchestrator) Purchase(ctx context.Context, buyer string, listingID int64) (market.Transaction, error) {
	l, err := o.market.GetListingByID(ctx, listingID)
	if err != nil {
		return market.Transaction{}, err
	}
	if !l.IsActive {
		return market.Transaction{}, market.ErrListingNotActive
	}

	a, err := o.assets.GetAssetByID(ctx, l.AssetID)
	if err != nil {
		return market.Transaction{}, err
	}
	if buyer == a.Owner || buyer == l.Seller {
		return market.Transaction{}, ErrSelfPurchase
	}

	if _, err := o.assets.MarketplaceTransfer(ctx, o.principal, l.AssetID, l.Seller, buyer); err != nil {
		if errors.Is(err, assets.ErrOwnershipMismatch) {
			o.retireStaleListing(ctx, l, buyer)
			return market.Transaction{}, ErrStaleListing
		}
		return market.Transaction{}, err
	}

	// Ownership has moved; the purchase is final. recordTransaction is
	// idempotent, so it is retried until the marketplace catches up.
	t, err := o.recordTransactionWithRetry(ctx, listingID, buyer)
	if err != nil {
		o.reportDivergence("purchase", listingID, l.AssetID, err)
		return market.Transaction{}, &PartialFailureError{Op: "purchase", ListingID: listingID, AssetID: l.AssetID, Err: err}
	}

	if err := o.setForSaleWithRetry(ctx, buyer, l.AssetID, false); err != nil {
		o.reportDivergence("purchase_cleanup", listingID, l.AssetID, err)
		return t, &PartialFailureError{Op: "purchase_cleanup", ListingID: listingID, AssetID: l.AssetID, Err: err}
	}

	o.broadcast(SaleEvent{Type: "sold", Transaction: t})
	return t, nil
}

// Reconcile closes an open divergence window by re-attempting the
// idempotent remaining steps of whichever operation stalled. An active
// listing whose asset has already left the seller is a purchase that
// stopped after the ownership transfer: the sale record is driven to
// completion for the current owner, then the flag is cleared. Every
// other shape re-derives the for-sale flag from the listing's
// authoritative state. The economic step is never re-run.
func (o *Orchestrator) Reconcile(ctx context.Context, caller string, listingID int64) (assets.Asset, error) {
	l, err := o.market.GetListingByID(ctx, listingID)
	if err != nil {
		return assets.Asset{}, err
	}

	a, err := o.assets.GetAssetByID(ctx, l.AssetID)
	if err != nil {
		return assets.Asset{}, err
	}

	if l.IsActive && a.Owner != l.Seller {
		// Whoever holds the asset now is the buyer the stalled purchase
		// transferred it to; recordTransaction is idempotent for them.
		t, err := o.market.RecordTransaction(ctx, l.ID, a.Owner)
		if err != nil {
			return assets.Asset{}, err
		}
		a, err = o.assets.SetForSale(ctx, a.Owner, l.AssetID, false)
		if err != nil {
			return assets.Asset{}, err
		}
		o.broadcast(SaleEvent{Type: "sold", Transaction: t})
		o.log.Info("stalled purchase reconciled",
			zap.Int64("listing_id", l.ID),
			zap.Int64("asset_id", l.AssetID),
			zap.Int64("transaction_id", t.ID))
		return a, nil
	}

	a, err = o.assets.SetForSale(ctx, caller, l.AssetID, l.IsActive)
	if err != nil {
		return assets.Asset{}, err
	}

	o.log.Info("divergence reconciled",
		zap.Int64("listing_id", l.ID),
		zap.Int64("asset_id", l.AssetID),
		zap.Bool("is_for_sale", l.IsActive))
	return a, nil
}

// MarketplaceItem joins an active listing with its asset record for the
// browse surface. Reads here are informational only and never gate a
// mutation.
type MarketplaceItem struct {
	Listing market.Listing `json:"listing"`
	Asset   assets.Asset   `json:"asset"`
}

// Browse returns the page of items plus the market store's count of all
// active listings. A listing whose asset record is missing from the other
// store is skipped, so a page can come up short of the total.
func (o *Orchestrator) Browse(ctx context.Context, page, limit int) ([]MarketplaceItem, int64, error) {
	active := true
	listings, total, err := o.market.ListListings(ctx, market.ListingFilters{IsActive: &active}, page, limit)
	if err != nil {
		return nil, 0, err
	}

	items := make([]MarketplaceItem, 0, len(listings))
	for _, l := range listings {
		a, err := o.assets.GetAssetByID(ctx, l.AssetID)
		if err != nil {
			if errors.Is(err, assets.ErrAssetNotFound) {
				continue
			}
			return nil, 0, err
		}
		items = append(items, MarketplaceItem{Listing: l, Asset: a})
	}
	return items, total, nil
}

// retireStaleListing is the best-effort corrective path after an
// expected-owner mismatch. The purchase did not execute, so failures here
// are logged, not fatal.
func (o *Orchestrator) retireStaleListing(ctx context.Context, l market.Listing, buyer string) {
	if _, err := o.market.DeactivateListing(ctx, l.ID); err != nil && !errors.Is(err, market.ErrListingNotActive) {
		o.log.Warn("failed to retire stale listing",
			zap.Int64("listing_id", l.ID),
			zap.Int64("asset_id", l.AssetID),
			zap.Error(err))
	}
	if _, err := o.market.RecordFailedAttempt(ctx, l.ID, buyer); err != nil {
		o.log.Warn("failed to record failed purchase attempt",
			zap.Int64("listing_id", l.ID),
			zap.String("buyer", buyer),
			zap.Error(err))
	}
}

func (o *Orchestrator) setForSaleWithRetry(ctx context.Context, caller string, assetID int64, forSale bool) error {
	operation := func() error {
		_, err := o.assets.SetForSale(ctx, caller, assetID, forSale)
		if err != nil && (errors.Is(err, assets.ErrAssetNotFound) || errors.Is(err, assets.ErrNotOwner)) {
			// Retrying cannot change either outcome.
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(operation, o.newBackOff(ctx))
}

func (o *Orchestrator) recordTransactionWithRetry(ctx context.Context, listingID int64, buyer string) (market.Transaction, error) {
	var t market.Transaction
	operation := func() error {
		var err error
		t, err = o.market.RecordTransaction(ctx, listingID, buyer)
		if err != nil && (errors.Is(err, market.ErrListingNotFound) || errors.Is(err, market.ErrListingNotActive)) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(operation, o.newBackOff(ctx)); err != nil {
		return market.Transaction{}, err
	}
	return t, nil
}

func (o *Orchestrator) newBackOff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.retryInterval), o.maxRetries), ctx)
}

func (o *Orchestrator) reportDivergence(op string, listingID, assetID int64, cause error) {
	o.log.Error("store divergence detected",
		zap.String("op", op),
		zap.Int64("listing_id", listingID),
		zap.Int64("asset_id", assetID),
		zap.Error(cause))
	if o.alerter != nil {
		o.alerter.Divergence(op, listingID, assetID, cause)
	}
}

func (o *Orchestrator) broadcast(v any) {
	if o.feed != nil {
		o.feed.Broadcast(v)
	}
}
