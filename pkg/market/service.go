package market

import (
	"context"
	"errors"
)

type MarketService interface {
	CreateListing(ctx context.Context, caller string, assetID int64, price int64) (Listing, error)
	GetListingByID(ctx context.Context, id int64) (Listing, error)
	GetActiveListingByAsset(ctx context.Context, assetID int64) (Listing, error)
	ListListings(ctx context.Context, filters ListingFilters, page, limit int) ([]Listing, int64, error)
	CancelListing(ctx context.Context, caller string, id int64) (Listing, error)
	DeactivateListing(ctx context.Context, id int64) (Listing, error)
	UpdateListingPrice(ctx context.Context, caller string, id int64, price int64) (Listing, error)
	RecordTransaction(ctx context.Context, listingID int64, buyer string) (Transaction, error)
	RecordFailedAttempt(ctx context.Context, listingID int64, buyer string) (Transaction, error)
	ListTransactionsByUser(ctx context.Context, principal string, page, limit int) ([]Transaction, int64, error)
	GetStats(ctx context.Context) (MarketStats, error)
}

type marketService struct {
	repo MarketRepository
}

func NewMarketService(repo MarketRepository) MarketService {
	return &marketService{repo: repo}
}

// CreateListing validates the input shape only. Asset ownership and
// cross-listing exclusivity are the orchestrator's checks: this store has
// no visibility into the asset store's state.
func (s *marketService) CreateListing(ctx context.Context, caller string, assetID int64, price int64) (Listing, error) {
	if assetID <= 0 {
		return Listing{}, errors.New("asset_id must be positive")
	}
	if price < 0 {
		return Listing{}, errors.New("price cannot be negative")
	}
	return s.repo.CreateListing(ctx, Listing{AssetID: assetID, Seller: caller, Price: price})
}

func (s *marketService) GetListingByID(ctx context.Context, id int64) (Listing, error) {
	return s.repo.GetListingByID(ctx, id)
}

func (s *marketService) GetActiveListingByAsset(ctx context.Context, assetID int64) (Listing, error) {
	return s.repo.GetActiveListingByAsset(ctx, assetID)
}

func (s *marketService) ListListings(ctx context.Context, filters ListingFilters, page, limit int) ([]Listing, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	offset := (page - 1) * limit
	return s.repo.ListListings(ctx, filters, limit, offset)
}

func (s *marketService) CancelListing(ctx context.Context, caller string, id int64) (Listing, error) {
	return s.repo.CancelListing(ctx, id, caller)
}

func (s *marketService) DeactivateListing(ctx context.Context, id int64) (Listing, error) {
	return s.repo.DeactivateListing(ctx, id)
}

func (s *marketService) UpdateListingPrice(ctx context.Context, caller string, id int64, price int64) (Listing, error) {
	if price < 0 {
		return Listing{}, errors.New("price cannot be negative")
	}
	return s.repo.UpdateListingPrice(ctx, id, caller, price)
}

func (s *marketService) RecordTransaction(ctx context.Context, listingID int64, buyer string) (Transaction, error) {
	return s.repo.RecordTransaction(ctx, listingID, buyer)
}

func (s *marketService) RecordFailedAttempt(ctx context.Context, listingID int64, buyer string) (Transaction, error) {
	return s.repo.RecordFailedAttempt(ctx, listingID, buyer)
}

func (s *marketService) ListTransactionsByUser(ctx context.Context, principal string, page, limit int) ([]Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	offset := (page - 1) * limit
	return s.repo.ListTransactionsByUser(ctx, principal, limit, offset)
}

func (s *marketService) GetStats(ctx context.Context) (MarketStats, error) {
	return s.repo.GetStats(ctx)
}
