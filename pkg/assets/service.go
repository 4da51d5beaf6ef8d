package assets

import (
	"context"
	"errors"
)

var ErrNotMarketplace = errors.New("caller is not the marketplace principal")

type AssetService interface {
	UploadAsset(ctx context.Context, caller string, input Asset) (Asset, error)
	GetAssetByID(ctx context.Context, id int64) (Asset, error)
	ListAssets(ctx context.Context, filters AssetFilters, page, limit int) ([]Asset, int64, error)
	SearchAssets(ctx context.Context, query string, page, limit int) ([]Asset, int64, error)
	UpdatePrice(ctx context.Context, caller string, id int64, price int64) (Asset, error)
	SetForSale(ctx context.Context, caller string, id int64, forSale bool) (Asset, error)
	TransferOwner(ctx context.Context, caller string, id int64, newOwner string) (Asset, error)
	MarketplaceTransfer(ctx context.Context, caller string, id int64, expectedOwner, newOwner string) (Asset, error)
	GetStats(ctx context.Context) (AssetStats, error)
}

type assetService struct {
	repo AssetRepository

	// marketplacePrincipal is the one identity allowed to call
	// MarketplaceTransfer. Ownership changes as a side effect of a sale go
	// through that path and no other.
	marketplacePrincipal string
}

func NewAssetService(repo AssetRepository, marketplacePrincipal string) AssetService {
	return &assetService{repo: repo, marketplacePrincipal: marketplacePrincipal}
}

func (s *assetService) UploadAsset(ctx context.Context, caller string, input Asset) (Asset, error) {
	input.Owner = caller
	// New assets always start off sale.
	input.IsForSale = false
	if input.Tags == nil {
		input.Tags = []string{}
	}
	return s.repo.CreateAsset(ctx, input)
}

func (s *assetService) GetAssetByID(ctx context.Context, id int64) (Asset, error) {
	return s.repo.GetAssetByID(ctx, id)
}

func (s *assetService) ListAssets(ctx context.Context, filters AssetFilters, page, limit int) ([]Asset, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	offset := (page - 1) * limit
	return s.repo.ListAssets(ctx, filters, limit, offset)
}

func (s *assetService) SearchAssets(ctx context.Context, query string, page, limit int) ([]Asset, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	offset := (page - 1) * limit
	return s.repo.SearchAssets(ctx, query, limit, offset)
}

func (s *assetService) UpdatePrice(ctx context.Context, caller string, id int64, price int64) (Asset, error) {
	return s.repo.UpdatePrice(ctx, id, caller, price)
}

func (s *assetService) SetForSale(ctx context.Context, caller string, id int64, forSale bool) (Asset, error) {
	return s.repo.SetForSale(ctx, id, caller, forSale)
}

func (s *assetService) TransferOwner(ctx context.Context, caller string, id int64, newOwner string) (Asset, error) {
	if newOwner == caller {
		return Asset{}, errors.New("cannot transfer asset to its current owner")
	}
	return s.repo.TransferOwner(ctx, id, caller, newOwner)
}

func (s *assetService) MarketplaceTransfer(ctx context.Context, caller string, id int64, expectedOwner, newOwner string) (Asset, error) {
	if caller != s.marketplacePrincipal {
		return Asset{}, ErrNotMarketplace
	}
	return s.repo.MarketplaceTransfer(ctx, id, expectedOwner, newOwner)
}

func (s *assetService) GetStats(ctx context.Context) (AssetStats, error) {
	return s.repo.GetStats(ctx)
}
