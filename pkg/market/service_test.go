package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMarketRepository struct {
	mock.Mock
}

func (m *mockMarketRepository) CreateListing(ctx context.Context, input Listing) (Listing, error) {
	args := m.Called(ctx, input)
	l, _ := args.Get(0).(Listing)
	return l, args.Error(1)
}

func (m *mockMarketRepository) GetListingByID(ctx context.Context, id int64) (Listing, error) {
	args := m.Called(ctx, id)
	l, _ := args.Get(0).(Listing)
	return l, args.Error(1)
}

func (m *mockMarketRepository) GetActiveListingByAsset(ctx context.Context, assetID int64) (Listing, error) {
	args := m.Called(ctx, assetID)
	l, _ := args.Get(0).(Listing)
	return l, args.Error(1)
}

func (m *mockMarketRepository) ListListings(ctx context.Context, filters ListingFilters, limit, offset int) ([]Listing, int64, error) {
	args := m.Called(ctx, filters, limit, offset)
	items, _ := args.Get(0).([]Listing)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *mockMarketRepository) CancelListing(ctx context.Context, id int64, seller string) (Listing, error) {
	args := m.Called(ctx, id, seller)
	l, _ := args.Get(0).(Listing)
	return l, args.Error(1)
}

func (m *mockMarketRepository) DeactivateListing(ctx context.Context, id int64) (Listing, error) {
	args := m.Called(ctx, id)
	l, _ := args.Get(0).(Listing)
	return l, args.Error(1)
}

func (m *mockMarketRepository) UpdateListingPrice(ctx context.Context, id int64, seller string, price int64) (Listing, error) {
	args := m.Called(ctx, id, seller, price)
	l, _ := args.Get(0).(Listing)
	return l, args.Error(1)
}

func (m *mockMarketRepository) RecordTransaction(ctx context.Context, listingID int64, buyer string) (Transaction, error) {
	args := m.Called(ctx, listingID, buyer)
	t, _ := args.Get(0).(Transaction)
	return t, args.Error(1)
}

func (m *mockMarketRepository) RecordFailedAttempt(ctx context.Context, listingID int64, buyer string) (Transaction, error) {
	args := m.Called(ctx, listingID, buyer)
	t, _ := args.Get(0).(Transaction)
	return t, args.Error(1)
}

func (m *mockMarketRepository) ListTransactionsByUser(ctx context.Context, principal string, limit, offset int) ([]Transaction, int64, error) {
	args := m.Called(ctx, principal, limit, offset)
	items, _ := args.Get(0).([]Transaction)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *mockMarketRepository) GetStats(ctx context.Context) (MarketStats, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(MarketStats)
	return s, args.Error(1)
}

func TestMarketService_CreateListing_SetsSeller(t *testing.T) {
	repo := new(mockMarketRepository)
	service := NewMarketService(repo)

	repo.On("CreateListing", mock.Anything, Listing{AssetID: 7, Seller: "alice", Price: 500}).
		Return(Listing{ID: 1, AssetID: 7, Seller: "alice", Price: 500, IsActive: true}, nil)

	got, err := service.CreateListing(context.Background(), "alice", 7, 500)

	require.NoError(t, err)
	require.True(t, got.IsActive)
	repo.AssertExpectations(t)
}

func TestMarketService_CreateListing_RejectsBadInput(t *testing.T) {
	repo := new(mockMarketRepository)
	service := NewMarketService(repo)

	_, err := service.CreateListing(context.Background(), "alice", 0, 500)
	require.Error(t, err)

	_, err = service.CreateListing(context.Background(), "alice", 7, -1)
	require.Error(t, err)

	repo.AssertNotCalled(t, "CreateListing", mock.Anything, mock.Anything)
}

func TestMarketService_ListListings_Defaults(t *testing.T) {
	repo := new(mockMarketRepository)
	service := NewMarketService(repo)

	repo.On("ListListings", mock.Anything, ListingFilters{}, 10, 0).Return([]Listing{}, int64(0), nil)

	_, _, err := service.ListListings(context.Background(), ListingFilters{}, 0, 0)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestMarketService_UpdateListingPrice_RejectsNegative(t *testing.T) {
	repo := new(mockMarketRepository)
	service := NewMarketService(repo)

	_, err := service.UpdateListingPrice(context.Background(), "alice", 1, -5)

	require.Error(t, err)
	repo.AssertNotCalled(t, "UpdateListingPrice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMarketService_ListTransactionsByUser_PaginationOffset(t *testing.T) {
	repo := new(mockMarketRepository)
	service := NewMarketService(repo)

	repo.On("ListTransactionsByUser", mock.Anything, "alice", 5, 10).Return([]Transaction{}, int64(0), nil)

	_, _, err := service.ListTransactionsByUser(context.Background(), "alice", 3, 5)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}
