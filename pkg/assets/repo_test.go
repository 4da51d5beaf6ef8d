package assets

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"assetbay/pkg/testhelpers"
)

func setupAssetTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("ASSET_DATABASE_URL_FOR_TEST")
	if dsn == "" {
		t.Skip("ASSET_DATABASE_URL_FOR_TEST not set; skipping asset repository tests")
	}

	ctx := context.Background()
	cfg, err := pgxpool.ParseConfig(dsn)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	t.Cleanup(pool.Close)
	return pool
}

func TestPostgresAssetRepository_CreateAsset(t *testing.T) {
	pool := setupAssetTestPool(t)

	repo := NewPostgresAssetRepository(pool)
	ctx := context.Background()
	owner := testhelpers.NewPrincipal()

	created, err := repo.CreateAsset(ctx, Asset{
		Name:        "mesh",
		Description: "low poly dragon",
		Owner:       owner,
		FileHash:    "hash-" + owner,
		FileType:    "model/gltf",
		FileSize:    2048,
		Price:       100,
		Category:    "3d",
		Tags:        []string{"dragon", "low-poly"},
	})

	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, owner, created.Owner)
	require.False(t, created.IsForSale)
	require.False(t, created.CreatedAt.IsZero())
}

// The insert discards any caller-supplied for-sale value.
func TestPostgresAssetRepository_CreateAsset_AlwaysOffSale(t *testing.T) {
	pool := setupAssetTestPool(t)

	repo := NewPostgresAssetRepository(pool)
	ctx := context.Background()
	owner := testhelpers.NewPrincipal()

	created, err := repo.CreateAsset(ctx, Asset{Name: "mesh", Owner: owner, FileHash: "h", IsForSale: true})

	require.NoError(t, err)
	require.False(t, created.IsForSale)
}

func TestPostgresAssetRepository_SetForSale_OwnerGuard(t *testing.T) {
	pool := setupAssetTestPool(t)

	repo := NewPostgresAssetRepository(pool)
	ctx := context.Background()
	owner := testhelpers.NewPrincipal()
	id := testhelpers.CreateTestAsset(t, pool, owner)

	updated, err := repo.SetForSale(ctx, id, owner, true)
	require.NoError(t, err)
	require.True(t, updated.IsForSale)

	_, err = repo.SetForSale(ctx, id, testhelpers.NewPrincipal(), false)
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = repo.SetForSale(ctx, 999999999, owner, false)
	require.ErrorIs(t, err, ErrAssetNotFound)
}

func TestPostgresAssetRepository_UpdatePrice_OwnerGuard(t *testing.T) {
	pool := setupAssetTestPool(t)

	repo := NewPostgresAssetRepository(pool)
	ctx := context.Background()
	owner := testhelpers.NewPrincipal()
	id := testhelpers.CreateTestAsset(t, pool, owner)

	updated, err := repo.UpdatePrice(ctx, id, owner, 750)
	require.NoError(t, err)
	require.EqualValues(t, 750, updated.Price)

	_, err = repo.UpdatePrice(ctx, id, testhelpers.NewPrincipal(), 1)
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestPostgresAssetRepository_TransferOwner_ClearsForSale(t *testing.T) {
	pool := setupAssetTestPool(t)

	repo := NewPostgresAssetRepository(pool)
	ctx := context.Background()
	owner := testhelpers.NewPrincipal()
	newOwner := testhelpers.NewPrincipal()
	id := testhelpers.CreateTestAsset(t, pool, owner)

	_, err := repo.SetForSale(ctx, id, owner, true)
	require.NoError(t, err)

	transferred, err := repo.TransferOwner(ctx, id, owner, newOwner)
	require.NoError(t, err)
	require.Equal(t, newOwner, transferred.Owner)
	require.False(t, transferred.IsForSale)
}

func TestPostgresAssetRepository_MarketplaceTransfer_CompareAndSwap(t *testing.T) {
	pool := setupAssetTestPool(t)

	repo := NewPostgresAssetRepository(pool)
	ctx := context.Background()
	owner := testhelpers.NewPrincipal()
	buyer := testhelpers.NewPrincipal()
	id := testhelpers.CreateTestAsset(t, pool, owner)

	transferred, err := repo.MarketplaceTransfer(ctx, id, owner, buyer)
	require.NoError(t, err)
	require.Equal(t, buyer, transferred.Owner)
	require.False(t, transferred.IsForSale)

	// The previous owner is no longer current, so the swap refuses.
	_, err = repo.MarketplaceTransfer(ctx, id, owner, testhelpers.NewPrincipal())
	require.ErrorIs(t, err, ErrOwnershipMismatch)

	_, err = repo.MarketplaceTransfer(ctx, 999999999, owner, buyer)
	require.ErrorIs(t, err, ErrAssetNotFound)
}

func TestPostgresAssetRepository_ListAssets_WithFilters(t *testing.T) {
	pool := setupAssetTestPool(t)

	repo := NewPostgresAssetRepository(pool)
	ctx := context.Background()
	owner := testhelpers.NewPrincipal()

	for i := 0; i < 3; i++ {
		testhelpers.CreateTestAsset(t, pool, owner)
	}

	forSale := false
	items, total, err := repo.ListAssets(ctx, AssetFilters{Owner: &owner, IsForSale: &forSale}, 10, 0)

	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, items, 3)
	for _, a := range items {
		require.Equal(t, owner, a.Owner)
	}
}

func TestPostgresAssetRepository_SearchAssets_MatchesTags(t *testing.T) {
	pool := setupAssetTestPool(t)

	repo := NewPostgresAssetRepository(pool)
	ctx := context.Background()
	owner := testhelpers.NewPrincipal()

	// A tag unique to this test run keeps the match set deterministic.
	tag := "tag-" + owner
	_, err := repo.CreateAsset(ctx, Asset{Name: "mesh", Owner: owner, FileHash: "h-" + owner, Tags: []string{tag}})
	require.NoError(t, err)

	items, total, err := repo.SearchAssets(ctx, tag, 10, 0)

	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	require.Equal(t, owner, items[0].Owner)
}
