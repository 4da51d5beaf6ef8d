package content

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"assetbay/pkg/testhelpers"
)

func setupContentTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	// The files table lives in the asset store.
	dsn := os.Getenv("ASSET_DATABASE_URL_FOR_TEST")
	if dsn == "" {
		t.Skip("ASSET_DATABASE_URL_FOR_TEST not set; skipping file repository tests")
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

func TestPostgresFileRepository_SaveAndGet(t *testing.T) {
	pool := setupContentTestPool(t)

	repo := NewPostgresFileRepository(pool)
	ctx := context.Background()
	uploader := testhelpers.NewPrincipal()
	hash := "hash-" + uploader
	payload := []byte("model bytes")

	saved, err := repo.SaveFile(ctx, File{Hash: hash, Uploader: uploader, ContentType: "model/gltf"}, payload)
	require.NoError(t, err)
	require.Equal(t, hash, saved.Hash)
	require.EqualValues(t, len(payload), saved.Size)

	meta, data, err := repo.GetFile(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, uploader, meta.Uploader)
	require.Equal(t, payload, data)
}

func TestPostgresFileRepository_DuplicateHashRejected(t *testing.T) {
	pool := setupContentTestPool(t)

	repo := NewPostgresFileRepository(pool)
	ctx := context.Background()
	uploader := testhelpers.NewPrincipal()
	hash := "hash-" + uploader

	_, err := repo.SaveFile(ctx, File{Hash: hash, Uploader: uploader}, []byte("one"))
	require.NoError(t, err)

	_, err = repo.SaveFile(ctx, File{Hash: hash, Uploader: uploader}, []byte("two"))
	require.ErrorIs(t, err, ErrFileExists)
}

func TestPostgresFileRepository_GetMissing(t *testing.T) {
	pool := setupContentTestPool(t)

	repo := NewPostgresFileRepository(pool)

	_, _, err := repo.GetFile(context.Background(), "no-such-hash")
	require.ErrorIs(t, err, ErrFileNotFound)
}
