package testhelpers

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

var uniqueCounter int64

func nextSuffix() int64 {
	return atomic.AddInt64(&uniqueCounter, 1)
}

// NewPrincipal returns a fresh opaque principal token.
func NewPrincipal() string {
	return uuid.NewString()
}

// CreateTestAsset inserts an off-sale asset owned by the given principal
// into the asset store and returns its ID.
func CreateTestAsset(t *testing.T, db *pgxpool.Pool, owner string) int64 {
	t.Helper()

	ctx := context.Background()
	name := fmt.Sprintf("test-asset-%d", nextSuffix())
	hash := fmt.Sprintf("hash-%s", uuid.NewString())

	var id int64
	err := db.QueryRow(ctx,
		`INSERT INTO assets (name, owner_principal, file_hash, price) VALUES ($1, $2, $3, 100) RETURNING id`,
		name, owner, hash).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateTestListing inserts an active listing for the asset into the
// marketplace store and returns its ID.
func CreateTestListing(t *testing.T, db *pgxpool.Pool, assetID int64, seller string, price int64) int64 {
	t.Helper()

	ctx := context.Background()

	var id int64
	err := db.QueryRow(ctx,
		`INSERT INTO listings (asset_id, seller_principal, price) VALUES ($1, $2, $3) RETURNING id`,
		assetID, seller, price).Scan(&id)
	require.NoError(t, err)
	return id
}
