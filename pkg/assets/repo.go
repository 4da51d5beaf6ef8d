package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrAssetNotFound     = errors.New("asset not found")
	ErrNotOwner          = errors.New("caller is not the asset owner")
	ErrOwnershipMismatch = errors.New("asset owner differs from expected owner")
)

// Every repository mutation is a single guarded UPDATE: the owner (or
// expected-owner) check and the write land in one statement, so no
// concurrent mutation on the same asset can interleave with it.

type AssetRepository interface {
	CreateAsset(ctx context.Context, input Asset) (Asset, error)
	GetAssetByID(ctx context.Context, id int64) (Asset, error)
	ListAssets(ctx context.Context, filters AssetFilters, limit, offset int) ([]Asset, int64, error)
	SearchAssets(ctx context.Context, query string, limit, offset int) ([]Asset, int64, error)
	UpdatePrice(ctx context.Context, id int64, owner string, price int64) (Asset, error)
	SetForSale(ctx context.Context, id int64, owner string, forSale bool) (Asset, error)
	TransferOwner(ctx context.Context, id int64, owner, newOwner string) (Asset, error)
	MarketplaceTransfer(ctx context.Context, id int64, expectedOwner, newOwner string) (Asset, error)
	GetStats(ctx context.Context) (AssetStats, error)
}

type AssetFilters struct {
	Owner     *string
	Category  *string
	IsForSale *bool
}

const assetColumns = `id, name, description, owner_principal, file_hash, file_type, file_size,
	price, is_for_sale, category, tags, preview_url, created_at, updated_at`

type postgresAssetRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAssetRepository(pool *pgxpool.Pool) AssetRepository {
	return &postgresAssetRepository{pool: pool}
}

func scanAsset(row pgx.Row) (Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Owner, &a.FileHash, &a.FileType,
		&a.FileSize, &a.Price, &a.IsForSale, &a.Category, &a.Tags, &a.PreviewURL,
		&a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *postgresAssetRepository) CreateAsset(ctx context.Context, input Asset) (Asset, error) {
	query := `INSERT INTO assets (name, description, owner_principal, file_hash, file_type, file_size,
	              price, is_for_sale, category, tags, preview_url, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $9, $10, NOW(), NOW())
	          RETURNING ` + assetColumns

	row := r.pool.QueryRow(ctx, query, input.Name, input.Description, input.Owner,
		input.FileHash, input.FileType, input.FileSize, input.Price,
		input.Category, input.Tags, input.PreviewURL)

	created, err := scanAsset(row)
	if err != nil {
		return Asset{}, err
	}
	return created, nil
}

func (r *postgresAssetRepository) GetAssetByID(ctx context.Context, id int64) (Asset, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)

	a, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Asset{}, ErrAssetNotFound
		}
		return Asset{}, err
	}
	return a, nil
}

func (r *postgresAssetRepository) ListAssets(ctx context.Context, filters AssetFilters, limit, offset int) ([]Asset, int64, error) {
	whereClauses := []string{"TRUE"}
	args := []any{}
	argPos := 1

	if filters.Owner != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("owner_principal = $%d", argPos))
		args = append(args, *filters.Owner)
		argPos++
	}

	if filters.Category != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("LOWER(category) = LOWER($%d)", argPos))
		args = append(args, *filters.Category)
		argPos++
	}

	if filters.IsForSale != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("is_for_sale = $%d", argPos))
		args = append(args, *filters.IsForSale)
		argPos++
	}

	whereSQL := "WHERE " + strings.Join(whereClauses, " AND ")

	query := fmt.Sprintf(`SELECT %s FROM assets %s ORDER BY id LIMIT $%d OFFSET $%d`,
		assetColumns, whereSQL, argPos, argPos+1)
	args = append(args, limit, offset)

	items, err := r.queryAssets(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM assets %s", whereSQL)
	countArgs := args[:len(args)-2]

	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *postgresAssetRepository) SearchAssets(ctx context.Context, query string, limit, offset int) ([]Asset, int64, error) {
	// Matches name, description, category, or any tag, case-insensitively.
	where := `WHERE name ILIKE $1 OR description ILIKE $1 OR category ILIKE $1
	          OR EXISTS (SELECT 1 FROM unnest(tags) AS tag WHERE tag ILIKE $1)`
	pattern := "%" + query + "%"

	items, err := r.queryAssets(ctx,
		fmt.Sprintf(`SELECT %s FROM assets %s ORDER BY id LIMIT $2 OFFSET $3`, assetColumns, where),
		pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM assets "+where, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *postgresAssetRepository) queryAssets(ctx context.Context, query string, args ...any) ([]Asset, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Asset, 0)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *postgresAssetRepository) UpdatePrice(ctx context.Context, id int64, owner string, price int64) (Asset, error) {
	query := `UPDATE assets SET price = $3, updated_at = NOW()
	          WHERE id = $1 AND owner_principal = $2
	          RETURNING ` + assetColumns

	a, err := scanAsset(r.pool.QueryRow(ctx, query, id, owner, price))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Asset{}, r.ownerGuardError(ctx, id)
		}
		return Asset{}, err
	}
	return a, nil
}

func (r *postgresAssetRepository) SetForSale(ctx context.Context, id int64, owner string, forSale bool) (Asset, error) {
	query := `UPDATE assets SET is_for_sale = $3, updated_at = NOW()
	          WHERE id = $1 AND owner_principal = $2
	          RETURNING ` + assetColumns

	a, err := scanAsset(r.pool.QueryRow(ctx, query, id, owner, forSale))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Asset{}, r.ownerGuardError(ctx, id)
		}
		return Asset{}, err
	}
	return a, nil
}

// TransferOwner is the direct, owner-initiated transfer. The asset comes off
// sale in the same write.
func (r *postgresAssetRepository) TransferOwner(ctx context.Context, id int64, owner, newOwner string) (Asset, error) {
	query := `UPDATE assets SET owner_principal = $3, is_for_sale = false, updated_at = NOW()
	          WHERE id = $1 AND owner_principal = $2
	          RETURNING ` + assetColumns

	a, err := scanAsset(r.pool.QueryRow(ctx, query, id, owner, newOwner))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Asset{}, r.ownerGuardError(ctx, id)
		}
		return Asset{}, err
	}
	return a, nil
}

// MarketplaceTransfer applies the sale-mediated ownership change as a
// compare-and-swap on the current owner. When the asset changed hands since
// the expectation was formed, nothing is written and ErrOwnershipMismatch
// is returned.
func (r *postgresAssetRepository) MarketplaceTransfer(ctx context.Context, id int64, expectedOwner, newOwner string) (Asset, error) {
	query := `UPDATE assets SET owner_principal = $3, is_for_sale = false, updated_at = NOW()
	          WHERE id = $1 AND owner_principal = $2
	          RETURNING ` + assetColumns

	a, err := scanAsset(r.pool.QueryRow(ctx, query, id, expectedOwner, newOwner))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetAssetByID(ctx, id); errors.Is(getErr, ErrAssetNotFound) {
				return Asset{}, ErrAssetNotFound
			}
			return Asset{}, ErrOwnershipMismatch
		}
		return Asset{}, err
	}
	return a, nil
}

func (r *postgresAssetRepository) GetStats(ctx context.Context) (AssetStats, error) {
	var stats AssetStats
	row := r.pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_for_sale) FROM assets`)
	if err := row.Scan(&stats.TotalAssets, &stats.ForSale); err != nil {
		return AssetStats{}, err
	}
	return stats, nil
}

// ownerGuardError distinguishes "no such asset" from "asset exists but the
// caller is not its owner" after a guarded update matched no rows.
func (r *postgresAssetRepository) ownerGuardError(ctx context.Context, id int64) error {
	if _, err := r.GetAssetByID(ctx, id); errors.Is(err, ErrAssetNotFound) {
		return ErrAssetNotFound
	}
	return ErrNotOwner
}
