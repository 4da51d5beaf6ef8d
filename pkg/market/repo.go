package market

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrListingNotFound     = errors.New("listing not found")
	ErrListingNotActive    = errors.New("listing is not active")
	ErrNotSeller           = errors.New("caller is not the listing seller")
	ErrAlreadyListed       = errors.New("asset already has an active listing")
	ErrTransactionNotFound = errors.New("transaction not found")
)

type MarketRepository interface {
	CreateListing(ctx context.Context, input Listing) (Listing, error)
	GetListingByID(ctx context.Context, id int64) (Listing, error)
	GetActiveListingByAsset(ctx context.Context, assetID int64) (Listing, error)
	ListListings(ctx context.Context, filters ListingFilters, limit, offset int) ([]Listing, int64, error)
	CancelListing(ctx context.Context, id int64, seller string) (Listing, error)
	DeactivateListing(ctx context.Context, id int64) (Listing, error)
	UpdateListingPrice(ctx context.Context, id int64, seller string, price int64) (Listing, error)
	RecordTransaction(ctx context.Context, listingID int64, buyer string) (Transaction, error)
	RecordFailedAttempt(ctx context.Context, listingID int64, buyer string) (Transaction, error)
	ListTransactionsByUser(ctx context.Context, principal string, limit, offset int) ([]Transaction, int64, error)
	GetStats(ctx context.Context) (MarketStats, error)
}

type ListingFilters struct {
	Seller   *string
	IsActive *bool
	AssetID  *int64
}

const listingColumns = `id, asset_id, seller_principal, price, is_active, created_at, updated_at`

const transactionColumns = `id, asset_id, listing_id, seller_principal, buyer_principal, price, status, transaction_time`

type postgresMarketRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresMarketRepository(pool *pgxpool.Pool) MarketRepository {
	return &postgresMarketRepository{pool: pool}
}

func scanListing(row pgx.Row) (Listing, error) {
	var l Listing
	err := row.Scan(&l.ID, &l.AssetID, &l.Seller, &l.Price, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.AssetID, &t.ListingID, &t.Seller, &t.Buyer, &t.Price, &t.Status, &t.TransactionTime)
	return t, err
}

func (r *postgresMarketRepository) CreateListing(ctx context.Context, input Listing) (Listing, error) {
	query := `INSERT INTO listings (asset_id, seller_principal, price, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, true, NOW(), NOW())
	          RETURNING ` + listingColumns

	l, err := scanListing(r.pool.QueryRow(ctx, query, input.AssetID, input.Seller, input.Price))
	if err != nil {
		// The partial unique index on (asset_id) WHERE is_active makes the
		// store itself reject a second active listing, closing the
		// check-then-insert race between concurrent list attempts.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Listing{}, ErrAlreadyListed
		}
		return Listing{}, err
	}
	return l, nil
}

func (r *postgresMarketRepository) GetListingByID(ctx context.Context, id int64) (Listing, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)

	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrListingNotFound
		}
		return Listing{}, err
	}
	return l, nil
}

func (r *postgresMarketRepository) GetActiveListingByAsset(ctx context.Context, assetID int64) (Listing, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE asset_id = $1 AND is_active`, assetID)

	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrListingNotFound
		}
		return Listing{}, err
	}
	return l, nil
}

func (r *postgresMarketRepository) ListListings(ctx context.Context, filters ListingFilters, limit, offset int) ([]Listing, int64, error) {
	whereClauses := []string{"TRUE"}
	args := []any{}
	argPos := 1

	if filters.Seller != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("seller_principal = $%d", argPos))
		args = append(args, *filters.Seller)
		argPos++
	}

	if filters.IsActive != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *filters.IsActive)
		argPos++
	}

	if filters.AssetID != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("asset_id = $%d", argPos))
		args = append(args, *filters.AssetID)
		argPos++
	}

	whereSQL := "WHERE " + strings.Join(whereClauses, " AND ")

	query := fmt.Sprintf(`SELECT %s FROM listings %s ORDER BY id LIMIT $%d OFFSET $%d`,
		listingColumns, whereSQL, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM listings %s", whereSQL)
	countArgs := args[:len(args)-2]

	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *postgresMarketRepository) CancelListing(ctx context.Context, id int64, seller string) (Listing, error) {
	query := `UPDATE listings SET is_active = false, updated_at = NOW()
	          WHERE id = $1 AND seller_principal = $2 AND is_active
	          RETURNING ` + listingColumns

	l, err := scanListing(r.pool.QueryRow(ctx, query, id, seller))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, r.cancelGuardError(ctx, id, seller)
		}
		return Listing{}, err
	}
	return l, nil
}

// DeactivateListing is the corrective variant used when a stale listing is
// detected mid-purchase. No seller check: the marketplace itself retires
// the listing.
func (r *postgresMarketRepository) DeactivateListing(ctx context.Context, id int64) (Listing, error) {
	query := `UPDATE listings SET is_active = false, updated_at = NOW()
	          WHERE id = $1 AND is_active
	          RETURNING ` + listingColumns

	l, err := scanListing(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetListingByID(ctx, id); errors.Is(getErr, ErrListingNotFound) {
				return Listing{}, ErrListingNotFound
			}
			return Listing{}, ErrListingNotActive
		}
		return Listing{}, err
	}
	return l, nil
}

func (r *postgresMarketRepository) UpdateListingPrice(ctx context.Context, id int64, seller string, price int64) (Listing, error) {
	query := `UPDATE listings SET price = $3, updated_at = NOW()
	          WHERE id = $1 AND seller_principal = $2 AND is_active
	          RETURNING ` + listingColumns

	l, err := scanListing(r.pool.QueryRow(ctx, query, id, seller, price))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, r.cancelGuardError(ctx, id, seller)
		}
		return Listing{}, err
	}
	return l, nil
}

// RecordTransaction deactivates the listing and writes the completed
// transaction in one database transaction, so a crash can never leave an
// active listing with a matching completed sale. Retrying after the listing
// is already inactive returns the existing transaction for the same buyer
// instead of duplicating it.
func (r *postgresMarketRepository) RecordTransaction(ctx context.Context, listingID int64, buyer string) (Transaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, listingID)
	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrListingNotFound
		}
		return Transaction{}, err
	}

	if !l.IsActive {
		// Idempotent retry path: the earlier attempt may already have
		// committed for this buyer.
		existing, lookupErr := scanTransaction(tx.QueryRow(ctx,
			`SELECT `+transactionColumns+` FROM transactions
			 WHERE listing_id = $1 AND buyer_principal = $2 AND status = 'completed'`,
			listingID, buyer))
		if lookupErr == nil {
			return existing, tx.Commit(ctx)
		}
		return Transaction{}, ErrListingNotActive
	}

	if _, err := tx.Exec(ctx,
		`UPDATE listings SET is_active = false, updated_at = NOW() WHERE id = $1`, listingID); err != nil {
		return Transaction{}, err
	}

	created, err := scanTransaction(tx.QueryRow(ctx,
		`INSERT INTO transactions (asset_id, listing_id, seller_principal, buyer_principal, price, status, transaction_time)
		 VALUES ($1, $2, $3, $4, $5, 'completed', NOW())
		 RETURNING `+transactionColumns,
		l.AssetID, listingID, l.Seller, buyer, l.Price))
	if err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return created, nil
}

// RecordFailedAttempt writes a failed transaction row for a purchase that
// was rejected after reaching the asset store (stale listing). Price and
// seller are snapshotted from the listing as it stood.
func (r *postgresMarketRepository) RecordFailedAttempt(ctx context.Context, listingID int64, buyer string) (Transaction, error) {
	l, err := r.GetListingByID(ctx, listingID)
	if err != nil {
		return Transaction{}, err
	}

	t, err := scanTransaction(r.pool.QueryRow(ctx,
		`INSERT INTO transactions (asset_id, listing_id, seller_principal, buyer_principal, price, status, transaction_time)
		 VALUES ($1, $2, $3, $4, $5, 'failed', NOW())
		 RETURNING `+transactionColumns,
		l.AssetID, listingID, l.Seller, buyer, l.Price))
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (r *postgresMarketRepository) ListTransactionsByUser(ctx context.Context, principal string, limit, offset int) ([]Transaction, int64, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
	          WHERE buyer_principal = $1 OR seller_principal = $1
	          ORDER BY id DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, principal, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	countRow := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE buyer_principal = $1 OR seller_principal = $1`, principal)
	if err := countRow.Scan(&total); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *postgresMarketRepository) GetStats(ctx context.Context) (MarketStats, error) {
	var stats MarketStats
	row := r.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM listings WHERE is_active),
		(SELECT COUNT(*) FROM transactions WHERE status = 'completed'),
		(SELECT COALESCE(SUM(price), 0) FROM transactions WHERE status = 'completed')`)
	if err := row.Scan(&stats.ActiveListings, &stats.CompletedTransactions, &stats.TotalVolume); err != nil {
		return MarketStats{}, err
	}
	return stats, nil
}

// cancelGuardError distinguishes the reasons a guarded listing update
// matched no rows.
func (r *postgresMarketRepository) cancelGuardError(ctx context.Context, id int64, seller string) error {
	l, err := r.GetListingByID(ctx, id)
	if err != nil {
		return err
	}
	if l.Seller != seller {
		return ErrNotSeller
	}
	return ErrListingNotActive
}
