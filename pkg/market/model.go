package market

import "time"

type Listing struct {
	ID        int64     `json:"id"`
	AssetID   int64     `json:"asset_id"`
	Seller    string    `json:"seller"`
	Price     int64     `json:"price"` // authoritative for purchase
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

type Transaction struct {
	ID              int64             `json:"id"`
	AssetID         int64             `json:"asset_id"`
	ListingID       int64             `json:"listing_id"`
	Seller          string            `json:"seller"`
	Buyer           string            `json:"buyer"`
	Price           int64             `json:"price"` // snapshot of Listing.Price at execution
	Status          TransactionStatus `json:"status"`
	TransactionTime time.Time         `json:"transaction_time"`
}

type ListingList struct {
	Items []Listing `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

type TransactionList struct {
	Items []Transaction `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

type MarketStats struct {
	ActiveListings        int64 `json:"active_listings"`
	CompletedTransactions int64 `json:"completed_transactions"`
	TotalVolume           int64 `json:"total_volume"`
}
