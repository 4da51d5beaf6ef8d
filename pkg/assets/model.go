package assets

import "time"

type Asset struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Owner       string    `json:"owner"`
	FileHash    string    `json:"file_hash"`
	FileType    string    `json:"file_type"`
	FileSize    int64     `json:"file_size"`
	Price       int64     `json:"price"` // smallest currency unit
	IsForSale   bool      `json:"is_for_sale"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	PreviewURL  string    `json:"preview_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AssetList struct {
	Items []Asset `json:"items"`
	Total int64   `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}

type AssetStats struct {
	TotalAssets int64 `json:"total_assets"`
	ForSale     int64 `json:"for_sale"`
}
