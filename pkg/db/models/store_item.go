package models

import (
	"time"

	"github.com/google/uuid"
)

// StoreItem is a catalog entry managed by admins. The checkout flow only
// touches stock via a conditional decrement.
type StoreItem struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string    `gorm:"column:name;not null"`
	Description   string    `gorm:"column:description;not null;default:''"`
	PriceCents    int64     `gorm:"column:price_cents;not null"`
	Category      string    `gorm:"column:category;not null"`
	ImageURL      *string   `gorm:"column:image_url"`
	InStock       bool      `gorm:"column:in_stock;not null;default:true"`
	StockQuantity int       `gorm:"column:stock_quantity;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
