package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sobacalgary/backoffice/pkg/enums"
)

// StoreOrder is a shop purchase awaiting or past payment confirmation.
type StoreOrder struct {
	ID              uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerName    string              `gorm:"column:customer_name;not null"`
	CustomerEmail   string              `gorm:"column:customer_email;not null"`
	CustomerPhone   *string             `gorm:"column:customer_phone"`
	ShippingAddress string              `gorm:"column:shipping_address;not null"`
	TotalCents      int64               `gorm:"column:total_cents;not null"`
	Status          enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:text;not null;default:'card'"`
	Items           []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderLineItem snapshots a store item's name and price at purchase time.
type OrderLineItem struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	StoreItemID    uuid.UUID `gorm:"column:store_item_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	TotalCents     int64     `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
