package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/enums"
)

// OrderLineInput selects a catalog item and quantity. Prices are always
// resolved server side from the catalog, never trusted from the client.
type OrderLineInput struct {
	StoreItemID uuid.UUID `json:"store_item_id" validate:"required"`
	Quantity    int       `json:"quantity" validate:"required,gte=1,lte=100"`
}

// OrderInput is the public store checkout form.
type OrderInput struct {
	CustomerName    string              `json:"customer_name" validate:"required,min=2,max=200"`
	CustomerEmail   string              `json:"customer_email" validate:"required,email"`
	CustomerPhone   *string             `json:"customer_phone,omitempty" validate:"omitempty,min=7,max=30"`
	ShippingAddress string              `json:"shipping_address" validate:"required,min=5,max=500"`
	Items           []OrderLineInput    `json:"items" validate:"required,min=1,max=50,dive"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=card interac"`
}

// CheckoutResponse returns the hosted session the frontend redirects to.
type CheckoutResponse struct {
	OrderID    uuid.UUID `json:"order_id"`
	TotalCents int64     `json:"total_cents"`
	SessionID  string    `json:"session_id"`
	SessionURL string    `json:"session_url"`
}

// VerifyInput identifies the session to verify.
type VerifyInput struct {
	SessionID string `json:"session_id" validate:"required,min=10,max=255"`
}

// VerifyResult reports the order's state after verification.
type VerifyResult struct {
	OrderID        uuid.UUID           `json:"order_id"`
	Status         enums.PaymentStatus `json:"status"`
	NewlyCompleted bool                `json:"newly_completed"`
}

// ItemInput is the admin catalog create/update form.
type ItemInput struct {
	Name          string  `json:"name" validate:"required,min=2,max=200"`
	Description   string  `json:"description" validate:"max=2000"`
	PriceCents    int64   `json:"price_cents" validate:"required,gte=0"`
	Category      string  `json:"category" validate:"required,min=2,max=100"`
	ImageURL      *string `json:"image_url,omitempty" validate:"omitempty,url"`
	StockQuantity int     `json:"stock_quantity" validate:"gte=0"`
}

// ItemDTO is the transport shape for a catalog item.
type ItemDTO struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	PriceCents    int64     `json:"price_cents"`
	Category      string    `json:"category"`
	ImageURL      *string   `json:"image_url,omitempty"`
	InStock       bool      `json:"in_stock"`
	StockQuantity int       `json:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LineItemDTO is the transport shape for an order line.
type LineItemDTO struct {
	ID             uuid.UUID `json:"id"`
	StoreItemID    uuid.UUID `json:"store_item_id"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	TotalCents     int64     `json:"total_cents"`
}

// OrderDTO is the transport shape for a store order.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	CustomerName    string              `json:"customer_name"`
	CustomerEmail   string              `json:"customer_email"`
	CustomerPhone   *string             `json:"customer_phone,omitempty"`
	ShippingAddress string              `json:"shipping_address"`
	TotalCents      int64               `json:"total_cents"`
	Status          enums.PaymentStatus `json:"status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	Items           []LineItemDTO       `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// ItemToDTO maps the persistence model to its transport shape.
func ItemToDTO(item *models.StoreItem) ItemDTO {
	return ItemDTO{
		ID:            item.ID,
		Name:          item.Name,
		Description:   item.Description,
		PriceCents:    item.PriceCents,
		Category:      item.Category,
		ImageURL:      item.ImageURL,
		InStock:       item.InStock,
		StockQuantity: item.StockQuantity,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}
}

// ItemsToDTOs maps a slice of catalog items.
func ItemsToDTOs(rows []models.StoreItem) []ItemDTO {
	out := make([]ItemDTO, 0, len(rows))
	for i := range rows {
		out = append(out, ItemToDTO(&rows[i]))
	}
	return out
}

// OrderToDTO maps an order with its lines.
func OrderToDTO(order *models.StoreOrder) OrderDTO {
	items := make([]LineItemDTO, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, LineItemDTO{
			ID:             line.ID,
			StoreItemID:    line.StoreItemID,
			Name:           line.Name,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			TotalCents:     line.TotalCents,
		})
	}
	return OrderDTO{
		ID:              order.ID,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		CustomerPhone:   order.CustomerPhone,
		ShippingAddress: order.ShippingAddress,
		TotalCents:      order.TotalCents,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		Items:           items,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

// OrdersToDTOs maps a slice of orders.
func OrdersToDTOs(rows []models.StoreOrder) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, OrderToDTO(&rows[i]))
	}
	return out
}
