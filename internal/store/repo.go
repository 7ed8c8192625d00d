package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/enums"
	"github.com/sobacalgary/backoffice/pkg/pagination"
)

// Repository exposes catalog and order persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListItems returns catalog items, optionally narrowed to a category or to
// in-stock rows only.
func (r *Repository) ListItems(ctx context.Context, category string, inStockOnly bool) ([]models.StoreItem, error) {
	q := r.db.WithContext(ctx).Model(&models.StoreItem{})
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if inStockOnly {
		q = q.Where("in_stock = ?", true)
	}
	var rows []models.StoreItem
	err := q.Order("name ASC").Find(&rows).Error
	return rows, err
}

// FindItemByID loads a catalog item.
func (r *Repository) FindItemByID(ctx context.Context, id uuid.UUID) (*models.StoreItem, error) {
	var item models.StoreItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemsByIDsTx loads catalog rows for the given ids inside the caller's
// transaction, locking them against concurrent checkouts.
func (r *Repository) FindItemsByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]models.StoreItem, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var rows []models.StoreItem
	err := tx.Clauses(lockForUpdate()).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

func lockForUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

// DecrementStockTx reserves quantity in one conditional update. Returns rows
// changed: 0 means the item was missing or understocked.
func (r *Repository) DecrementStockTx(tx *gorm.DB, itemID uuid.UUID, quantity int) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	result := tx.Model(&models.StoreItem{}).
		Where("id = ? AND stock_quantity >= ?", itemID, quantity).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity - ?", quantity),
			"in_stock":       gorm.Expr("stock_quantity - ? > 0", quantity),
		})
	return result.RowsAffected, result.Error
}

// RestoreStockTx returns reserved quantity to the catalog, used when a
// pending order expires.
func (r *Repository) RestoreStockTx(tx *gorm.DB, itemID uuid.UUID, quantity int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.StoreItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", quantity),
			"in_stock":       true,
		}).Error
}

// CreateItem inserts a catalog item.
func (r *Repository) CreateItem(ctx context.Context, item *models.StoreItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateItem applies admin edits to a catalog item.
func (r *Repository) UpdateItem(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&models.StoreItem{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteItem removes a catalog item.
func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.StoreItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateOrderTx inserts the order and its line items in the caller's
// transaction.
func (r *Repository) CreateOrderTx(tx *gorm.DB, order *models.StoreOrder) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(order).Error
}

// FindOrderByID loads an order with its lines.
func (r *Repository) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.StoreOrder, error) {
	var order models.StoreOrder
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindStalePendingOrders returns pending orders created before the cutoff.
func (r *Repository) FindStalePendingOrders(ctx context.Context, cutoff time.Time, limit int) ([]models.StoreOrder, error) {
	var rows []models.StoreOrder
	err := r.db.WithContext(ctx).Preload("Items").
		Where("status = ? AND created_at < ?", enums.PaymentStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// FindOrderLineItemsTx loads the lines of an order inside the caller's
// transaction.
func (r *Repository) FindOrderLineItemsTx(tx *gorm.DB, orderID uuid.UUID) ([]models.OrderLineItem, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var rows []models.OrderLineItem
	err := tx.Where("order_id = ?", orderID).Find(&rows).Error
	return rows, err
}

// TransitionOrderTx moves a pending order to the target status in one
// conditional update. Returns rows changed: 1 means this call performed the
// transition, 0 means the order was missing or already terminal.
func (r *Repository) TransitionOrderTx(tx *gorm.DB, id uuid.UUID, to enums.PaymentStatus) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	result := tx.Model(&models.StoreOrder{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Update("status", to)
	return result.RowsAffected, result.Error
}

// UpdateOrderStatus sets a status unconditionally, for admin refund marking.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error {
	result := r.db.WithContext(ctx).Model(&models.StoreOrder{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// OrderListFilter narrows admin order listings.
type OrderListFilter struct {
	Status *enums.PaymentStatus
}

// ListOrders returns a page of orders ordered by (created_at, id) descending.
func (r *Repository) ListOrders(ctx context.Context, filter OrderListFilter, cursor *pagination.Cursor, limit int) ([]models.StoreOrder, error) {
	q := r.db.WithContext(ctx).Model(&models.StoreOrder{}).Preload("Items")
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.StoreOrder
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
