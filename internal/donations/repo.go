package donations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/enums"
	"github.com/sobacalgary/backoffice/pkg/pagination"
)

// Repository exposes donation persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a pending donation.
func (r *Repository) Create(ctx context.Context, donation *models.Donation) error {
	return r.db.WithContext(ctx).Create(donation).Error
}

// FindByID loads a donation by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Donation, error) {
	var donation models.Donation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&donation).Error
	if err != nil {
		return nil, err
	}
	return &donation, nil
}

// TransitionTx moves a pending donation to the target status in one
// conditional update. Returns rows changed: 1 means this call performed the
// transition, 0 means the donation was missing or already terminal.
func (r *Repository) TransitionTx(tx *gorm.DB, id uuid.UUID, to enums.PaymentStatus) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	result := tx.Model(&models.Donation{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Update("status", to)
	return result.RowsAffected, result.Error
}

// UpdateStatus sets a status unconditionally, for admin refund marking.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Donation{}).
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

// FindStalePending returns pending donations created before the cutoff.
func (r *Repository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Donation, error) {
	var rows []models.Donation
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.PaymentStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListFilter narrows admin donation listings.
type ListFilter struct {
	Status   *enums.PaymentStatus
	Category string
}

// List returns a page of donations ordered by (created_at, id) descending.
func (r *Repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Donation, error) {
	q := r.db.WithContext(ctx).Model(&models.Donation{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Donation
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
