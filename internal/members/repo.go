package members

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sobacalgary/backoffice/pkg/db/models"
	"github.com/sobacalgary/backoffice/pkg/pagination"
)

// Repository exposes member persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx inserts an unpaid member row inside the caller's transaction.
func (r *Repository) CreateTx(tx *gorm.DB, member *models.Member) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(member).Error
}

// FindByID loads a member by primary key.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// FindByIDWithTx loads a member inside the caller's transaction.
func (r *Repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Member, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var member models.Member
	if err := tx.Where("id = ?", id).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// FindByEmail loads a member by email address, case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).
		Where("LOWER(email_address) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// MarkPaidTx flips an unpaid member to paid and active in one conditional
// update. Returns the number of rows changed: 1 means this call performed
// the transition, 0 means the member was missing or already paid.
func (r *Repository) MarkPaidTx(tx *gorm.DB, id uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, errors.New("transaction required")
	}
	result := tx.Model(&models.Member{}).
		Where("id = ? AND is_paid = ?", id, false).
		Updates(map[string]any{
			"is_paid":   true,
			"is_active": true,
		})
	return result.RowsAffected, result.Error
}

// UpdateLastLogin stamps a successful authentication.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

// UpdateProfile applies the member-editable fields.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// SetActive flips the admin-managed active flag.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result := r.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListFilter narrows admin member listings.
type ListFilter struct {
	IsPaid *bool
	Search string
}

// List returns a page of members ordered by (created_at, id) descending.
func (r *Repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Member, error) {
	q := r.db.WithContext(ctx).Model(&models.Member{})
	if filter.IsPaid != nil {
		q = q.Where("is_paid = ?", *filter.IsPaid)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(full_name) LIKE ? OR LOWER(email_address) LIKE ?", like, like)
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Member
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CountByRole reports how many members hold the given role.
func (r *Repository) CountByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Member{}).
		Where("role = ?", role).
		Count(&count).Error
	return count, err
}
