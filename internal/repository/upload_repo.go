package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/eduguide-api/internal/models"
)

// UploadFilter narrows the upload history listing.
type UploadFilter struct {
	UploadedBy *uint
	Page       int
	PageSize   int
}

// UploadRepository persists CSV import audit records.
type UploadRepository interface {
	Create(ctx context.Context, upload *models.Upload) error
	UpdateStatus(ctx context.Context, id uint, status string) error
	Finalize(ctx context.Context, upload *models.Upload) error
	GetByID(ctx context.Context, id uint) (models.Upload, error)
	List(ctx context.Context, filter UploadFilter) ([]models.Upload, int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository constructs a repository for upload audit records.
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

func (r *uploadRepository) Create(ctx context.Context, upload *models.Upload) error {
	return r.db.WithContext(ctx).Create(upload).Error
}

func (r *uploadRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	result := r.db.WithContext(ctx).Model(&models.Upload{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Finalize writes the terminal counters and status of an import.
func (r *uploadRepository) Finalize(ctx context.Context, upload *models.Upload) error {
	result := r.db.WithContext(ctx).Model(upload).
		Select("records_processed", "students_added", "has_errors", "status", "failure_reason", "row_errors", "archive_url", "completed_at").
		Updates(upload)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *uploadRepository) GetByID(ctx context.Context, id uint) (models.Upload, error) {
	var upload models.Upload
	if err := r.db.WithContext(ctx).First(&upload, id).Error; err != nil {
		return models.Upload{}, err
	}
	return upload, nil
}

func (r *uploadRepository) List(ctx context.Context, filter UploadFilter) ([]models.Upload, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Upload{})
	if filter.UploadedBy != nil {
		query = query.Where("uploaded_by = ?", *filter.UploadedBy)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC").Order("id DESC")
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Limit(filter.PageSize).Offset((page - 1) * filter.PageSize)
	}

	var uploads []models.Upload
	if err := query.Find(&uploads).Error; err != nil {
		return nil, 0, err
	}

	return uploads, total, nil
}

func (r *uploadRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Upload{}).
		Where("created_at >= ?", since).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
