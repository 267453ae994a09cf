package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/eduguide-api/internal/models"
)

// StudentRepository provides access to student records and their history.
type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetForTeacher(ctx context.Context, id, teacherID uint) (models.Student, error)
	ListByTeacher(ctx context.Context, teacherID uint) ([]models.Student, error)
	AppendReflection(ctx context.Context, studentID uint, reflection *models.Reflection) error
	AppendLiteracyScore(ctx context.Context, studentID uint, score *models.LiteracyScore) error
	UpdateSEL(ctx context.Context, studentID uint, sel models.SELScores) error
	Count(ctx context.Context) (int64, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Create(student).Error
}

func (r *studentRepository) GetForTeacher(ctx context.Context, id, teacherID uint) (models.Student, error) {
	var student models.Student
	err := withHistory(r.db.WithContext(ctx)).
		Where("id = ? AND teacher_id = ?", id, teacherID).
		First(&student).Error
	if err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) ListByTeacher(ctx context.Context, teacherID uint) ([]models.Student, error) {
	var students []models.Student
	err := withHistory(r.db.WithContext(ctx)).
		Where("teacher_id = ?", teacherID).
		Order("name ASC").
		Find(&students).Error
	if err != nil {
		return nil, err
	}
	return students, nil
}

func (r *studentRepository) AppendReflection(ctx context.Context, studentID uint, reflection *models.Reflection) error {
	reflection.StudentID = studentID
	return r.db.WithContext(ctx).Create(reflection).Error
}

func (r *studentRepository) AppendLiteracyScore(ctx context.Context, studentID uint, score *models.LiteracyScore) error {
	score.StudentID = studentID
	return r.db.WithContext(ctx).Create(score).Error
}

func (r *studentRepository) UpdateSEL(ctx context.Context, studentID uint, sel models.SELScores) error {
	result := r.db.WithContext(ctx).Model(&models.Student{}).
		Where("id = ?", studentID).
		Updates(map[string]interface{}{
			"sel_empathy":     sel.Empathy,
			"sel_regulation":  sel.Regulation,
			"sel_cooperation": sel.Cooperation,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *studentRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Student{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// withHistory preloads literacy scores and reflections in insertion order.
func withHistory(db *gorm.DB) *gorm.DB {
	return db.
		Preload("LiteracyScores", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("literacy_scores.id ASC")
		}).
		Preload("Reflections", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("reflections.id ASC")
		})
}
