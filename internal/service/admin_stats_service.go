package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/eduguide-api/internal/dto"
	"github.com/noah-isme/eduguide-api/internal/models"
	"github.com/noah-isme/eduguide-api/internal/repository"
)

const recentUploadWindow = 7 * 24 * time.Hour

// AdminStatsService aggregates the administrator dashboard counters.
type AdminStatsService interface {
	Stats(ctx context.Context) (dto.AdminStatsResponse, error)
}

type adminStatsService struct {
	users    repository.UserRepository
	students repository.StudentRepository
	uploads  repository.UploadRepository
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAdminStatsService constructs the dashboard aggregator.
func NewAdminStatsService(users repository.UserRepository, students repository.StudentRepository, uploads repository.UploadRepository, logger zerolog.Logger) AdminStatsService {
	return &adminStatsService{
		users:    users,
		students: students,
		uploads:  uploads,
		logger:   logger.With().Str("component", "admin_stats_service").Logger(),
		now:      time.Now,
	}
}

func (s *adminStatsService) Stats(ctx context.Context) (dto.AdminStatsResponse, error) {
	teachers, err := s.users.CountByRole(ctx, models.RoleTeacher)
	if err != nil {
		return dto.AdminStatsResponse{}, err
	}

	students, err := s.students.Count(ctx)
	if err != nil {
		return dto.AdminStatsResponse{}, err
	}

	recent, err := s.uploads.CountSince(ctx, s.now().Add(-recentUploadWindow))
	if err != nil {
		return dto.AdminStatsResponse{}, err
	}

	return dto.AdminStatsResponse{
		TeacherCount:  teachers,
		StudentCount:  students,
		RecentUploads: recent,
	}, nil
}
