package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/eduguide-api/internal/dto"
	"github.com/noah-isme/eduguide-api/internal/models"
	"github.com/noah-isme/eduguide-api/internal/repository"
)

func setupUserService(t *testing.T) (UserService, *gorm.DB) {
	t.Helper()

	db := setupServiceDB(t)
	svc := NewUserService(repository.NewUserRepository(db), newValidator(), zerolog.Nop())
	if concrete, ok := svc.(*userService); ok {
		concrete.cost = bcrypt.MinCost
	}
	return svc, db
}

func TestUserServiceCreateHashesPassword(t *testing.T) {
	svc, db := setupUserService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, dto.UserCreateRequest{
		Name:     " Ms Frizzle ",
		Email:    " Frizzle@School.TEST ",
		Password: "magicbus",
		Role:     "Teacher",
	})
	require.NoError(t, err)
	require.Equal(t, "frizzle@school.test", created.Email)
	require.Equal(t, models.RoleTeacher, created.Role)

	var stored models.User
	require.NoError(t, db.First(&stored, created.ID).Error)
	require.NotEqual(t, "magicbus", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("magicbus")))

	_, err = svc.Create(ctx, dto.UserCreateRequest{Name: "Copy", Email: "FRIZZLE@school.test", Password: "password1", Role: "teacher"})
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Create(ctx, dto.UserCreateRequest{Name: "Short", Email: "short@school.test", Password: "short", Role: "teacher"})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)

	_, err = svc.Create(ctx, dto.UserCreateRequest{Name: "Parent", Email: "parent@school.test", Password: "password1", Role: "parent"})
	require.ErrorAs(t, err, &validationErrs)

	teachers, err := svc.ListTeachers(ctx)
	require.NoError(t, err)
	require.Len(t, teachers, 1)
}

func TestUserServiceEnsureAdminIsIdempotent(t *testing.T) {
	svc, db := setupUserService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "Root", "root@school.test", "supersecret"))
	require.NoError(t, svc.EnsureAdmin(ctx, "Root", "ROOT@school.test", "supersecret"))
	require.NoError(t, svc.EnsureAdmin(ctx, "Root", "", ""))

	var admins int64
	require.NoError(t, db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error)
	require.Equal(t, int64(1), admins)
}

func TestAdminStatsService(t *testing.T) {
	db := setupServiceDB(t)
	teacher := seedUser(t, db, "Ms Frizzle", "teacher@example.com", models.RoleTeacher)
	seedUser(t, db, "Mr Ratburn", "ratburn@example.com", models.RoleTeacher)
	admin := seedUser(t, db, "Principal", "admin@example.com", models.RoleAdmin)

	require.NoError(t, db.Create(&models.Student{TeacherID: teacher.ID, Name: "Ada", Class: "3A"}).Error)

	fixed := time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)
	recent := models.Upload{FileName: "a.csv", UploadedBy: admin.ID, Status: models.UploadStatusCompleted, CreatedAt: fixed.AddDate(0, 0, -2)}
	stale := models.Upload{FileName: "b.csv", UploadedBy: admin.ID, Status: models.UploadStatusCompleted, CreatedAt: fixed.AddDate(0, 0, -30)}
	require.NoError(t, db.Create(&recent).Error)
	require.NoError(t, db.Create(&stale).Error)

	svc := NewAdminStatsService(repository.NewUserRepository(db), repository.NewStudentRepository(db), repository.NewUploadRepository(db), zerolog.Nop())
	if concrete, ok := svc.(*adminStatsService); ok {
		concrete.now = func() time.Time { return fixed }
	}

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.TeacherCount)
	require.Equal(t, int64(1), stats.StudentCount)
	require.Equal(t, int64(1), stats.RecentUploads)
}
