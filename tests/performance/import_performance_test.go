package performance_test

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/eduguide-api/internal/database"
	"github.com/noah-isme/eduguide-api/internal/handler"
	"github.com/noah-isme/eduguide-api/internal/models"
	"github.com/noah-isme/eduguide-api/internal/repository"
	"github.com/noah-isme/eduguide-api/internal/service"
)

func setupPerformanceDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:perf_%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestRosterImportThousandRows(t *testing.T) {
	if testing.Short() {
		t.Skip("performance test skipped in short mode")
	}

	db := setupPerformanceDB(t)
	teachers := []string{"a@school.test", "b@school.test", "c@school.test"}
	for i, email := range teachers {
		require.NoError(t, db.Create(&models.User{Name: fmt.Sprintf("Teacher %d", i), Email: email, PasswordHash: "hash", Role: models.RoleTeacher}).Error)
	}

	var builder strings.Builder
	builder.WriteString("name,age,class,teacherEmail,empathy,regulation,cooperation\n")
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&builder, "Student %04d,%d,%dA,%s,%d,%d,%d\n", i, 5+i%14, 1+i%6, teachers[i%len(teachers)], 1+i%5, 1+(i+1)%5, 1+(i+2)%5)
	}

	path := filepath.Join(t.TempDir(), "roster.csv")
	require.NoError(t, os.WriteFile(path, []byte(builder.String()), 0o600))

	logger := zerolog.Nop()
	svc := service.NewRosterImportService(
		repository.NewUserRepository(db),
		repository.NewStudentRepository(db),
		repository.NewUploadRepository(db),
		service.NewRosterSummaryCache(nil, 0, logger),
		nil, nil, logger,
	)

	start := time.Now()
	result, err := svc.Import(context.Background(), service.ImportRequest{FilePath: path, FileName: "roster.csv", UploadedBy: 1})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, 1000, result.Count)
	require.Equal(t, models.UploadStatusCompleted, result.Status)
	require.Less(t, elapsed, 20*time.Second)
}

func TestRosterSummaryP95LatencyBelow250ms(t *testing.T) {
	db := setupPerformanceDB(t)

	teacher := models.User{Name: "Ms Rivera", Email: "rivera@school.test", PasswordHash: "hash", Role: models.RoleTeacher}
	require.NoError(t, db.Create(&teacher).Error)
	for i := 0; i < 60; i++ {
		student := models.Student{
			TeacherID:      teacher.ID,
			Name:           fmt.Sprintf("Student %d", i),
			Class:          fmt.Sprintf("%dB", i%4),
			LiteracyScores: []models.LiteracyScore{{Score: float64(50 + i%50)}, {Score: float64(60 + i%40)}},
			Reflections:    []models.Reflection{{Note: "Steady progress"}},
		}
		require.NoError(t, db.Create(&student).Error)
	}

	logger := zerolog.Nop()
	studentService := service.NewStudentService(
		repository.NewStudentRepository(db),
		service.NewRosterSummaryCache(nil, 0, logger),
		validator.New(validator.WithRequiredStructEnabled()),
		logger,
	)

	app := fiber.New()
	handler.NewStudentHandler(studentService, logger).Register(app.Group("/api/students", func(c *fiber.Ctx) error {
		c.Locals("user_id", teacher.ID)
		c.Locals("user_role", models.RoleTeacher)
		return c.Next()
	}))

	runs := 40
	durations := make([]time.Duration, 0, runs)

	for i := 0; i < runs; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/students/summary", nil)
		start := time.Now()
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	index := int(math.Ceil(0.95*float64(len(durations)))) - 1
	if index < 0 {
		index = 0
	}
	p95 := durations[index]

	require.LessOrEqual(t, p95, 250*time.Millisecond)
}
