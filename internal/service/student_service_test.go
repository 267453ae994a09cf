package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduguide-api/internal/dto"
	"github.com/noah-isme/eduguide-api/internal/models"
	"github.com/noah-isme/eduguide-api/internal/progress"
	"github.com/noah-isme/eduguide-api/internal/repository"
)

var fixedNow = time.Date(2024, time.March, 20, 9, 0, 0, 0, time.UTC)

func setupStudentService(t *testing.T) (StudentService, models.User, *redis.Client) {
	t.Helper()

	db := setupServiceDB(t)
	teacher := seedUser(t, db, "Ms Frizzle", "teacher@example.com", models.RoleTeacher)

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRosterSummaryCache(client, time.Minute, zerolog.Nop())
	svc := NewStudentService(repository.NewStudentRepository(db), cache, newValidator(), zerolog.Nop())
	if concrete, ok := svc.(*studentService); ok {
		concrete.now = func() time.Time { return fixedNow }
	}

	return svc, teacher, client
}

func TestStudentServiceCreateAndGet(t *testing.T) {
	svc, teacher, _ := setupStudentService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, teacher.ID, dto.StudentCreateRequest{
		Name: " <b>Ada</b> ",
		Age:  intPtr(9),
		LiteracyScores: []dto.LiteracyScoreInput{
			{Score: floatPtr(60), Date: timePtr(fixedNow.AddDate(0, 0, -10))},
			{Score: floatPtr(75), Date: timePtr(fixedNow.AddDate(0, 0, -1))},
		},
		SELScores: &dto.SELScoresInput{Empathy: intPtr(4)},
	})
	require.NoError(t, err)
	require.Equal(t, "Ada", created.Name)
	require.Equal(t, models.DefaultClass, created.Class)
	require.Len(t, created.LiteracyScores, 2)
	require.Equal(t, progress.TrendImproving, created.LiteracyTrend)
	require.NotNil(t, created.LiteracyAverage)
	require.InDelta(t, 67.5, *created.LiteracyAverage, 0.001)
	require.Equal(t, []string{progress.ReasonNoRecentReflection}, created.NeedsAttention)
	require.Equal(t, 4, *created.SELScores.Empathy)
	require.Nil(t, created.SELScores.Regulation)

	_, err = svc.Get(ctx, teacher.ID+99, created.ID)
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestStudentServiceValidation(t *testing.T) {
	svc, teacher, _ := setupStudentService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, teacher.ID, dto.StudentCreateRequest{Name: "Ada", Age: intPtr(30)})
	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)

	created, err := svc.Create(ctx, teacher.ID, dto.StudentCreateRequest{Name: "Ada"})
	require.NoError(t, err)

	_, err = svc.AddLiteracyScore(ctx, teacher.ID, created.ID, dto.LiteracyScoreInput{Score: floatPtr(101)})
	require.ErrorAs(t, err, &validationErrs)

	_, err = svc.UpdateSEL(ctx, teacher.ID, created.ID, dto.SELScoresInput{Cooperation: intPtr(0)})
	require.ErrorAs(t, err, &validationErrs)

	_, err = svc.AddReflection(ctx, teacher.ID, created.ID, dto.ReflectionCreateRequest{Note: "<script></script>"})
	require.ErrorIs(t, err, ErrEmptyContent)
}

func TestStudentServiceUpdateSELKeepsOmittedRatings(t *testing.T) {
	svc, teacher, _ := setupStudentService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, teacher.ID, dto.StudentCreateRequest{
		Name:      "Ada",
		SELScores: &dto.SELScoresInput{Empathy: intPtr(2), Regulation: intPtr(3)},
	})
	require.NoError(t, err)

	updated, err := svc.UpdateSEL(ctx, teacher.ID, created.ID, dto.SELScoresInput{Regulation: intPtr(5), Cooperation: intPtr(4)})
	require.NoError(t, err)
	require.Equal(t, 2, *updated.SELScores.Empathy)
	require.Equal(t, 5, *updated.SELScores.Regulation)
	require.Equal(t, 4, *updated.SELScores.Cooperation)

	_, err = svc.UpdateSEL(ctx, teacher.ID+1, created.ID, dto.SELScoresInput{Empathy: intPtr(1)})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestStudentServiceHistoryKeepsInsertionOrder(t *testing.T) {
	svc, teacher, _ := setupStudentService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, teacher.ID, dto.StudentCreateRequest{Name: "Ada"})
	require.NoError(t, err)

	_, err = svc.AddReflection(ctx, teacher.ID, created.ID, dto.ReflectionCreateRequest{Note: "first", Date: timePtr(fixedNow)})
	require.NoError(t, err)
	withBackdated, err := svc.AddReflection(ctx, teacher.ID, created.ID, dto.ReflectionCreateRequest{Note: "backdated", Date: timePtr(fixedNow.AddDate(0, -1, 0))})
	require.NoError(t, err)

	require.Len(t, withBackdated.Reflections, 2)
	require.Equal(t, "first", withBackdated.Reflections[0].Note)
	require.Equal(t, "backdated", withBackdated.Reflections[1].Note)
	require.Empty(t, withBackdated.NeedsAttention)

	scored, err := svc.AddLiteracyScore(ctx, teacher.ID, created.ID, dto.LiteracyScoreInput{Score: floatPtr(65), Date: timePtr(fixedNow.AddDate(0, 0, -1))})
	require.NoError(t, err)
	require.Equal(t, []string{progress.ReasonLowLiteracy}, scored.NeedsAttention)
}

func TestStudentServiceSummaryCaching(t *testing.T) {
	svc, teacher, client := setupStudentService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, teacher.ID, dto.StudentCreateRequest{
		Name:           "Ada",
		Class:          "3A",
		LiteracyScores: []dto.LiteracyScoreInput{{Score: floatPtr(80)}, {Score: floatPtr(90)}},
	})
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, teacher.ID)
	require.NoError(t, err)
	require.False(t, summary.CacheHit)
	require.Equal(t, 1, summary.TotalStudents)
	require.InDelta(t, 85.0, *summary.AverageLiteracy, 0.001)
	require.Equal(t, map[string]int{"3A": 1}, summary.ClassDistribution)
	require.Len(t, summary.NeedsAttention, 1)

	generation, err := client.Get(ctx, rosterGenerationKey(teacher.ID)).Int64()
	require.NoError(t, err)
	exists, err := client.Exists(ctx, rosterSummaryKey(teacher.ID, generation)).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), exists)

	cached, err := svc.Summary(ctx, teacher.ID)
	require.NoError(t, err)
	require.True(t, cached.CacheHit)

	_, err = svc.Create(ctx, teacher.ID, dto.StudentCreateRequest{Name: "Bob"})
	require.NoError(t, err)

	refreshed, err := svc.Summary(ctx, teacher.ID)
	require.NoError(t, err)
	require.False(t, refreshed.CacheHit)
	require.Equal(t, 2, refreshed.TotalStudents)
	require.Equal(t, 1, refreshed.ClassDistribution[models.DefaultClass])
}

type invalidatingStudentRepo struct {
	repository.StudentRepository
	cache *RosterSummaryCache
	fired bool
}

// ListByTeacher simulates a mutation committing right after the roster was read.
func (r *invalidatingStudentRepo) ListByTeacher(ctx context.Context, teacherID uint) ([]models.Student, error) {
	students, err := r.StudentRepository.ListByTeacher(ctx, teacherID)
	if !r.fired {
		r.fired = true
		r.cache.Invalidate(ctx, teacherID)
	}
	return students, err
}

func TestStudentServiceSummaryIgnoresResultsOverlappingInvalidation(t *testing.T) {
	db := setupServiceDB(t)
	teacher := seedUser(t, db, "Ms Frizzle", "teacher@example.com", models.RoleTeacher)

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRosterSummaryCache(client, time.Minute, zerolog.Nop())
	repo := &invalidatingStudentRepo{StudentRepository: repository.NewStudentRepository(db), cache: cache}
	svc := NewStudentService(repo, cache, newValidator(), zerolog.Nop())
	ctx := context.Background()

	first, err := svc.Summary(ctx, teacher.ID)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	second, err := svc.Summary(ctx, teacher.ID)
	require.NoError(t, err)
	require.False(t, second.CacheHit)

	third, err := svc.Summary(ctx, teacher.ID)
	require.NoError(t, err)
	require.True(t, third.CacheHit)
}

func TestStudentServiceKeepsPlainTextVerbatim(t *testing.T) {
	svc, teacher, _ := setupStudentService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, teacher.ID, dto.StudentCreateRequest{Name: "Seán O'Brien", Class: "Year 3 & 4"})
	require.NoError(t, err)
	require.Equal(t, "Seán O'Brien", created.Name)
	require.Equal(t, "Year 3 & 4", created.Class)

	note := `Said "I can't read" & reads < 2 pages`
	updated, err := svc.AddReflection(ctx, teacher.ID, created.ID, dto.ReflectionCreateRequest{Note: note})
	require.NoError(t, err)
	require.Equal(t, note, updated.Reflections[0].Note)

	stored, err := svc.Get(ctx, teacher.ID, created.ID)
	require.NoError(t, err)
	require.Equal(t, note, stored.Reflections[0].Note)
	require.Equal(t, "Seán O'Brien", stored.Name)

	tagged, err := svc.AddReflection(ctx, teacher.ID, created.ID, dto.ReflectionCreateRequest{Note: "Read <b>aloud</b> & smiled"})
	require.NoError(t, err)
	require.Equal(t, "Read aloud & smiled", tagged.Reflections[1].Note)
}

func TestStudentServiceSummaryEmptyRoster(t *testing.T) {
	svc, teacher, _ := setupStudentService(t)

	summary, err := svc.Summary(context.Background(), teacher.ID)
	require.NoError(t, err)
	require.Zero(t, summary.TotalStudents)
	require.Nil(t, summary.AverageLiteracy)
	require.Empty(t, summary.NeedsAttention)
}

func timePtr(v time.Time) *time.Time {
	return &v
}
