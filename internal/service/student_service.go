package service

import (
	"context"
	"errors"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/eduguide-api/internal/dto"
	"github.com/noah-isme/eduguide-api/internal/models"
	"github.com/noah-isme/eduguide-api/internal/progress"
	"github.com/noah-isme/eduguide-api/internal/repository"
)

var (
	// ErrStudentNotFound indicates the student does not exist or belongs to another teacher.
	ErrStudentNotFound = errors.New("student not found")
	// ErrEmptyContent indicates a text field was blank after sanitising.
	ErrEmptyContent = errors.New("content must not be empty")
)

// StudentService exposes the teacher-scoped student operations.
type StudentService interface {
	List(ctx context.Context, teacherID uint) ([]dto.StudentResponse, error)
	Create(ctx context.Context, teacherID uint, payload dto.StudentCreateRequest) (dto.StudentResponse, error)
	Get(ctx context.Context, teacherID, studentID uint) (dto.StudentResponse, error)
	AddReflection(ctx context.Context, teacherID, studentID uint, payload dto.ReflectionCreateRequest) (dto.StudentResponse, error)
	AddLiteracyScore(ctx context.Context, teacherID, studentID uint, payload dto.LiteracyScoreInput) (dto.StudentResponse, error)
	UpdateSEL(ctx context.Context, teacherID, studentID uint, payload dto.SELScoresInput) (dto.StudentResponse, error)
	Summary(ctx context.Context, teacherID uint) (dto.RosterSummaryResponse, error)
}

type studentService struct {
	repo      repository.StudentRepository
	cache     *RosterSummaryCache
	validator *validator.Validate
	policy    *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(repo repository.StudentRepository, cache *RosterSummaryCache, validate *validator.Validate, logger zerolog.Logger) StudentService {
	return &studentService{
		repo:      repo,
		cache:     cache,
		validator: validate,
		policy:    bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "student_service").Logger(),
		now:       time.Now,
	}
}

func (s *studentService) List(ctx context.Context, teacherID uint) ([]dto.StudentResponse, error) {
	students, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	responses := make([]dto.StudentResponse, 0, len(students))
	for _, student := range students {
		responses = append(responses, dto.NewStudentResponse(student, now))
	}
	return responses, nil
}

func (s *studentService) Create(ctx context.Context, teacherID uint, payload dto.StudentCreateRequest) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	name := s.sanitize(payload.Name)
	if name == "" {
		return dto.StudentResponse{}, ErrEmptyContent
	}

	class := s.sanitize(payload.Class)
	if class == "" {
		class = models.DefaultClass
	}

	student := models.Student{
		TeacherID: teacherID,
		Name:      name,
		Age:       payload.Age,
		Class:     class,
	}
	if payload.SELScores != nil {
		student.SEL = models.SELScores{
			Empathy:     payload.SELScores.Empathy,
			Regulation:  payload.SELScores.Regulation,
			Cooperation: payload.SELScores.Cooperation,
		}
	}
	for _, score := range payload.LiteracyScores {
		entry := models.LiteracyScore{Score: *score.Score}
		if score.Date != nil {
			entry.Date = score.Date.UTC()
		}
		student.LiteracyScores = append(student.LiteracyScores, entry)
	}

	if err := s.repo.Create(ctx, &student); err != nil {
		return dto.StudentResponse{}, err
	}

	s.cache.Invalidate(ctx, teacherID)
	s.logger.Info().Uint("student_id", student.ID).Uint("teacher_id", teacherID).Msg("student created")

	return s.Get(ctx, teacherID, student.ID)
}

func (s *studentService) Get(ctx context.Context, teacherID, studentID uint) (dto.StudentResponse, error) {
	student, err := s.load(ctx, teacherID, studentID)
	if err != nil {
		return dto.StudentResponse{}, err
	}
	return dto.NewStudentResponse(student, s.now()), nil
}

func (s *studentService) AddReflection(ctx context.Context, teacherID, studentID uint, payload dto.ReflectionCreateRequest) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	note := s.sanitize(payload.Note)
	if note == "" {
		return dto.StudentResponse{}, ErrEmptyContent
	}

	if _, err := s.load(ctx, teacherID, studentID); err != nil {
		return dto.StudentResponse{}, err
	}

	reflection := models.Reflection{Note: note}
	if payload.Date != nil {
		reflection.Date = payload.Date.UTC()
	}
	if err := s.repo.AppendReflection(ctx, studentID, &reflection); err != nil {
		return dto.StudentResponse{}, err
	}

	s.cache.Invalidate(ctx, teacherID)
	return s.Get(ctx, teacherID, studentID)
}

func (s *studentService) AddLiteracyScore(ctx context.Context, teacherID, studentID uint, payload dto.LiteracyScoreInput) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	if _, err := s.load(ctx, teacherID, studentID); err != nil {
		return dto.StudentResponse{}, err
	}

	score := models.LiteracyScore{Score: *payload.Score}
	if payload.Date != nil {
		score.Date = payload.Date.UTC()
	}
	if err := s.repo.AppendLiteracyScore(ctx, studentID, &score); err != nil {
		return dto.StudentResponse{}, err
	}

	s.cache.Invalidate(ctx, teacherID)
	return s.Get(ctx, teacherID, studentID)
}

// UpdateSEL merges the supplied ratings into the stored triple; omitted ratings are kept.
func (s *studentService) UpdateSEL(ctx context.Context, teacherID, studentID uint, payload dto.SELScoresInput) (dto.StudentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.StudentResponse{}, err
	}

	student, err := s.load(ctx, teacherID, studentID)
	if err != nil {
		return dto.StudentResponse{}, err
	}

	sel := student.SEL
	if payload.Empathy != nil {
		sel.Empathy = payload.Empathy
	}
	if payload.Regulation != nil {
		sel.Regulation = payload.Regulation
	}
	if payload.Cooperation != nil {
		sel.Cooperation = payload.Cooperation
	}

	if err := s.repo.UpdateSEL(ctx, studentID, sel); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResponse{}, ErrStudentNotFound
		}
		return dto.StudentResponse{}, err
	}

	s.cache.Invalidate(ctx, teacherID)
	return s.Get(ctx, teacherID, studentID)
}

func (s *studentService) Summary(ctx context.Context, teacherID uint) (dto.RosterSummaryResponse, error) {
	generation := s.cache.generation(ctx, teacherID)
	if cached, ok := s.cache.get(ctx, teacherID, generation); ok {
		cached.CacheHit = true
		s.logger.Debug().Uint("teacher_id", teacherID).Msg("roster summary cache hit")
		return cached, nil
	}

	students, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return dto.RosterSummaryResponse{}, err
	}

	summary := buildRosterSummary(students, s.now())
	s.cache.set(ctx, teacherID, generation, summary)

	return summary, nil
}

func (s *studentService) load(ctx context.Context, teacherID, studentID uint) (models.Student, error) {
	student, err := s.repo.GetForTeacher(ctx, studentID, teacherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, ErrStudentNotFound
		}
		return models.Student{}, err
	}
	return student, nil
}

func (s *studentService) sanitize(value string) string {
	return plainText(s.policy, value)
}

// plainText strips markup and undoes the entity escaping the policy applies to the text it keeps.
func plainText(policy *bluemonday.Policy, value string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(strings.TrimSpace(value))))
}

func buildRosterSummary(students []models.Student, now time.Time) dto.RosterSummaryResponse {
	summary := dto.RosterSummaryResponse{
		TotalStudents:     len(students),
		ClassDistribution: make(map[string]int),
		NeedsAttention:    make([]dto.AttentionItem, 0),
		GeneratedAt:       now.UTC(),
	}

	var allScores []models.LiteracyScore
	for _, student := range students {
		summary.TotalReflections += len(student.Reflections)
		allScores = append(allScores, student.LiteracyScores...)

		class := student.Class
		if class == "" {
			class = models.DefaultClass
		}
		summary.ClassDistribution[class]++

		if reasons := progress.NeedsAttention(student, now); len(reasons) > 0 {
			summary.NeedsAttention = append(summary.NeedsAttention, dto.AttentionItem{
				StudentID: student.ID,
				Name:      student.Name,
				Reasons:   reasons,
			})
		}
	}

	summary.AverageLiteracy = progress.LiteracyAverage(allScores).Ptr()

	sort.SliceStable(summary.NeedsAttention, func(i, j int) bool {
		return len(summary.NeedsAttention[i].Reasons) > len(summary.NeedsAttention[j].Reasons)
	})

	return summary
}
