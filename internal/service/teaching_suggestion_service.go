package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/eduguide-api/internal/dto"
	"github.com/noah-isme/eduguide-api/internal/models"
	"github.com/noah-isme/eduguide-api/internal/progress"
	"github.com/noah-isme/eduguide-api/internal/repository"
	"github.com/noah-isme/eduguide-api/pkg/ai"
)

const (
	aiStatusCacheKey       = "ai:status"
	promptReflectionLimit  = 3
	promptDateLayout       = "2006-01-02"
	statusAvailableMessage = "AI suggestion service is available and configured correctly"
)

// SuggestionInput is the student snapshot a prompt is built from.
type SuggestionInput struct {
	Name           string
	LiteracyScores []models.LiteracyScore
	SEL            models.SELScores
	Reflections    []models.Reflection
}

// TeachingSuggestionService asks the completion service for teaching strategies.
type TeachingSuggestionService interface {
	Suggest(ctx context.Context, payload dto.SuggestionRequest) (dto.SuggestionResponse, error)
	SuggestForStudent(ctx context.Context, teacherID, studentID uint) (dto.SuggestionResponse, error)
	Status(ctx context.Context) (dto.AIStatusResponse, error)
}

type teachingSuggestionService struct {
	completer ai.Completer
	students  repository.StudentRepository
	cache     *redis.Client
	statusTTL time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewTeachingSuggestionService constructs the suggestion gateway.
func NewTeachingSuggestionService(completer ai.Completer, students repository.StudentRepository, cache *redis.Client, statusTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) TeachingSuggestionService {
	if statusTTL <= 0 {
		statusTTL = time.Minute
	}
	return &teachingSuggestionService{
		completer: completer,
		students:  students,
		cache:     cache,
		statusTTL: statusTTL,
		validator: validate,
		logger:    logger.With().Str("component", "teaching_suggestion_service").Logger(),
	}
}

func (s *teachingSuggestionService) Suggest(ctx context.Context, payload dto.SuggestionRequest) (dto.SuggestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SuggestionResponse{}, err
	}

	input := SuggestionInput{
		Name: strings.TrimSpace(payload.Name),
		SEL: models.SELScores{
			Empathy:     payload.SELScores.Empathy,
			Regulation:  payload.SELScores.Regulation,
			Cooperation: payload.SELScores.Cooperation,
		},
	}
	for _, score := range payload.LiteracyScores {
		input.LiteracyScores = append(input.LiteracyScores, models.LiteracyScore{Score: score.Score, Date: score.Date})
	}
	for _, reflection := range payload.Reflections {
		input.Reflections = append(input.Reflections, models.Reflection{Note: reflection.Note, Date: reflection.Date})
	}

	return s.complete(ctx, input)
}

func (s *teachingSuggestionService) SuggestForStudent(ctx context.Context, teacherID, studentID uint) (dto.SuggestionResponse, error) {
	student, err := s.students.GetForTeacher(ctx, studentID, teacherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SuggestionResponse{}, ErrStudentNotFound
		}
		return dto.SuggestionResponse{}, err
	}

	return s.complete(ctx, SuggestionInput{
		Name:           student.Name,
		LiteracyScores: student.LiteracyScores,
		SEL:            student.SEL,
		Reflections:    student.Reflections,
	})
}

func (s *teachingSuggestionService) complete(ctx context.Context, input SuggestionInput) (dto.SuggestionResponse, error) {
	text, err := s.completer.Complete(ctx, BuildSuggestionPrompt(input))
	if err != nil {
		s.logger.Warn().Err(err).Str("student", input.Name).Msg("teaching suggestion failed")
		return dto.SuggestionResponse{}, err
	}
	return dto.SuggestionResponse{Suggestion: text}, nil
}

// Status checks the completion service and caches the verdict briefly.
func (s *teachingSuggestionService) Status(ctx context.Context) (dto.AIStatusResponse, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, aiStatusCacheKey).Result(); err == nil {
			var status dto.AIStatusResponse
			if json.Unmarshal([]byte(cached), &status) == nil {
				return status, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read ai status cache")
		}
	}

	status := dto.AIStatusResponse{Available: true, Message: statusAvailableMessage}
	if err := s.completer.Probe(ctx); err != nil {
		status = dto.AIStatusResponse{Available: false, Message: statusMessage(err)}
		s.logger.Info().Err(err).Msg("ai status check reported unavailable")
	}

	if s.cache != nil {
		if payload, err := json.Marshal(status); err == nil {
			if err := s.cache.Set(ctx, aiStatusCacheKey, payload, s.statusTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store ai status cache")
			}
		}
	}

	return status, nil
}

func statusMessage(err error) string {
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		return "AI suggestion service key not configured"
	case errors.Is(err, ai.ErrInvalidCredential):
		return "AI suggestion service key is invalid or expired"
	case errors.Is(err, ai.ErrQuotaExceeded):
		return "AI suggestion service quota exceeded"
	case errors.Is(err, ai.ErrCompletionTimeout):
		return "AI suggestion service did not respond in time"
	default:
		return "AI suggestion service is unreachable"
	}
}

// BuildSuggestionPrompt renders the deterministic prompt for a student snapshot.
func BuildSuggestionPrompt(input SuggestionInput) string {
	parts := []string{fmt.Sprintf("I need personalized teaching strategies for a student named %s.", input.Name)}

	if len(input.LiteracyScores) > 0 {
		sorted := progress.Chronological(input.LiteracyScores)
		earliest := sorted[0]
		latest := sorted[len(sorted)-1]
		average := progress.LiteracyAverage(sorted)

		parts = append(parts, fmt.Sprintf(`
Literacy Assessment:
- Average score: %.1f out of 100
- Latest score: %s (%s)
- Trend: %s (%s → %s)
- Total assessments: %d`,
			progress.Round1(average.Value),
			formatScore(latest.Score), latest.Date.UTC().Format(promptDateLayout),
			progress.Trend(sorted), formatScore(earliest.Score), formatScore(latest.Score),
			len(input.LiteracyScores)))
	} else {
		parts = append(parts, "No literacy assessment data is available for this student yet.")
	}

	if !input.SEL.IsEmpty() {
		parts = append(parts, fmt.Sprintf(`
Social-Emotional Learning (SEL) Competencies (rated 1-5):
- Empathy: %s
- Self-Regulation: %s
- Cooperation: %s`,
			formatRating(input.SEL.Empathy), formatRating(input.SEL.Regulation), formatRating(input.SEL.Cooperation)))
	} else {
		parts = append(parts, "No SEL assessment data is available for this student yet.")
	}

	if recent := progress.RecentReflections(input.Reflections, promptReflectionLimit); len(recent) > 0 {
		lines := make([]string, 0, len(recent))
		for _, reflection := range recent {
			lines = append(lines, fmt.Sprintf("- %s: \"%s\"", reflection.Date.UTC().Format(promptDateLayout), reflection.Note))
		}
		parts = append(parts, "\nRecent Teacher Observations:\n"+strings.Join(lines, "\n"))
	}

	parts = append(parts, `
Based on this information, please provide:
1. 2-3 specific teaching strategies to support this student's literacy development (2-3 sentences each)
2. 1-2 approaches to strengthen their SEL skills, particularly focusing on any areas scoring below 3 (2-3 sentences each)
3. One focused learning activity that would engage this student based on their profile (3-4 sentences)
4. One brief suggestion for ongoing assessment to track their progress (2-3 sentences)

Keep your response concise and actionable. Use clear section headings and bullet points. Use simple formatting and avoid complex structures. Total response should be under 300 words.`)

	return strings.Join(parts, "\n")
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func formatRating(value *int) string {
	if value == nil {
		return "Not assessed"
	}
	return strconv.Itoa(*value)
}
