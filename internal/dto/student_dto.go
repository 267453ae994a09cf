package dto

import (
	"time"

	"github.com/noah-isme/eduguide-api/internal/models"
	"github.com/noah-isme/eduguide-api/internal/progress"
)

// SELScoresInput carries optional 1-5 ratings; nil fields are left untouched on update.
type SELScoresInput struct {
	Empathy     *int `json:"empathy" validate:"omitempty,min=1,max=5"`
	Regulation  *int `json:"regulation" validate:"omitempty,min=1,max=5"`
	Cooperation *int `json:"cooperation" validate:"omitempty,min=1,max=5"`
}

// LiteracyScoreInput records one literacy assessment. Date defaults to now.
type LiteracyScoreInput struct {
	Score *float64   `json:"score" validate:"required,gte=0,lte=100"`
	Date  *time.Time `json:"date"`
}

// StudentCreateRequest is the payload teachers use to add a student directly.
type StudentCreateRequest struct {
	Name           string               `json:"name" validate:"required,min=1,max=255"`
	Age            *int                 `json:"age" validate:"omitempty,min=5,max=18"`
	Class          string               `json:"class" validate:"omitempty,max=64"`
	LiteracyScores []LiteracyScoreInput `json:"literacyScores" validate:"omitempty,dive"`
	SELScores      *SELScoresInput      `json:"selScores"`
}

// ReflectionCreateRequest appends a teacher observation.
type ReflectionCreateRequest struct {
	Note string     `json:"note" validate:"required,min=1,max=5000"`
	Date *time.Time `json:"date"`
}

// SELScoresResponse serialises the SEL triple; null means not assessed.
type SELScoresResponse struct {
	Empathy     *int `json:"empathy"`
	Regulation  *int `json:"regulation"`
	Cooperation *int `json:"cooperation"`
}

// LiteracyScoreResponse serialises one literacy assessment.
type LiteracyScoreResponse struct {
	ID    uint      `json:"id"`
	Score float64   `json:"score"`
	Date  time.Time `json:"date"`
}

// ReflectionResponse serialises one reflection.
type ReflectionResponse struct {
	ID   uint      `json:"id"`
	Note string    `json:"note"`
	Date time.Time `json:"date"`
}

// StudentResponse is the teacher-facing view of a student.
type StudentResponse struct {
	ID              uint                    `json:"id"`
	TeacherID       uint                    `json:"teacherId"`
	Name            string                  `json:"name"`
	Age             *int                    `json:"age"`
	Class           string                  `json:"class"`
	SELScores       SELScoresResponse       `json:"selScores"`
	LiteracyScores  []LiteracyScoreResponse `json:"literacyScores"`
	Reflections     []ReflectionResponse    `json:"reflections"`
	LiteracyAverage *float64                `json:"literacyAverage"`
	LiteracyTrend   string                  `json:"literacyTrend,omitempty"`
	NeedsAttention  []string                `json:"needsAttention"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

// AttentionItem names a student flagged on the roster and why.
type AttentionItem struct {
	StudentID uint     `json:"studentId"`
	Name      string   `json:"name"`
	Reasons   []string `json:"reasons"`
}

// RosterSummaryResponse aggregates a teacher's roster for the dashboard.
type RosterSummaryResponse struct {
	TotalStudents     int             `json:"totalStudents"`
	TotalReflections  int             `json:"totalReflections"`
	AverageLiteracy   *float64        `json:"averageLiteracy"`
	ClassDistribution map[string]int  `json:"classDistribution"`
	NeedsAttention    []AttentionItem `json:"needsAttention"`
	GeneratedAt       time.Time       `json:"generatedAt"`
	CacheHit          bool            `json:"cacheHit"`
}

// NewSELScoresResponse converts the stored SEL triple.
func NewSELScoresResponse(sel models.SELScores) SELScoresResponse {
	return SELScoresResponse{
		Empathy:     sel.Empathy,
		Regulation:  sel.Regulation,
		Cooperation: sel.Cooperation,
	}
}

// NewLiteracyScoreResponses converts literacy history preserving order.
func NewLiteracyScoreResponses(scores []models.LiteracyScore) []LiteracyScoreResponse {
	responses := make([]LiteracyScoreResponse, 0, len(scores))
	for _, score := range scores {
		responses = append(responses, LiteracyScoreResponse{ID: score.ID, Score: score.Score, Date: score.Date})
	}
	return responses
}

// NewReflectionResponses converts reflections preserving order.
func NewReflectionResponses(reflections []models.Reflection) []ReflectionResponse {
	responses := make([]ReflectionResponse, 0, len(reflections))
	for _, reflection := range reflections {
		responses = append(responses, ReflectionResponse{ID: reflection.ID, Note: reflection.Note, Date: reflection.Date})
	}
	return responses
}

// NewStudentResponse converts a student model into a DTO, deriving literacy aggregates.
func NewStudentResponse(student models.Student, now time.Time) StudentResponse {
	response := StudentResponse{
		ID:              student.ID,
		TeacherID:       student.TeacherID,
		Name:            student.Name,
		Age:             student.Age,
		Class:           student.Class,
		SELScores:       NewSELScoresResponse(student.SEL),
		LiteracyScores:  NewLiteracyScoreResponses(student.LiteracyScores),
		Reflections:     NewReflectionResponses(student.Reflections),
		LiteracyAverage: progress.LiteracyAverage(student.LiteracyScores).Ptr(),
		NeedsAttention:  progress.NeedsAttention(student, now),
		CreatedAt:       student.CreatedAt,
		UpdatedAt:       student.UpdatedAt,
	}
	if len(student.LiteracyScores) > 0 {
		response.LiteracyTrend = progress.Trend(student.LiteracyScores)
	}
	return response
}
