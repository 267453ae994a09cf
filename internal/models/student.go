package models

import (
	"time"

	"gorm.io/gorm"
)

// Bounds applied to numeric student attributes.
const (
	AgeMin      = 5
	AgeMax      = 18
	SELMin      = 1
	SELMax      = 5
	LiteracyMin = 0.0
	LiteracyMax = 100.0

	DefaultClass = "Unassigned"
)

// SELScores holds the three social-emotional competencies; nil means not assessed.
type SELScores struct {
	Empathy     *int `json:"empathy"`
	Regulation  *int `json:"regulation"`
	Cooperation *int `json:"cooperation"`
}

// IsEmpty reports whether none of the competencies has been rated.
func (s SELScores) IsEmpty() bool {
	return s.Empathy == nil && s.Regulation == nil && s.Cooperation == nil
}

// Student is a learner owned by exactly one teacher.
type Student struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	TeacherID      uint            `gorm:"index;not null" json:"teacher_id"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	Age            *int            `json:"age"`
	Class          string          `gorm:"size:64;index" json:"class"`
	SEL            SELScores       `gorm:"embedded;embeddedPrefix:sel_" json:"sel_scores"`
	LiteracyScores []LiteracyScore `gorm:"foreignKey:StudentID" json:"literacy_scores"`
	Reflections    []Reflection    `gorm:"foreignKey:StudentID" json:"reflections"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// LiteracyScore is one timestamped literacy assessment result.
type LiteracyScore struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"index;not null" json:"student_id"`
	Score     float64   `gorm:"not null" json:"score"`
	Date      time.Time `gorm:"index" json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate defaults the assessment date to the creation time.
func (l *LiteracyScore) BeforeCreate(tx *gorm.DB) error {
	if l.Date.IsZero() {
		l.Date = time.Now().UTC()
	}
	return nil
}

// Reflection is a free-text observation a teacher recorded about a student.
type Reflection struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"index;not null" json:"student_id"`
	Note      string    `gorm:"type:text;not null" json:"note"`
	Date      time.Time `gorm:"index" json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate defaults the reflection date to the creation time.
func (r *Reflection) BeforeCreate(tx *gorm.DB) error {
	if r.Date.IsZero() {
		r.Date = time.Now().UTC()
	}
	return nil
}
