// Package progress computes literacy and attention summaries over a student's history.
// Every function is pure: callers pass the clock in when recency matters.
package progress

import (
	"math"
	"sort"
	"time"

	"github.com/noah-isme/eduguide-api/internal/models"
)

// Trend labels produced by Trend.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// Attention reasons produced by NeedsAttention.
const (
	ReasonNoRecentReflection = "no_recent_reflection"
	ReasonLowLiteracy        = "low_literacy"
)

const (
	// ReflectionWindow is how far back a reflection still counts as recent.
	ReflectionWindow = 14 * 24 * time.Hour
	// LowLiteracyThreshold flags a latest score strictly below this value.
	LowLiteracyThreshold = 70.0
)

// Average is a literacy mean with an explicit no-data marker.
type Average struct {
	Value   float64
	HasData bool
}

// Ptr returns the mean rounded to one decimal, or nil when there is no data.
func (a Average) Ptr() *float64 {
	if !a.HasData {
		return nil
	}
	v := Round1(a.Value)
	return &v
}

// LiteracyAverage returns the arithmetic mean of the scores. An empty history yields
// a zero value with HasData unset.
func LiteracyAverage(scores []models.LiteracyScore) Average {
	if len(scores) == 0 {
		return Average{}
	}
	var total float64
	for _, score := range scores {
		total += score.Score
	}
	return Average{Value: total / float64(len(scores)), HasData: true}
}

// Chronological returns a copy of the scores ordered by date; equal dates keep insertion order.
func Chronological(scores []models.LiteracyScore) []models.LiteracyScore {
	sorted := make([]models.LiteracyScore, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// LatestScore returns the most recently dated score. Ties go to the later insertion.
func LatestScore(scores []models.LiteracyScore) (models.LiteracyScore, bool) {
	if len(scores) == 0 {
		return models.LiteracyScore{}, false
	}
	sorted := Chronological(scores)
	return sorted[len(sorted)-1], true
}

// Trend compares the latest against the earliest chronological score.
func Trend(scores []models.LiteracyScore) string {
	if len(scores) == 0 {
		return TrendStable
	}
	sorted := Chronological(scores)
	earliest := sorted[0].Score
	latest := sorted[len(sorted)-1].Score
	switch {
	case latest > earliest:
		return TrendImproving
	case latest < earliest:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// RecentReflections returns up to limit reflections, newest first.
func RecentReflections(reflections []models.Reflection, limit int) []models.Reflection {
	sorted := make([]models.Reflection, len(reflections))
	copy(sorted, reflections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date)
	})
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// NeedsAttention reports the reasons a student should be looked at: no reflection within
// the last 14 days, or a latest literacy score below 70. Either reason is sufficient.
func NeedsAttention(student models.Student, now time.Time) []string {
	reasons := make([]string, 0, 2)

	cutoff := now.Add(-ReflectionWindow)
	recent := false
	for _, reflection := range student.Reflections {
		if reflection.Date.After(cutoff) {
			recent = true
			break
		}
	}
	if !recent {
		reasons = append(reasons, ReasonNoRecentReflection)
	}

	if latest, ok := LatestScore(student.LiteracyScores); ok && latest.Score < LowLiteracyThreshold {
		reasons = append(reasons, ReasonLowLiteracy)
	}

	return reasons
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
