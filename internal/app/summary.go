package app

import (
	"math"

	"reading-quiz-service/internal/domain"
)

// ScoreBucket counts learners in one score range.
type ScoreBucket struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// ClassSummary is the class-wide overview shown on the dashboard.
type ClassSummary struct {
	Students     int           `json:"students"`
	Completed    int           `json:"completed"`
	TopStudent   *domain.User  `json:"topStudent"`
	ClassAverage int           `json:"classAverage"`
	Distribution []ScoreBucket `json:"distribution"`
}

// Summarize computes the dashboard overview. Only completed learners with a score count
// towards the top student and the average; empty buckets are omitted.
func Summarize(students []domain.User) ClassSummary {
	buckets := []ScoreBucket{
		{Name: "not_started"}, {Name: "0-20"}, {Name: "21-40"},
		{Name: "41-60"}, {Name: "61-80"}, {Name: "81-100"},
	}
	summary := ClassSummary{Students: len(students)}

	total := 0
	for i := range students {
		student := students[i]
		if student.Status != domain.StatusCompleted || student.Score == nil {
			buckets[0].Value++
			continue
		}
		score := student.Score.Overall
		summary.Completed++
		total += score
		if summary.TopStudent == nil || score > summary.TopStudent.Score.Overall {
			summary.TopStudent = &student
		}
		switch {
		case score <= 20:
			buckets[1].Value++
		case score <= 40:
			buckets[2].Value++
		case score <= 60:
			buckets[3].Value++
		case score <= 80:
			buckets[4].Value++
		default:
			buckets[5].Value++
		}
	}
	if summary.Completed > 0 {
		summary.ClassAverage = int(math.Round(float64(total) / float64(summary.Completed)))
	}
	for _, b := range buckets {
		if b.Value > 0 {
			summary.Distribution = append(summary.Distribution, b)
		}
	}
	return summary
}
