// Package score computes quiz scores and remarks.
package score

import (
	"math"

	"github.com/pavelanni/docquiz/internal/model"
)

// Remark is a qualitative tier for a percentage.
type Remark string

const (
	RemarkExcellent Remark = "excellent"
	RemarkGreat     Remark = "great"
	RemarkGood      Remark = "good"
	RemarkImprove   Remark = "improve"
	RemarkPractice  Remark = "practice"
)

// MessageID is the i18n message ID for the remark text.
func (r Remark) MessageID() string {
	switch r {
	case RemarkExcellent:
		return "RemarkExcellent"
	case RemarkGreat:
		return "RemarkGreat"
	case RemarkGood:
		return "RemarkGood"
	case RemarkImprove:
		return "RemarkImprove"
	}
	return "RemarkPractice"
}

// Result is the outcome of a submitted quiz.
type Result struct {
	Correct    int    `json:"correct"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Remark     Remark `json:"remark"`
}

// Count returns the number of answers that match the correct label.
// Missing or unanswered entries never match.
func Count(questions model.QuizSet, answers []model.Label) int {
	correct := 0
	for i, q := range questions {
		if i < len(answers) && answers[i] != model.Unanswered && answers[i] == q.Answer {
			correct++
		}
	}
	return correct
}

// Percentage returns round(100 * correct / total); 0 for an empty quiz.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// RemarkFor maps a percentage to its tier. Bounds are inclusive.
func RemarkFor(pct int) Remark {
	switch {
	case pct >= 100:
		return RemarkExcellent
	case pct >= 80:
		return RemarkGreat
	case pct >= 60:
		return RemarkGood
	case pct >= 40:
		return RemarkImprove
	}
	return RemarkPractice
}

// Evaluate scores answers against questions.
func Evaluate(questions model.QuizSet, answers []model.Label) Result {
	correct := Count(questions, answers)
	pct := Percentage(correct, len(questions))
	return Result{
		Correct:    correct,
		Total:      len(questions),
		Percentage: pct,
		Remark:     RemarkFor(pct),
	}
}
