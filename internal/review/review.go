// Package review classifies quiz options for the post-submission review.
package review

import "github.com/pavelanni/docquiz/internal/model"

// Class is the review classification of one option.
type Class string

const (
	ClassCorrect             Class = "correct"
	ClassIncorrectlySelected Class = "incorrectly_selected"
	ClassNeutral             Class = "neutral"
)

// Option is one classified option.
type Option struct {
	Label    model.Label `json:"label"`
	Text     string      `json:"text"`
	Class    Class       `json:"class"`
	Selected bool        `json:"selected"`
}

// Question is one question with its classified options.
type Question struct {
	Text     string      `json:"question"`
	Answer   model.Label `json:"answer"`
	Selected model.Label `json:"selected,omitempty"`
	Options  []Option    `json:"options"`
}

// Classify returns the class of the option at label for a question whose
// correct label is answer and whose recorded answer is selected.
func Classify(label, answer, selected model.Label) Class {
	switch {
	case label == answer:
		return ClassCorrect
	case selected != model.Unanswered && label == selected:
		return ClassIncorrectlySelected
	}
	return ClassNeutral
}

// Project classifies every option of every question. Each question is
// classified on its own; answers is read, never modified.
func Project(questions model.QuizSet, answers []model.Label) []Question {
	out := make([]Question, 0, len(questions))
	for i, q := range questions {
		selected := model.Unanswered
		if i < len(answers) {
			selected = answers[i]
		}
		rq := Question{
			Text:     q.Text,
			Answer:   q.Answer,
			Selected: selected,
			Options:  make([]Option, 0, len(q.Options)),
		}
		for j, text := range q.Options {
			label := model.LabelAt(j)
			rq.Options = append(rq.Options, Option{
				Label:    label,
				Text:     text,
				Class:    Classify(label, q.Answer, selected),
				Selected: selected != model.Unanswered && label == selected,
			})
		}
		out = append(out, rq)
	}
	return out
}
