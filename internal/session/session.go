// Package session implements the quiz session state machine.
//
// A State is a value: every transition returns a new State and leaves the
// receiver untouched, so callers can keep, compare or discard old states freely.
package session

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pavelanni/docquiz/internal/model"
	"github.com/pavelanni/docquiz/internal/quiz"
	"github.com/pavelanni/docquiz/internal/score"
)

// Phase is the coarse state of a session.
type Phase string

const (
	PhaseNone       Phase = "no_session"
	PhaseInProgress Phase = "in_progress"
	PhaseSubmitted  Phase = "submitted"
)

var (
	// ErrNoSession is returned for transitions that need a quiz when there is none.
	ErrNoSession = errors.New("no quiz session")
	// ErrIncompleteAnswer is returned when moving forward from an unanswered question.
	ErrIncompleteAnswer = errors.New("current question is unanswered")
	// ErrInvalidLabel is returned for answers outside A-D.
	ErrInvalidLabel = errors.New("invalid answer label")
)

// State is one snapshot of a quiz session. The zero value is PhaseNone.
type State struct {
	Phase     Phase
	Questions model.QuizSet
	Answers   []model.Label // model.Unanswered where nothing is recorded
	Current   int
	Score     *int // set only in PhaseSubmitted
}

// Start begins a session over qs.
func Start(qs model.QuizSet) (State, error) {
	if err := quiz.ValidateSet(qs); err != nil {
		return State{}, fmt.Errorf("start session: %w", err)
	}
	return State{
		Phase:     PhaseInProgress,
		Questions: qs,
		Answers:   make([]model.Label, len(qs)),
	}, nil
}

// Select records label for the current question, replacing any earlier answer.
// It is a no-op once the quiz is submitted.
func (s State) Select(label model.Label) (State, error) {
	switch s.Phase {
	case PhaseNone, "":
		return s, ErrNoSession
	case PhaseSubmitted:
		return s, nil
	}
	if !label.Valid() {
		return s, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	next := s.clone()
	next.Answers[next.Current] = label
	return next, nil
}

// Next moves to the following question. On the last question it submits.
func (s State) Next() (State, error) {
	switch s.Phase {
	case PhaseNone, "":
		return s, ErrNoSession
	case PhaseSubmitted:
		return s, nil
	}
	if !s.CurrentAnswered() {
		return s, ErrIncompleteAnswer
	}
	if s.Current < len(s.Questions)-1 {
		next := s.clone()
		next.Current++
		return next, nil
	}
	return s.Submit()
}

// Previous moves back one question; at the first question it does nothing.
func (s State) Previous() (State, error) {
	switch s.Phase {
	case PhaseNone, "":
		return s, ErrNoSession
	case PhaseSubmitted:
		return s, nil
	}
	if s.Current == 0 {
		return s, nil
	}
	next := s.clone()
	next.Current--
	return next, nil
}

// Submit scores the quiz. Unanswered questions count as incorrect.
func (s State) Submit() (State, error) {
	switch s.Phase {
	case PhaseNone, "":
		return s, ErrNoSession
	case PhaseSubmitted:
		return s, nil
	}
	if !s.CurrentAnswered() {
		return s, ErrIncompleteAnswer
	}
	next := s.clone()
	correct := score.Count(next.Questions, next.Answers)
	next.Score = &correct
	next.Phase = PhaseSubmitted
	return next, nil
}

// Reset clears all answers and starts the same quiz over.
func (s State) Reset() (State, error) {
	if s.Phase == PhaseNone || s.Phase == "" {
		return s, ErrNoSession
	}
	return State{
		Phase:     PhaseInProgress,
		Questions: s.Questions,
		Answers:   make([]model.Label, len(s.Questions)),
	}, nil
}

// Clear discards the quiz entirely.
func (s State) Clear() State {
	return State{Phase: PhaseNone}
}

// CurrentAnswered reports whether the current question has a recorded answer.
func (s State) CurrentAnswered() bool {
	return s.Current >= 0 && s.Current < len(s.Answers) && s.Answers[s.Current] != model.Unanswered
}

// IsLast reports whether the current question is the final one.
func (s State) IsLast() bool {
	return len(s.Questions) > 0 && s.Current == len(s.Questions)-1
}

// Progress is the share of questions already passed, in percent.
func (s State) Progress() int {
	if len(s.Questions) == 0 {
		return 0
	}
	if s.Phase == PhaseSubmitted {
		return 100
	}
	return 100 * s.Current / len(s.Questions)
}

// Result scores the session. ok is false until the quiz is submitted.
func (s State) Result() (score.Result, bool) {
	if s.Phase != PhaseSubmitted {
		return score.Result{}, false
	}
	return score.Evaluate(s.Questions, s.Answers), true
}

func (s State) clone() State {
	s.Answers = slices.Clone(s.Answers)
	if s.Score != nil {
		v := *s.Score
		s.Score = &v
	}
	return s
}
