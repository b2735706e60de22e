package session

import (
	"errors"
	"reflect"
	"testing"

	"github.com/pavelanni/docquiz/internal/model"
	"github.com/pavelanni/docquiz/internal/quiz"
	"github.com/pavelanni/docquiz/internal/score"
)

func testQuiz(labels ...model.Label) model.QuizSet {
	if len(labels) == 0 {
		labels = []model.Label{"A", "B", "C", "D"}
	}
	qs := make(model.QuizSet, len(labels))
	for i, l := range labels {
		qs[i] = model.Question{
			Text:    "question",
			Options: []string{"one", "two", "three", "four"},
			Answer:  l,
		}
	}
	return qs
}

func mustStart(t *testing.T, qs model.QuizSet) State {
	t.Helper()
	st, err := Start(qs)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return st
}

// step returns a checker for a transition result, so calls read
// step(t)(st.Next()).
func step(t *testing.T) func(State, error) State {
	return func(st State, err error) State {
		t.Helper()
		if err != nil {
			t.Fatalf("transition: %v", err)
		}
		return st
	}
}

// answerAll selects labels in order and submits via Next on the last question.
func answerAll(t *testing.T, st State, labels ...model.Label) State {
	t.Helper()
	for _, l := range labels {
		st = step(t)(st.Select(l))
		st = step(t)(st.Next())
	}
	return st
}

func TestStart(t *testing.T) {
	st := mustStart(t, testQuiz())
	if st.Phase != PhaseInProgress {
		t.Errorf("Phase = %q, want in_progress", st.Phase)
	}
	if st.Current != 0 || st.Score != nil {
		t.Errorf("unexpected initial state %+v", st)
	}
	for i, a := range st.Answers {
		if a != model.Unanswered {
			t.Errorf("answer %d = %q, want unanswered", i, a)
		}
	}

	_, err := Start(testQuiz("A", "B", "C"))
	if !errors.Is(err, quiz.ErrBusinessRule) {
		t.Errorf("Start with 3 questions: error = %v, want ErrBusinessRule", err)
	}
}

func TestNoSession(t *testing.T) {
	var st State
	if _, err := st.Select("A"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Select: %v", err)
	}
	if _, err := st.Next(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Next: %v", err)
	}
	if _, err := st.Previous(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Previous: %v", err)
	}
	if _, err := st.Submit(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Submit: %v", err)
	}
	if _, err := st.Reset(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Reset: %v", err)
	}
	if st.Clear().Phase != PhaseNone {
		t.Errorf("Clear from zero value should be PhaseNone")
	}
}

func TestSelectOverwritesAndIsPure(t *testing.T) {
	st := mustStart(t, testQuiz())
	first := step(t)(st.Select("A"))
	second := step(t)(first.Select("C"))

	if st.Answers[0] != model.Unanswered {
		t.Errorf("Select modified the original state")
	}
	if first.Answers[0] != "A" {
		t.Errorf("first.Answers[0] = %q, want A", first.Answers[0])
	}
	if second.Answers[0] != "C" {
		t.Errorf("second.Answers[0] = %q, want C", second.Answers[0])
	}

	if _, err := st.Select("E"); !errors.Is(err, ErrInvalidLabel) {
		t.Errorf("Select(E): error = %v, want ErrInvalidLabel", err)
	}
	if _, err := st.Select(model.Unanswered); !errors.Is(err, ErrInvalidLabel) {
		t.Errorf("Select(empty): error = %v, want ErrInvalidLabel", err)
	}
}

func TestNavigation(t *testing.T) {
	st := mustStart(t, testQuiz())

	same, err := st.Previous()
	if err != nil {
		t.Fatalf("Previous at 0: %v", err)
	}
	if !reflect.DeepEqual(same, st) {
		t.Errorf("Previous at 0 changed state")
	}

	if _, err := st.Next(); !errors.Is(err, ErrIncompleteAnswer) {
		t.Errorf("Next unanswered: error = %v, want ErrIncompleteAnswer", err)
	}

	st = step(t)(st.Select("A"))
	st = step(t)(st.Next())
	if st.Current != 1 {
		t.Fatalf("Current = %d, want 1", st.Current)
	}
	st = step(t)(st.Previous())
	if st.Current != 0 || st.Answers[0] != "A" {
		t.Errorf("Previous lost position or answer: %+v", st)
	}
}

func TestNextOnLastSubmits(t *testing.T) {
	st := mustStart(t, testQuiz())
	for i := 0; i < 3; i++ {
		st = step(t)(st.Select("A"))
		st = step(t)(st.Next())
	}
	if !st.IsLast() {
		t.Fatalf("expected last question, Current = %d", st.Current)
	}

	if _, err := st.Next(); !errors.Is(err, ErrIncompleteAnswer) {
		t.Errorf("Next on unanswered last: error = %v", err)
	}
	if _, err := st.Submit(); !errors.Is(err, ErrIncompleteAnswer) {
		t.Errorf("Submit on unanswered last: error = %v", err)
	}

	st = step(t)(st.Select("D"))
	st = step(t)(st.Next())
	if st.Phase != PhaseSubmitted {
		t.Fatalf("Phase = %q, want submitted", st.Phase)
	}
	if st.Score == nil || *st.Score != 2 {
		t.Errorf("Score = %v, want 2", st.Score)
	}
}

func TestSubmitCountsUnansweredAsIncorrect(t *testing.T) {
	st := mustStart(t, testQuiz())
	st = step(t)(st.Select("A"))
	st = step(t)(st.Submit())

	if *st.Score != 1 {
		t.Errorf("Score = %d, want 1", *st.Score)
	}
	res, ok := st.Result()
	if !ok {
		t.Fatal("Result not available after submit")
	}
	if res.Total != 4 || res.Percentage != 25 || res.Remark != score.RemarkPractice {
		t.Errorf("Result = %+v", res)
	}
}

func TestSubmittedIgnoresEdits(t *testing.T) {
	st := answerAll(t, mustStart(t, testQuiz()), "A", "B", "C", "D")
	if st.Phase != PhaseSubmitted {
		t.Fatalf("Phase = %q", st.Phase)
	}

	for name, fn := range map[string]func(State) (State, error){
		"select":   func(s State) (State, error) { return s.Select("B") },
		"next":     State.Next,
		"previous": State.Previous,
		"submit":   State.Submit,
	} {
		got, err := fn(st)
		if err != nil {
			t.Errorf("%s after submit: %v", name, err)
		}
		if !reflect.DeepEqual(got, st) {
			t.Errorf("%s after submit changed state", name)
		}
	}
}

func TestResetIsIdempotent(t *testing.T) {
	qs := testQuiz()
	st := answerAll(t, mustStart(t, qs), "A", "B", "C", "D")

	once := step(t)(st.Reset())
	twice := step(t)(once.Reset())
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Reset twice differs from once:\n%+v\n%+v", once, twice)
	}
	if once.Phase != PhaseInProgress || once.Current != 0 || once.Score != nil {
		t.Errorf("Reset state = %+v", once)
	}
	for i, a := range once.Answers {
		if a != model.Unanswered {
			t.Errorf("answer %d not cleared", i)
		}
	}
	if !reflect.DeepEqual(once.Questions, qs) {
		t.Errorf("Reset replaced the quiz")
	}
	if *st.Score != 4 {
		t.Errorf("Reset modified the submitted state")
	}
}

func TestClear(t *testing.T) {
	st := answerAll(t, mustStart(t, testQuiz()), "A", "B", "C", "D")
	cleared := st.Clear()
	if cleared.Phase != PhaseNone || cleared.Questions != nil || cleared.Answers != nil || cleared.Score != nil {
		t.Errorf("Clear left data behind: %+v", cleared)
	}
}

func TestProgress(t *testing.T) {
	st := mustStart(t, testQuiz())
	if st.Progress() != 0 {
		t.Errorf("Progress at start = %d", st.Progress())
	}
	st = step(t)(st.Select("A"))
	st = step(t)(st.Next())
	if st.Progress() != 25 {
		t.Errorf("Progress at question 2 = %d, want 25", st.Progress())
	}
	st = answerAll(t, mustStart(t, testQuiz()), "A", "A", "A", "A")
	if st.Progress() != 100 {
		t.Errorf("Progress after submit = %d, want 100", st.Progress())
	}
}
