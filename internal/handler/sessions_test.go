package handler

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/pavelanni/docquiz/internal/model"
	"github.com/pavelanni/docquiz/internal/review"
	"github.com/pavelanni/docquiz/internal/session"
)

// quizBody is a valid quiz whose correct answers are A, B, A, D.
const quizBody = `[
	{"question":"Q1?","options":["a","b","c","d"],"answer":"A"},
	{"question":"Q2?","options":["a","b","c","d"],"answer":"B"},
	{"question":"Q3?","options":["a","b","c","d"],"answer":"A"},
	{"question":"Q4?","options":["a","b","c","d"],"answer":"D"}
]`

func newSession(t *testing.T, srv *testServer) string {
	t.Helper()
	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/sessions", quizBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: %d %s", resp.StatusCode, body)
	}
	v := decode[sessionView](t, body)
	return srv.URL + "/api/sessions/" + v.ID.String()
}

func step(t *testing.T, method, url, body string, wantStatus int) sessionView {
	t.Helper()
	resp, data := doRequest(t, method, url, body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d (%s)", method, url, resp.StatusCode, wantStatus, data)
	}
	if wantStatus != http.StatusOK && wantStatus != http.StatusCreated {
		return sessionView{}
	}
	return decode[sessionView](t, data)
}

func TestSessionCreate(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{}, nil, model.ServerConfig{})

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/sessions", quizBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	v := decode[sessionView](t, body)
	if v.Phase != session.PhaseInProgress || v.Total != 4 || v.Current != 0 || v.Submitted {
		t.Errorf("unexpected view %+v", v)
	}
	if v.Question == nil || v.Question.Text != "Q1?" || v.Question.Progress != "Question 1 of 4" {
		t.Errorf("current question = %+v", v.Question)
	}
	if strings.Contains(string(body), `"answer"`) {
		t.Errorf("session view leaks correct answers: %s", body)
	}
	if srv.sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", srv.sessions.Len())
	}

	for name, bad := range map[string]string{
		"not json":        "nope",
		"three questions": `[{"question":"q","options":["a","b","c","d"],"answer":"A"}]`,
		"bad answer":      strings.Replace(quizBody, `"answer":"D"`, `"answer":"E"`, 1),
	} {
		resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/sessions", bad)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, resp.StatusCode)
		}
	}
}

func TestSessionFlow(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{}, nil, model.ServerConfig{})
	url := newSession(t, srv)

	// Review is unavailable before submission.
	step(t, http.MethodGet, url+"/review", "", http.StatusConflict)

	// Moving on without an answer is rejected.
	step(t, http.MethodPost, url+"/next", "", http.StatusConflict)
	step(t, http.MethodPost, url+"/answer", `{"label":"E"}`, http.StatusBadRequest)

	for i, label := range []string{"A", "B", "C"} {
		v := step(t, http.MethodPost, url+"/answer", `{"label":"`+label+`"}`, http.StatusOK)
		if v.Question.Selected != model.Label(label) {
			t.Fatalf("question %d selected %q", i+1, v.Question.Selected)
		}
		v = step(t, http.MethodPost, url+"/next", "", http.StatusOK)
		if v.Current != i+1 {
			t.Fatalf("current = %d, want %d", v.Current, i+1)
		}
	}

	v := step(t, http.MethodPost, url+"/previous", "", http.StatusOK)
	if v.Current != 2 || v.Question.Selected != "C" {
		t.Errorf("previous lost position or answer: %+v", v)
	}
	step(t, http.MethodPost, url+"/next", "", http.StatusOK)

	// Submitting an unanswered last question is rejected.
	step(t, http.MethodPost, url+"/submit", "", http.StatusConflict)
	step(t, http.MethodPost, url+"/answer", `{"label":"D"}`, http.StatusOK)
	v = step(t, http.MethodPost, url+"/next", "", http.StatusOK)
	if !v.Submitted || v.Phase != session.PhaseSubmitted || v.Progress != 100 {
		t.Fatalf("expected submitted view, got %+v", v)
	}
	if v.Score == nil || v.Score.Correct != 3 || v.Score.Percentage != 75 {
		t.Fatalf("score = %+v", v.Score)
	}
	if v.Score.RemarkText != "Good effort! You're on the right track." {
		t.Errorf("remark text = %q", v.Score.RemarkText)
	}
	if v.Score.Summary != "You scored 3 out of 4 (75%)" {
		t.Errorf("summary = %q", v.Score.Summary)
	}
	if v.Score.CorrectText != "3 correct answers" {
		t.Errorf("correct text = %q", v.Score.CorrectText)
	}
	if v.Question != nil {
		t.Errorf("submitted view should not carry a current question")
	}

	resp, body := doRequest(t, http.MethodGet, url+"/review", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("review status = %d", resp.StatusCode)
	}
	rv := decode[reviewView](t, body)
	if len(rv.Questions) != 4 || rv.Score.Correct != 3 {
		t.Fatalf("review = %+v", rv)
	}
	q3 := rv.Questions[2]
	if q3.Options[0].Class != review.ClassCorrect || q3.Options[2].Class != review.ClassIncorrectlySelected || q3.Options[1].Class != review.ClassNeutral {
		t.Errorf("question 3 review = %+v", q3.Options)
	}

	// Reset keeps the quiz and clears answers.
	v = step(t, http.MethodPost, url+"/reset", "", http.StatusOK)
	if v.Phase != session.PhaseInProgress || v.Current != 0 || v.Score != nil {
		t.Errorf("reset view = %+v", v)
	}
	for i, a := range v.Answers {
		if a != model.Unanswered {
			t.Errorf("answer %d survived reset: %q", i, a)
		}
	}

	// Clear removes the session.
	resp, _ = doRequest(t, http.MethodDelete, url, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	step(t, http.MethodGet, url, "", http.StatusNotFound)
	step(t, http.MethodDelete, url, "", http.StatusNotFound)
}

func TestSessionScoreLocalized(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{}, nil, model.ServerConfig{})
	url := newSession(t, srv)
	for _, label := range []string{"A", "B", "A", "A"} {
		step(t, http.MethodPost, url+"/answer", `{"label":"`+label+`"}`, http.StatusOK)
		step(t, http.MethodPost, url+"/next", "", http.StatusOK)
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET session: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	v := decode[sessionView](t, data)
	if v.Score == nil {
		t.Fatalf("no score in %s", data)
	}
	if v.Score.CorrectText != "3 правильных ответа" {
		t.Errorf("correct text = %q", v.Score.CorrectText)
	}
	if v.Score.RemarkText != "Хорошая попытка! Вы на верном пути." {
		t.Errorf("remark text = %q", v.Score.RemarkText)
	}
}

func TestSessionUnknownID(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{}, nil, model.ServerConfig{})

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		base := srv.URL + "/api/sessions/" + id
		step(t, http.MethodGet, base, "", http.StatusNotFound)
		step(t, http.MethodPost, base+"/next", "", http.StatusNotFound)
		step(t, http.MethodPost, base+"/answer", `{"label":"A"}`, http.StatusNotFound)
		step(t, http.MethodGet, base+"/review", "", http.StatusNotFound)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{}, nil, model.ServerConfig{})
	a := newSession(t, srv)
	b := newSession(t, srv)

	step(t, http.MethodPost, a+"/answer", `{"label":"C"}`, http.StatusOK)
	v := step(t, http.MethodGet, b, "", http.StatusOK)
	if v.Answers[0] != model.Unanswered {
		t.Errorf("answer leaked across sessions: %v", v.Answers)
	}
}
