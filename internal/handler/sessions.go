package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pavelanni/docquiz/internal/i18n"
	"github.com/pavelanni/docquiz/internal/model"
	"github.com/pavelanni/docquiz/internal/quiz"
	"github.com/pavelanni/docquiz/internal/review"
	"github.com/pavelanni/docquiz/internal/score"
	"github.com/pavelanni/docquiz/internal/session"
)

const maxSessionBody = 1 << 20

// questionView is the current question as shown while the quiz is running.
// The correct answer is withheld.
type questionView struct {
	Index    int         `json:"index"`
	Text     string      `json:"question"`
	Options  []string    `json:"options"`
	Selected model.Label `json:"selected,omitempty"`
	Progress string      `json:"progress_text"`
}

type scoreView struct {
	score.Result
	RemarkText  string `json:"remark_text"`
	Summary     string `json:"summary"`
	CorrectText string `json:"correct_text"`
}

type sessionView struct {
	ID        uuid.UUID     `json:"id"`
	Phase     session.Phase `json:"phase"`
	Current   int           `json:"current_index"`
	Total     int           `json:"total"`
	Progress  int           `json:"progress"`
	Answers   []model.Label `json:"answers"`
	Question  *questionView `json:"question,omitempty"`
	Submitted bool          `json:"submitted"`
	Score     *scoreView    `json:"score,omitempty"`
}

type reviewView struct {
	ID        uuid.UUID         `json:"id"`
	Score     scoreView         `json:"score"`
	Questions []review.Question `json:"questions"`
}

type selectRequest struct {
	Label model.Label `json:"label"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var qs model.QuizSet
	if err := json.NewDecoder(io.LimitReader(r.Body, maxSessionBody)).Decode(&qs); err != nil {
		writeErr(w, http.StatusBadRequest, "Body must be a JSON array of questions")
		return
	}
	id, st, err := h.sessions.Create(qs)
	if err != nil {
		if errors.Is(err, quiz.ErrBusinessRule) {
			writeErr(w, http.StatusBadRequest, errors.Unwrap(err).Error())
			return
		}
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.Info("quiz session started", "session_id", id)
	writeJSON(w, http.StatusCreated, h.view(r, id, st))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.sessions.Get(id)
	if err != nil {
		writeSessionErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, id, st))
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxSessionBody)).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "Body must be {\"label\": \"A\"-\"D\"}")
		return
	}
	st, err := h.sessions.Apply(id, func(s session.State) (session.State, error) {
		return s.Select(req.Label)
	})
	if err != nil {
		writeSessionErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, id, st))
}

// transition adapts a body-less state transition into a handler.
func (h *Handler) transition(fn func(session.State) (session.State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		st, err := h.sessions.Apply(id, fn)
		if err != nil {
			writeSessionErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.view(r, id, st))
	}
}

func (h *Handler) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if !h.sessions.Delete(id) {
		writeErr(w, http.StatusNotFound, "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.sessions.Get(id)
	if err != nil {
		writeSessionErr(w, err)
		return
	}
	res, submitted := st.Result()
	if !submitted {
		writeErr(w, http.StatusConflict, "Quiz has not been submitted")
		return
	}
	writeJSON(w, http.StatusOK, reviewView{
		ID:        id,
		Score:     h.scoreView(r, res),
		Questions: review.Project(st.Questions, st.Answers),
	})
}

func (h *Handler) view(r *http.Request, id uuid.UUID, st session.State) sessionView {
	v := sessionView{
		ID:        id,
		Phase:     st.Phase,
		Current:   st.Current,
		Total:     len(st.Questions),
		Progress:  st.Progress(),
		Answers:   st.Answers,
		Submitted: st.Phase == session.PhaseSubmitted,
	}
	if st.Phase == session.PhaseInProgress && st.Current < len(st.Questions) {
		q := st.Questions[st.Current]
		v.Question = &questionView{
			Index:    st.Current,
			Text:     q.Text,
			Options:  q.Options,
			Selected: st.Answers[st.Current],
			Progress: i18n.Td(r.Context(), "QuestionProgress", map[string]any{
				"Current": st.Current + 1,
				"Total":   len(st.Questions),
			}),
		}
	}
	if res, ok := st.Result(); ok {
		sv := h.scoreView(r, res)
		v.Score = &sv
	}
	return v
}

func (h *Handler) scoreView(r *http.Request, res score.Result) scoreView {
	return scoreView{
		Result:     res,
		RemarkText: i18n.T(r.Context(), res.Remark.MessageID()),
		Summary: i18n.Td(r.Context(), "ScoreSummary", map[string]any{
			"Correct":    res.Correct,
			"Total":      res.Total,
			"Percentage": res.Percentage,
		}),
		CorrectText: i18n.Tp(r.Context(), "CorrectAnswers", res.Correct),
	}
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, http.StatusNotFound, "Session not found")
		return uuid.Nil, false
	}
	return id, true
}

func writeSessionErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeErr(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, session.ErrIncompleteAnswer):
		writeErr(w, http.StatusConflict, "Select an answer before continuing")
	case errors.Is(err, session.ErrInvalidLabel):
		writeErr(w, http.StatusBadRequest, "Answer must be one of A, B, C, D")
	case errors.Is(err, session.ErrNoSession):
		writeErr(w, http.StatusConflict, "No quiz in progress")
	default:
		slog.Error("session transition failed", "error", err)
		writeErr(w, http.StatusInternalServerError, err.Error())
	}
}
