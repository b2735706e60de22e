package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pavelanni/docquiz/internal/i18n"
	"github.com/pavelanni/docquiz/internal/model"
	"github.com/pavelanni/docquiz/internal/quiz"
	"github.com/pavelanni/docquiz/internal/session"
)

const msgGenerateFailed = "Failed to generate quiz"

// QuizGenerator runs the generation pipeline.
type QuizGenerator interface {
	Generate(ctx context.Context, files []model.FileDescriptor) (model.QuizSet, error)
}

// TitleGenerator produces a display title for a file name.
type TitleGenerator interface {
	GenerateTitle(ctx context.Context, fileName string) (string, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	quiz     QuizGenerator
	titles   TitleGenerator
	sessions *session.Manager
	config   model.ServerConfig
}

// New creates a new Handler. titles may be nil, in which case every title
// request gets the default title.
func New(q QuizGenerator, titles TitleGenerator, sessions *session.Manager, cfg model.ServerConfig) *Handler {
	if cfg.MaxGenerations < 1 {
		cfg.MaxGenerations = 1
	}
	return &Handler{quiz: q, titles: titles, sessions: sessions, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.With(middleware.Throttle(h.config.MaxGenerations)).Post("/exam", h.handleGenerate)
		r.Post("/title", h.handleTitle)

		r.Post("/sessions", h.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleGetSession)
			r.Delete("/", h.handleClearSession)
			r.Post("/answer", h.handleSelect)
			r.Post("/next", h.transition(session.State.Next))
			r.Post("/previous", h.transition(session.State.Previous))
			r.Post("/submit", h.transition(session.State.Submit))
			r.Post("/reset", h.transition(session.State.Reset))
			r.Get("/review", h.handleReview)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": h.sessions.Len()})
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	files, err := decodeFiles(body)
	if err != nil {
		resp := errResp{Error: "Invalid JSON body"}
		if h.config.Dev {
			resp.Details = err.Error()
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	ctx := r.Context()
	if h.config.LLMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.LLMTimeout)
		defer cancel()
	}

	qs, err := h.quiz.Generate(ctx, files)
	if err != nil {
		h.writeGenerateErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

// decodeFiles extracts the file descriptors from a generation body. Only
// malformed JSON is an error. A body that is not an object, or whose files
// member is not an array, yields no files, and an entry that is not a
// descriptor object yields an empty descriptor, so the normalizer reports
// both in its own terms.
func decodeFiles(body []byte) ([]model.FileDescriptor, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	var req model.GenerateRequest
	if json.Unmarshal(body, &req) != nil {
		return nil, nil
	}
	var entries []json.RawMessage
	if json.Unmarshal(req.Files, &entries) != nil {
		return nil, nil
	}
	files := make([]model.FileDescriptor, len(entries))
	for i, e := range entries {
		if json.Unmarshal(e, &files[i]) != nil {
			files[i] = model.FileDescriptor{}
		}
	}
	return files, nil
}

// readBody reads the request body within the configured limit. An absent or
// empty body is reported as a missing body.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		writeErr(w, http.StatusBadRequest, "No request body provided")
		return nil, false
	}
	src := io.Reader(r.Body)
	if h.config.MaxBodyBytes > 0 {
		src = http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return nil, false
		}
		writeErr(w, http.StatusBadRequest, "Could not read request body")
		return nil, false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		writeErr(w, http.StatusBadRequest, "No request body provided")
		return nil, false
	}
	return body, true
}

func (h *Handler) writeGenerateErr(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())

	var schemaErr *quiz.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		writeJSON(w, http.StatusBadRequest, errResp{
			Error:   "Generated questions don't match expected format",
			Details: schemaErr.Violations,
		})
	case errors.Is(err, quiz.ErrInvalidInput), errors.Is(err, quiz.ErrBusinessRule):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("quiz generation failed", "request_id", reqID, "error", err)
		resp := errResp{Error: msgGenerateFailed, Message: err.Error()}
		if errors.Is(err, context.DeadlineExceeded) {
			resp.Message = "Generation timed out"
		}
		if h.config.Dev {
			resp.Details = errorChain(err)
		}
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

// errorChain lists the messages of err and everything it wraps.
func errorChain(err error) []string {
	var out []string
	queue := []error{err}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if e == nil {
			continue
		}
		out = append(out, e.Error())
		switch u := e.(type) {
		case interface{ Unwrap() error }:
			queue = append(queue, u.Unwrap())
		case interface{ Unwrap() []error }:
			queue = append(queue, u.Unwrap()...)
		}
	}
	return out
}

type titleRequest struct {
	Name string `json:"name"`
}

type titleResponse struct {
	Title string `json:"title"`
}

// handleTitle never fails the request: any problem degrades to the default title.
func (h *Handler) handleTitle(w http.ResponseWriter, r *http.Request) {
	fallback := i18n.T(r.Context(), "DefaultTitle")

	var req titleRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusOK, titleResponse{Title: fallback})
		return
	}
	if h.titles == nil {
		writeJSON(w, http.StatusOK, titleResponse{Title: fallback})
		return
	}

	ctx := r.Context()
	if h.config.LLMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.LLMTimeout)
		defer cancel()
	}
	title, err := h.titles.GenerateTitle(ctx, req.Name)
	if err != nil {
		slog.Warn("title generation failed, using default", "file", req.Name, "error", err)
		title = fallback
	}
	writeJSON(w, http.StatusOK, titleResponse{Title: title})
}
