package quiz

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/pavelanni/docquiz/internal/model"
)

// Generator asks the external document-understanding service for a candidate
// quiz. Implementations make exactly one external call per invocation.
type Generator interface {
	Generate(ctx context.Context, doc model.Document) (json.RawMessage, error)
}

// Cache stores validated quizzes by document hash.
type Cache interface {
	LookupQuiz(docHash string) (model.QuizSet, bool, error)
	SaveQuiz(q model.CachedQuiz) error
}

// Recorder receives one record per pipeline run.
type Recorder interface {
	RecordGeneration(rec model.GenerationRecord) error
}

// Service runs normalize -> generate -> validate.
type Service struct {
	gen          Generator
	cache        Cache
	rec          Recorder
	modelName    string
	maxFileBytes int
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables the generation cache.
func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

// WithRecorder enables the generation log.
func WithRecorder(r Recorder) Option { return func(s *Service) { s.rec = r } }

// WithMaxFileBytes overrides DefaultMaxFileBytes.
func WithMaxFileBytes(n int) Option { return func(s *Service) { s.maxFileBytes = n } }

// WithModelName tags cache entries with the generating model.
func WithModelName(name string) Option { return func(s *Service) { s.modelName = name } }

// NewService creates a Service around gen.
func NewService(gen Generator, opts ...Option) *Service {
	s := &Service{
		gen:          gen,
		maxFileBytes: DefaultMaxFileBytes,
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Generate produces a validated QuizSet from the uploaded files.
// No step is retried; callers resubmit on failure.
func (s *Service) Generate(ctx context.Context, files []model.FileDescriptor) (model.QuizSet, error) {
	start := s.now()

	doc, err := Normalize(files, s.maxFileBytes)
	if err != nil {
		s.record(model.GenerationRecord{Outcome: model.OutcomeInvalidInput, Detail: err.Error()}, start)
		return nil, err
	}
	rec := model.GenerationRecord{FileName: doc.Name, DocHash: documentHash(doc)}

	if s.cache != nil {
		qs, ok, err := s.cache.LookupQuiz(rec.DocHash)
		if err != nil {
			slog.Warn("quiz cache lookup failed", "doc_hash", rec.DocHash, "error", err)
		} else if ok {
			if err := ValidateSet(qs); err == nil {
				rec.Outcome = model.OutcomeCached
				s.record(rec, start)
				slog.Info("quiz served from cache", "doc_hash", rec.DocHash, "file", doc.Name)
				return qs, nil
			}
			slog.Warn("cached quiz failed validation, regenerating", "doc_hash", rec.DocHash)
		}
	}

	slog.Info("generating quiz", "file", doc.Name, "mime_type", doc.MimeType, "bytes", doc.Size)
	raw, err := s.gen.Generate(ctx, doc)
	if err != nil {
		rec.Outcome = model.OutcomeGenerationFailure
		rec.Detail = err.Error()
		s.record(rec, start)
		return nil, &GenerationError{Err: err}
	}

	qs, err := Validate(raw)
	if err != nil {
		rec.Outcome = outcomeFor(err)
		rec.Detail = err.Error()
		s.record(rec, start)
		slog.Warn("generated quiz rejected", "file", doc.Name, "error", err)
		return nil, err
	}

	if s.cache != nil {
		err := s.cache.SaveQuiz(model.CachedQuiz{
			DocHash:   rec.DocHash,
			FileName:  doc.Name,
			MimeType:  doc.MimeType,
			Model:     s.modelName,
			Questions: qs,
			CreatedAt: s.now(),
		})
		if err != nil {
			slog.Warn("quiz cache save failed", "doc_hash", rec.DocHash, "error", err)
		}
	}

	rec.Outcome = model.OutcomeOK
	s.record(rec, start)
	return qs, nil
}

func (s *Service) record(rec model.GenerationRecord, start time.Time) {
	if s.rec == nil {
		return
	}
	rec.CreatedAt = s.now()
	rec.DurationMS = rec.CreatedAt.Sub(start).Milliseconds()
	if err := s.rec.RecordGeneration(rec); err != nil {
		slog.Warn("record generation failed", "error", err)
	}
}

// outcomeFor maps a pipeline error to its log class.
func outcomeFor(err error) model.Outcome {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return model.OutcomeInvalidInput
	case errors.Is(err, ErrSchemaMismatch):
		return model.OutcomeSchemaMismatch
	case errors.Is(err, ErrBusinessRule):
		return model.OutcomeBusinessRule
	}
	return model.OutcomeGenerationFailure
}

// documentHash is the sha256 of the MIME type and the decoded document bytes.
func documentHash(doc model.Document) string {
	b, err := base64.StdEncoding.DecodeString(doc.Data)
	if err != nil {
		b, _ = base64.RawStdEncoding.DecodeString(doc.Data)
	}
	h := sha256.New()
	h.Write([]byte(doc.MimeType))
	h.Write([]byte{0})
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}
