package quiz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pavelanni/docquiz/internal/model"
)

// Error classes. Every error returned by this package wraps exactly one of them.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrGenerationFailure = errors.New("generation failure")
	ErrSchemaMismatch    = errors.New("schema mismatch")
	ErrBusinessRule      = errors.New("business rule violation")
)

// InputError reports a malformed or missing upload.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalidInput(format string, args ...any) error {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// GenerationError wraps a failure of the external generation call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "generate quiz: " + e.Err.Error() }

func (e *GenerationError) Unwrap() []error { return []error{ErrGenerationFailure, e.Err} }

// SchemaError reports structural violations in a generator candidate.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "schema mismatch: " + strings.Join(e.Violations, "; ")
}

func (e *SchemaError) Unwrap() error { return ErrSchemaMismatch }

// Business rules checked after the structural parse.
const (
	RuleQuestionCount = "question_count"
	RuleOptionCount   = "option_count"
	RuleAnswer        = "answer"
)

// RuleError reports a business-rule violation. Question is the 0-based
// question index, or -1 for rules about the whole set.
type RuleError struct {
	Rule     string
	Question int
	Actual   int
}

func (e *RuleError) Error() string {
	switch e.Rule {
	case RuleQuestionCount:
		return fmt.Sprintf("Expected exactly %d questions, got %d", model.QuizSize, e.Actual)
	case RuleOptionCount:
		return fmt.Sprintf("Question %d must have exactly %d options", e.Question+1, model.OptionCount)
	case RuleAnswer:
		return fmt.Sprintf("Question %d has invalid correct answer", e.Question+1)
	}
	return "business rule " + e.Rule + " violated"
}

func (e *RuleError) Unwrap() error { return ErrBusinessRule }
