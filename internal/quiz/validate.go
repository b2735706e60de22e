package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	validator "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pavelanni/docquiz/internal/model"
)

// Validate turns a raw generator candidate into a QuizSet. The candidate may
// be a bare array of questions or an object holding them under "questions".
// Nothing partial is ever returned: any violation yields a nil set.
func Validate(raw json.RawMessage) (model.QuizSet, error) {
	qs, violations, err := parse(raw)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, &SchemaError{Violations: violations}
	}
	if err := ValidateSet(qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// ValidateSet checks the business rules on an already structured set.
func ValidateSet(qs model.QuizSet) error {
	if len(qs) != model.QuizSize {
		return &RuleError{Rule: RuleQuestionCount, Question: -1, Actual: len(qs)}
	}
	for i, q := range qs {
		if len(q.Options) != model.OptionCount {
			return &RuleError{Rule: RuleOptionCount, Question: i, Actual: len(q.Options)}
		}
	}
	for i, q := range qs {
		if idx := q.Answer.Index(); idx < 0 || idx >= len(q.Options) {
			return &RuleError{Rule: RuleAnswer, Question: i, Actual: idx}
		}
	}
	return nil
}

// parse checks the candidate against Schema and decodes it. A bare array is
// validated as the "questions" member of the schema's root object.
func parse(raw json.RawMessage) (model.QuizSet, []string, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, []string{"candidate: invalid JSON: " + err.Error()}, nil
	}

	bare := false
	if items, ok := doc.([]any); ok {
		bare = true
		doc = map[string]any{"questions": items}
	}
	if err := sch.Validate(doc); err != nil {
		var ve *validator.ValidationError
		if !errors.As(err, &ve) {
			return nil, nil, fmt.Errorf("validate candidate: %w", err)
		}
		return nil, violations(ve, bare), nil
	}

	var wrapped struct {
		Questions model.QuizSet `json:"questions"`
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("re-encode candidate: %w", err)
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, nil, fmt.Errorf("decode candidate: %w", err)
	}
	return wrapped.Questions, nil, nil
}

// violations flattens the leaf causes of a validation error into
// "path: message" lines, sorted for stable output.
func violations(ve *validator.ValidationError, bare bool) []string {
	var out []string
	var walk func(e *validator.ValidationError)
	walk = func(e *validator.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, instancePath(e.InstanceLocation, bare)+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.Strings(out)
	return out
}

// instancePath turns a JSON pointer such as /questions/2/options/1 into
// questions[2].options[1]. For bare arrays the questions prefix is dropped.
func instancePath(ptr string, bare bool) string {
	var b strings.Builder
	for i, seg := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		if seg == "" {
			continue
		}
		if i == 0 && bare && seg == "questions" {
			continue
		}
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	if b.Len() == 0 {
		return "candidate"
	}
	return b.String()
}
