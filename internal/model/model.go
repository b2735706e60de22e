package model

import (
	"encoding/json"
	"time"
)

const (
	// QuizSize is the number of questions in every quiz.
	QuizSize = 4
	// OptionCount is the number of options in every question.
	OptionCount = 4
	// DefaultMimeType is assumed when the upload carries no MIME type.
	DefaultMimeType = "application/pdf"
)

// Label identifies an option by position: A is the first option, D the last.
type Label string

const (
	LabelA Label = "A"
	LabelB Label = "B"
	LabelC Label = "C"
	LabelD Label = "D"

	// Unanswered marks a question without a recorded answer.
	Unanswered Label = ""
)

// Labels lists option labels in option order.
var Labels = []Label{LabelA, LabelB, LabelC, LabelD}

// Valid reports whether l is one of A, B, C or D.
func (l Label) Valid() bool {
	return l.Index() >= 0
}

// Index returns the option position for l, or -1 for an unknown label.
func (l Label) Index() int {
	for i, x := range Labels {
		if x == l {
			return i
		}
	}
	return -1
}

// LabelAt returns the label for option position i.
func LabelAt(i int) Label {
	if i < 0 || i >= len(Labels) {
		return Unanswered
	}
	return Labels[i]
}

// FileDescriptor is one uploaded file as posted by the browser.
// Data stays raw so a missing field can be told apart from a non-string one.
type FileDescriptor struct {
	Name     string          `json:"name"`
	Type     string          `json:"type,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Document is a normalized upload ready for generation.
type Document struct {
	Name     string
	MimeType string
	Data     string // base64 payload without any data-URL prefix
	Size     int    // decoded size in bytes
}

// DataURL returns the document as a base64 data URL.
func (d Document) DataURL() string {
	return "data:" + d.MimeType + ";base64," + d.Data
}

// Question is one multiple-choice question.
type Question struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
	Answer  Label    `json:"answer"`
}

// QuizSet is a validated quiz of exactly QuizSize questions.
type QuizSet []Question

// GenerateRequest is the body of the generation endpoint. Files stays raw so
// a non-array value can be reported as missing files rather than bad JSON.
type GenerateRequest struct {
	Files json.RawMessage `json:"files"`
}

// ServerConfig holds runtime HTTP parameters set via CLI flags.
type ServerConfig struct {
	MaxGenerations int           // generation calls allowed in flight
	LLMTimeout     time.Duration // deadline for one generation call
	MaxBodyBytes   int64         // request body limit for the generation endpoint
	Dev            bool          // include error details in 500 responses
}
