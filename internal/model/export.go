package model

import "time"

// Outcome classifies one run of the generation pipeline.
type Outcome string

const (
	OutcomeOK                Outcome = "ok"
	OutcomeCached            Outcome = "cached"
	OutcomeInvalidInput      Outcome = "invalid_input"
	OutcomeGenerationFailure Outcome = "generation_failure"
	OutcomeSchemaMismatch    Outcome = "schema_mismatch"
	OutcomeBusinessRule      Outcome = "business_rule"
)

// CachedQuiz is a validated quiz stored under its document hash.
type CachedQuiz struct {
	DocHash   string    `json:"doc_hash"`
	FileName  string    `json:"file_name"`
	MimeType  string    `json:"mime_type"`
	Model     string    `json:"model"`
	Questions QuizSet   `json:"questions"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerationRecord is one row of the generation log.
type GenerationRecord struct {
	ID         int64     `json:"id"`
	DocHash    string    `json:"doc_hash,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// CacheExport is the top-level JSON structure of the export command.
type CacheExport struct {
	Model       string             `json:"model"`
	Quizzes     []CachedQuiz       `json:"quizzes"`
	Generations []GenerationRecord `json:"generations"`
	Outcomes    map[Outcome]int    `json:"outcomes"`
}
