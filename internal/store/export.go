package store

import (
	"fmt"

	"github.com/pavelanni/docquiz/internal/model"
)

// Export builds the export document from the cache and the generation log.
func (s *Store) Export() (model.CacheExport, error) {
	var out model.CacheExport
	var err error

	if out.Model, err = s.Model(); err != nil {
		return out, fmt.Errorf("read model: %w", err)
	}
	if out.Quizzes, err = s.ListQuizzes(); err != nil {
		return out, fmt.Errorf("list quizzes: %w", err)
	}
	if out.Generations, err = s.ListGenerations(0); err != nil {
		return out, fmt.Errorf("list generations: %w", err)
	}
	if out.Outcomes, err = s.OutcomeCounts(); err != nil {
		return out, fmt.Errorf("count outcomes: %w", err)
	}

	if out.Quizzes == nil {
		out.Quizzes = []model.CachedQuiz{}
	}
	if out.Generations == nil {
		out.Generations = []model.GenerationRecord{}
	}
	return out, nil
}
