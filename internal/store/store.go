package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/docquiz/internal/model"

	_ "modernc.org/sqlite"
)

// Store persists the generation cache and the generation log in SQLite.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS quizzes (
		doc_hash TEXT PRIMARY KEY,
		file_name TEXT NOT NULL DEFAULT '',
		mime_type TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		questions TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS generations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		doc_hash TEXT NOT NULL DEFAULT '',
		file_name TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_generations_outcome ON generations(outcome);

	CREATE TABLE IF NOT EXISTS docquiz_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LookupQuiz returns the cached quiz for a document hash.
func (s *Store) LookupQuiz(docHash string) (model.QuizSet, bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT questions FROM quizzes WHERE doc_hash = ?`, docHash).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var qs model.QuizSet
	if err := json.Unmarshal([]byte(raw), &qs); err != nil {
		return nil, false, fmt.Errorf("decode cached quiz %s: %w", docHash, err)
	}
	return qs, true, nil
}

// SaveQuiz stores a validated quiz, replacing any entry for the same document.
func (s *Store) SaveQuiz(q model.CachedQuiz) error {
	data, err := json.Marshal(q.Questions)
	if err != nil {
		return fmt.Errorf("encode quiz: %w", err)
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	_, err = s.db.Exec(
		`INSERT INTO quizzes (doc_hash, file_name, mime_type, model, questions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(doc_hash) DO UPDATE SET
		   file_name = excluded.file_name,
		   mime_type = excluded.mime_type,
		   model = excluded.model,
		   questions = excluded.questions,
		   created_at = excluded.created_at`,
		q.DocHash, q.FileName, q.MimeType, q.Model, string(data), q.CreatedAt,
	)
	return err
}

// ListQuizzes returns all cached quizzes, newest first.
func (s *Store) ListQuizzes() ([]model.CachedQuiz, error) {
	rows, err := s.db.Query(
		`SELECT doc_hash, file_name, mime_type, model, questions, created_at
		 FROM quizzes ORDER BY created_at DESC, doc_hash`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var quizzes []model.CachedQuiz
	for rows.Next() {
		var q model.CachedQuiz
		var raw string
		if err := rows.Scan(&q.DocHash, &q.FileName, &q.MimeType, &q.Model, &raw, &q.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &q.Questions); err != nil {
			return nil, fmt.Errorf("decode cached quiz %s: %w", q.DocHash, err)
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

// QuizCount returns the number of cached quizzes.
func (s *Store) QuizCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM quizzes`).Scan(&count)
	return count, err
}

// PurgeQuizzes empties the cache and returns how many entries were removed.
func (s *Store) PurgeQuizzes() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM quizzes`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecordGeneration appends one pipeline run to the generation log.
func (s *Store) RecordGeneration(rec model.GenerationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO generations (doc_hash, file_name, outcome, detail, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.DocHash, rec.FileName, rec.Outcome, rec.Detail, rec.DurationMS, rec.CreatedAt,
	)
	return err
}

// ListGenerations returns the generation log, newest first. A limit of zero
// or less returns every row.
func (s *Store) ListGenerations(limit int) ([]model.GenerationRecord, error) {
	query := `SELECT id, doc_hash, file_name, outcome, detail, duration_ms, created_at
		FROM generations ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []model.GenerationRecord
	for rows.Next() {
		var r model.GenerationRecord
		if err := rows.Scan(&r.ID, &r.DocHash, &r.FileName, &r.Outcome, &r.Detail, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// OutcomeCounts returns the number of logged runs per outcome.
func (s *Store) OutcomeCounts() (map[model.Outcome]int, error) {
	rows, err := s.db.Query(`SELECT outcome, COUNT(*) FROM generations GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[model.Outcome]int)
	for rows.Next() {
		var o model.Outcome
		var n int
		if err := rows.Scan(&o, &n); err != nil {
			return nil, err
		}
		counts[o] = n
	}
	return counts, rows.Err()
}
