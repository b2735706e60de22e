package store

import (
	"database/sql"
	"fmt"
	"log/slog"
)

const keyModel = "llm_model"

// SetMetadata upserts a key-value pair in the docquiz_metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO docquiz_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM docquiz_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// EnsureModel records the model that fills the cache. When a different model
// was recorded before, the cache is purged and EnsureModel reports true.
func (s *Store) EnsureModel(name string) (bool, error) {
	stored, err := s.GetMetadata(keyModel)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", keyModel, err)
	}
	purged := false
	if stored != "" && stored != name {
		n, err := s.PurgeQuizzes()
		if err != nil {
			return false, fmt.Errorf("purge cache: %w", err)
		}
		slog.Info("model changed, quiz cache purged", "old", stored, "new", name, "removed", n)
		purged = true
	}
	if stored != name {
		if err := s.SetMetadata(keyModel, name); err != nil {
			return purged, fmt.Errorf("write %s: %w", keyModel, err)
		}
	}
	return purged, nil
}

// Model returns the model name recorded for the cache.
func (s *Store) Model() (string, error) {
	return s.GetMetadata(keyModel)
}
