package services

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"quiz-ai/internal/models"
)

// ProfileStore persists the user profile as a single JSON document.
//
// Update is an unlocked read-modify-write. The app is meant for one local user, so two
// writers racing on the file is a known limitation rather than something to coordinate.
type ProfileStore struct {
	path string
}

func NewProfileStore(path string) *ProfileStore {
	return &ProfileStore{path: path}
}

func (s *ProfileStore) Path() string { return s.path }

// Read returns the stored profile. A missing file is an empty profile, not an error.
func (s *ProfileStore) Read() (models.UserProfile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.UserProfile{}, nil
		}
		return models.UserProfile{}, &PersistenceError{Op: "read", Path: s.path, Err: err}
	}

	profile := models.UserProfile{}
	if len(data) == 0 {
		return profile, nil
	}
	if err := json.Unmarshal(data, &profile); err != nil {
		return models.UserProfile{}, &PersistenceError{Op: "decode", Path: s.path, Err: err}
	}
	return profile, nil
}

// Update sets key to value. An unreadable existing document is replaced.
func (s *ProfileStore) Update(key, value string) error {
	profile, err := s.Read()
	if err != nil {
		profile = models.UserProfile{}
	}
	profile[key] = value

	data, err := json.MarshalIndent(profile, "", "    ")
	if err != nil {
		return &PersistenceError{Op: "encode", Path: s.path, Err: err}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return &PersistenceError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}
