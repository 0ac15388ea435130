package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/ports"
)

// FileStore keeps the durable state in a single JSON file, written
// atomically via rename. The token is a credential, so the file is 0600.
type FileStore struct {
	path string

	mu sync.Mutex
}

var _ ports.StateStore = (*FileStore)(nil)

type fileState struct {
	Token    string `json:"token,omitempty"`
	Language string `json:"language,omitempty"`
}

// NewFileStore creates a store at path, creating parent directories as needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// DefaultStatePath returns the per-user location of the state file.
func DefaultStatePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "deskd", "state.json"), nil
}

func (s *FileStore) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return "", err
	}
	return st.Token, nil
}

func (s *FileStore) SetToken(_ context.Context, token string) error {
	return s.update(func(st *fileState) { st.Token = token })
}

func (s *FileStore) ClearToken(_ context.Context) error {
	return s.update(func(st *fileState) { st.Token = "" })
}

func (s *FileStore) Language(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return "", err
	}
	return domain.NormalizeLanguage(st.Language), nil
}

func (s *FileStore) SetLanguage(_ context.Context, lang string) error {
	return s.update(func(st *fileState) { st.Language = domain.NormalizeLanguage(lang) })
}

func (s *FileStore) update(mutate func(*fileState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return err
	}
	mutate(&st)
	return s.write(st)
}

// read returns the zero state when the file does not exist yet.
func (s *FileStore) read() (fileState, error) {
	var st fileState
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return fileState{}, fmt.Errorf("decode state: %w", err)
	}
	return st, nil
}

func (s *FileStore) write(st fileState) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
