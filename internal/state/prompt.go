// internal/state/prompt.go
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Prompt is a saved question the user can send by name.
type Prompt struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// PromptStore is a JSON-file-backed store for saved prompts.
type PromptStore struct {
	path string
	mu   sync.RWMutex
}

// NewPromptStore creates a new file-backed PromptStore at the given file path.
func NewPromptStore(path string) *PromptStore {
	return &PromptStore{path: path}
}

// Path returns the file path used by this store.
func (s *PromptStore) Path() string {
	return s.path
}

// List returns all prompts. Returns an empty slice if the file doesn't exist.
func (s *PromptStore) List() ([]*Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prompts, err := s.load()
	if err != nil {
		return nil, err
	}
	if prompts == nil {
		return []*Prompt{}, nil
	}
	return prompts, nil
}

// Get finds a prompt by name.
func (s *PromptStore) Get(name string) (*Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prompts, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, p := range prompts {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("prompt not found: %s", name)
}

// Add appends a prompt. Names are unique.
func (s *PromptStore) Add(p *Prompt) error {
	if p.Name == "" || p.Text == "" {
		return fmt.Errorf("prompt name and text are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prompts, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range prompts {
		if existing.Name == p.Name {
			return fmt.Errorf("prompt already exists: %s", p.Name)
		}
	}
	return s.save(append(prompts, p))
}

// Remove deletes a prompt by name.
func (s *PromptStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompts, err := s.load()
	if err != nil {
		return err
	}
	for i, p := range prompts {
		if p.Name == name {
			return s.save(append(prompts[:i], prompts[i+1:]...))
		}
	}
	return fmt.Errorf("prompt not found: %s", name)
}

func (s *PromptStore) load() ([]*Prompt, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read prompts file: %w", err)
	}

	var prompts []*Prompt
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("unmarshal prompts: %w", err)
	}
	return prompts, nil
}

func (s *PromptStore) save(prompts []*Prompt) error {
	data, err := json.MarshalIndent(prompts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal prompts: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("save prompts: %w", err)
	}
	return nil
}
