package storage

import (
	"encoding/json"
	"fmt"

	"github.com/peterbourgon/diskv/v3"
)

const viewStateKey = "browse"

// ViewState is what the browser restores on the next start: the calendar
// granularity and reference date, and which tree nodes were expanded.
type ViewState struct {
	Granularity string  `json:"granularity"`
	Date        string  `json:"date"`
	Expanded    []int64 `json:"expanded,omitempty"`
}

// ViewStateStore persists ViewState between runs.
type ViewStateStore interface {
	Load() (ViewState, error)
	Save(state ViewState) error
	Reset() error
}

type diskvViewStateStore struct {
	d *diskv.Diskv
}

// NewViewStateStore keeps view state under dir using diskv.
func NewViewStateStore(dir string) ViewStateStore {
	return &diskvViewStateStore{d: diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: 64 * 1024,
	})}
}

// Load returns the saved state, or the zero state when nothing was saved.
func (s *diskvViewStateStore) Load() (ViewState, error) {
	if !s.d.Has(viewStateKey) {
		return ViewState{}, nil
	}
	raw, err := s.d.Read(viewStateKey)
	if err != nil {
		return ViewState{}, fmt.Errorf("reading view state: %w", err)
	}
	var st ViewState
	if err := json.Unmarshal(raw, &st); err != nil {
		return ViewState{}, fmt.Errorf("decoding view state: %w", err)
	}
	return st, nil
}

func (s *diskvViewStateStore) Save(state ViewState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding view state: %w", err)
	}
	if err := s.d.Write(viewStateKey, raw); err != nil {
		return fmt.Errorf("writing view state: %w", err)
	}
	return nil
}

// Reset forgets the saved state.
func (s *diskvViewStateStore) Reset() error {
	if !s.d.Has(viewStateKey) {
		return nil
	}
	if err := s.d.Erase(viewStateKey); err != nil {
		return fmt.Errorf("erasing view state: %w", err)
	}
	return nil
}
