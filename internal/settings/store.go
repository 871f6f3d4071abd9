package settings

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/tinytelemetry/mcbroken/internal/model"
	"gopkg.in/yaml.v3"
)

var (
	// ErrTooManySlots rejects an update with more than five labels.
	ErrTooManySlots = fmt.Errorf("settings: at most %d saved slots", model.SavedSlotCount)
	// ErrSlotTooLong rejects a label over the peer's input limit.
	ErrSlotTooLong = fmt.Errorf("settings: saved slot longer than %d characters", model.MaxSlotLength)
)

type fileFormat struct {
	Slots []string `yaml:"slots"`
}

// Store holds the saved slots and persists them as YAML. An empty path keeps
// them in memory only.
type Store struct {
	path string

	mu    sync.RWMutex
	slots model.SavedSlots
}

// Open loads slots from path. When the file does not exist, seed is used and
// written out on the first update.
func Open(path string, seed []string) (*Store, error) {
	s := &Store{path: path}
	if err := Validate(seed); err != nil {
		return nil, fmt.Errorf("settings: seed: %w", err)
	}
	s.slots = model.SlotsFromList(seed)

	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}

	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	if err := Validate(ff.Slots); err != nil {
		return nil, fmt.Errorf("settings: %s: %w", path, err)
	}
	s.slots = model.SlotsFromList(ff.Slots)
	log.Printf("settings: loaded %d saved slots from %s", countFilled(s.slots), path)
	return s, nil
}

// Slots returns a copy of the current slots.
func (s *Store) Slots() model.SavedSlots {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots
}

// Replace validates labels, swaps them in and persists them.
func (s *Store) Replace(labels []string) (model.SavedSlots, error) {
	if err := Validate(labels); err != nil {
		return model.SavedSlots{}, err
	}
	next := model.SlotsFromList(labels)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(next); err != nil {
		return model.SavedSlots{}, err
	}
	s.slots = next
	return next, nil
}

func (s *Store) persist(slots model.SavedSlots) error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(fileFormat{Slots: slots[:]})
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("settings: create dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("settings: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("settings: rename: %w", err)
	}
	return nil
}

// Validate checks a label list against the slot count and length limits.
func Validate(labels []string) error {
	if len(labels) > model.SavedSlotCount {
		return ErrTooManySlots
	}
	for i, l := range labels {
		if utf8.RuneCountInString(l) > model.MaxSlotLength {
			return fmt.Errorf("slot %d: %w", i+1, ErrSlotTooLong)
		}
	}
	return nil
}

func countFilled(slots model.SavedSlots) int {
	n := 0
	for _, l := range slots.Normalized() {
		if l != "" {
			n++
		}
	}
	return n
}
