package settings

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinytelemetry/mcbroken/internal/model"
)

func TestOpenUsesSeedWhenFileMissing(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "slots.yml")
	s, err := Open(path, []string{"main st", "abbey"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got := s.Slots()
	if got[0] != "main st" || got[1] != "abbey" || got[2] != "" {
		t.Fatalf("slots = %q", got)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("seed should not be written until an update, stat err = %v", err)
	}
}

func TestReplacePersists(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "slots.yml")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Replace([]string{"", "5th ave", "", "", "harbour rd"}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	reopened, err := Open(path, []string{"ignored"})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	want := model.SavedSlots{"", "5th ave", "", "", "harbour rd"}
	if reopened.Slots() != want {
		t.Fatalf("reopened slots = %q, want %q", reopened.Slots(), want)
	}
}

func TestReplaceValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		labels []string
		want   error
	}{
		{"six slots", []string{"a", "b", "c", "d", "e", "f"}, ErrTooManySlots},
		{"long slot", []string{strings.Repeat("x", model.MaxSlotLength+1)}, ErrSlotTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := Open("", []string{"keep"})
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if _, err := s.Replace(tt.labels); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if s.Slots()[0] != "keep" {
				t.Fatal("rejected update changed the slots")
			}
		})
	}
}

func TestValidateCountsRunes(t *testing.T) {
	t.Parallel()
	if err := Validate([]string{strings.Repeat("é", model.MaxSlotLength)}); err != nil {
		t.Fatalf("90 two-byte runes rejected: %v", err)
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "slots.yml")
	if err := os.WriteFile(path, []byte("slots: [a, b, c, d, e, f]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, nil); !errors.Is(err, ErrTooManySlots) {
		t.Fatalf("err = %v, want ErrTooManySlots", err)
	}
}
