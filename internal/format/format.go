package format

import (
	"unicode/utf8"

	"github.com/tinytelemetry/mcbroken/internal/model"
)

// ErrNoLocationsFound is returned when there is nothing to deliver.
var ErrNoLocationsFound = model.Fail(model.CodeNoLocationsFound, nil)

// Field capacities of the peer's fixed-size record buffers, excluding the
// terminating NUL.
const (
	StreetCapacity      = 84
	CityCapacity        = 19
	LastCheckedCapacity = 39
	DotCapacity         = 9
)

// Format projects ordered candidates into peer records for session sessionID.
// Internal-only fields are dropped; index and count describe the position in
// the result set.
func Format(ordered []model.Candidate, sessionID int) ([]model.DataRecord, error) {
	if len(ordered) == 0 {
		return nil, ErrNoLocationsFound
	}
	if len(ordered) > model.MaxResults {
		ordered = ordered[:model.MaxResults]
	}

	records := make([]model.DataRecord, len(ordered))
	for i, c := range ordered {
		records[i] = model.DataRecord{
			Kind:        model.KindData,
			Index:       i,
			Count:       len(ordered),
			SessionID:   sessionID,
			Street:      clip(c.Street, StreetCapacity),
			City:        clip(c.City, CityCapacity),
			LastChecked: clip(c.LastChecked, LastCheckedCapacity),
			Dot:         clip(c.Dot, DotCapacity),
		}
	}
	return records, nil
}

// clip truncates s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
