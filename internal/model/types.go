package model

import "strings"

// Coordinate is a WGS 84 position in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies within the latitude/longitude ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Candidate is one point of interest from the upstream feed.
// It is the canonical type passed between the cache, the selectors and the formatter.
type Candidate struct {
	Street      string
	City        string
	State       string
	Country     string
	Coordinate  Coordinate
	IsBroken    bool
	IsActive    bool
	Dot         string  // "working", "broken", "inactive", ...
	LastChecked string  // human readable, e.g. "Checked 4 minutes ago"
	Distance    float64 // km from the origin; set by the proximity ranker only

	Placeholder bool // synthesized for a saved label with no match
}

// Placeholder returns the synthesized "not found" candidate used when a saved
// label has no match. It keeps positional correspondence with the saved slots.
func Placeholder() Candidate {
	return Candidate{
		Street:      "Location not found",
		City:        "Check address",
		Dot:         "...",
		LastChecked: "Checked 67 minutes ago",
		IsBroken:    true,
		IsActive:    false,
		Placeholder: true,
	}
}

// SavedSlots holds the user's saved street labels in slot order.
// Empty strings mark unused slots.
type SavedSlots [SavedSlotCount]string

// Normalized returns each slot trimmed and lowercased.
func (s SavedSlots) Normalized() SavedSlots {
	var out SavedSlots
	for i, label := range s {
		out[i] = strings.ToLower(strings.TrimSpace(label))
	}
	return out
}

// Empty reports whether every slot is blank after trimming.
func (s SavedSlots) Empty() bool {
	for _, label := range s {
		if strings.TrimSpace(label) != "" {
			return false
		}
	}
	return true
}

// SlotsFromList copies up to SavedSlotCount labels into a SavedSlots value.
func SlotsFromList(labels []string) SavedSlots {
	var s SavedSlots
	copy(s[:], labels)
	return s
}
