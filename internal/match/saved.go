package match

import (
	"strings"
	"unicode/utf8"

	"github.com/tinytelemetry/mcbroken/internal/model"
)

// ErrNoSavedLocations is returned when every saved slot is blank.
var ErrNoSavedLocations = model.Fail(model.CodeNoSavedLocations, nil)

// MatchSaved selects, for each non-empty slot in order, the first candidate
// whose street contains the label. When that candidate was already picked by
// an earlier slot the later slot gets a placeholder instead; labels shorter
// than model.MinLabelLength never match.
// Misses become placeholders so output positions follow the slots.
func MatchSaved(slots model.SavedSlots, candidates []model.Candidate) ([]model.Candidate, error) {
	if slots.Empty() {
		return nil, ErrNoSavedLocations
	}

	// Streets are normalized lazily: most labels hit early in the feed.
	streets := make([]string, len(candidates))
	normalized := make([]bool, len(candidates))
	street := func(i int) string {
		if !normalized[i] {
			streets[i] = strings.ToLower(strings.TrimSpace(candidates[i].Street))
			normalized[i] = true
		}
		return streets[i]
	}

	claimed := make(map[int]struct{})
	results := make([]model.Candidate, 0, model.MaxResults)

	for _, label := range slots.Normalized() {
		if label == "" {
			continue
		}
		if len(results) == model.MaxResults {
			break
		}

		picked := -1
		if utf8.RuneCountInString(label) >= model.MinLabelLength {
			for i := range candidates {
				if strings.Contains(street(i), label) {
					picked = i
					break
				}
			}
		}

		if _, taken := claimed[picked]; picked < 0 || taken {
			results = append(results, model.Placeholder())
			continue
		}
		claimed[picked] = struct{}{}
		results = append(results, candidates[picked])
	}
	return results, nil
}
