package feed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tinytelemetry/mcbroken/internal/model"
)

type featureCollection struct {
	Features *[]feature `json:"features"`
}

type feature struct {
	Geometry   geometry   `json:"geometry"`
	Properties properties `json:"properties"`
}

type geometry struct {
	Coordinates []float64 `json:"coordinates"` // [lon, lat]
}

type properties struct {
	Street      *string `json:"street"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	Country     *string `json:"country"`
	IsBroken    bool    `json:"is_broken"`
	IsActive    bool    `json:"is_active"`
	LastChecked *string `json:"last_checked"`
	Dot         *string `json:"dot"`
}

// decodeMarkers parses the upstream feature collection. Any structural
// problem rejects the whole payload; partial datasets are never returned.
func decodeMarkers(data []byte) ([]model.Candidate, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("feed: decode: %w", err)
	}
	if fc.Features == nil {
		return nil, errors.New("feed: decode: missing features array")
	}

	out := make([]model.Candidate, 0, len(*fc.Features))
	for i, f := range *fc.Features {
		if len(f.Geometry.Coordinates) < 2 {
			return nil, fmt.Errorf("feed: decode: feature %d: want [lon, lat], got %d values", i, len(f.Geometry.Coordinates))
		}
		if f.Properties.Street == nil {
			return nil, fmt.Errorf("feed: decode: feature %d: missing street", i)
		}
		out = append(out, model.Candidate{
			Street:  *f.Properties.Street,
			City:    deref(f.Properties.City),
			State:   deref(f.Properties.State),
			Country: deref(f.Properties.Country),
			Coordinate: model.Coordinate{
				Lat: f.Geometry.Coordinates[1],
				Lon: f.Geometry.Coordinates[0],
			},
			IsBroken:    f.Properties.IsBroken,
			IsActive:    f.Properties.IsActive,
			LastChecked: deref(f.Properties.LastChecked),
			Dot:         deref(f.Properties.Dot),
		})
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
