package match

import (
	"sort"

	"github.com/golang/geo/s2"
	"github.com/tinytelemetry/mcbroken/internal/model"
)

// DistanceKm returns the great-circle distance between a and b using the
// haversine formula on a sphere of model.EarthRadiusKm.
func DistanceKm(a, b model.Coordinate) float64 {
	from := s2.LatLngFromDegrees(a.Lat, a.Lon)
	to := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return from.Distance(to).Radians() * model.EarthRadiusKm
}

// MatchNearby returns up to model.MaxResults candidates within
// model.NearbyRadiusKm of origin, nearest first. Ties keep feed order.
// The input slice is not modified; results carry their Distance.
func MatchNearby(origin model.Coordinate, candidates []model.Candidate) []model.Candidate {
	return rankWithin(origin, candidates, model.NearbyRadiusKm, model.MaxResults)
}

func rankWithin(origin model.Coordinate, candidates []model.Candidate, radiusKm float64, limit int) []model.Candidate {
	near := make([]model.Candidate, 0, limit)
	for _, c := range candidates {
		d := DistanceKm(origin, c.Coordinate)
		if d > radiusKm {
			continue
		}
		c.Distance = d
		near = append(near, c)
	}

	sort.SliceStable(near, func(i, j int) bool {
		return near[i].Distance < near[j].Distance
	})

	if len(near) > limit {
		near = near[:limit]
	}
	return near
}
