package model

import "time"

// Shared defaults used by both the bridge and the peer emulator.
const (
	DefaultUpstreamURL     = "https://mcbroken.com/markers.json"
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultCacheMaxAge     = 60 * time.Second

	DefaultGPSTimeout    = 12 * time.Second
	DefaultGPSMaximumAge = 30 * time.Second

	DefaultAckTimeout = 10 * time.Second

	// NearbyRadiusKm is five miles.
	NearbyRadiusKm = 8.04672
	EarthRadiusKm  = 6371.0

	MaxResults      = 5
	SavedSlotCount  = 5
	MaxSlotLength   = 90
	MinLabelLength  = 4
	DefaultAPIAddr  = "127.0.0.1:3000"
	DefaultPeerPath = "/peer"
)
