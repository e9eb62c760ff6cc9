package utils

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const earthRadiusMeters = 6371000.0

// HaversineMeters computes the great-circle distance in meters between two
// GPS coordinates.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// ParseClientTimestamp attempts to parse a device-reported timestamp.
// Returns nil if the string is empty or unparseable; the scan still proceeds
// on server time in that case.
func ParseClientTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		u := t.UTC()
		return &u
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		u := t.UTC()
		return &u
	}
	return nil
}

// DedupKey builds the uniqueness key that collapses concurrent duplicate
// scans: the server timestamp is rounded down to the action point's
// duplicate window so every scan inside one window maps to the same key.
func DedupKey(userID string, actionPointID uint, at time.Time, windowMinutes int) string {
	if windowMinutes <= 0 {
		// No suppression configured; every scan gets its own bucket.
		return fmt.Sprintf("%s:%d:%d", userID, actionPointID, at.UnixNano())
	}
	windowSec := int64(windowMinutes) * 60
	bucket := at.Unix() / windowSec
	return fmt.Sprintf("%s:%d:%d", userID, actionPointID, bucket)
}

// NewScanEventID generates a server-side idempotency key for clients that
// did not supply one.
func NewScanEventID() string {
	return uuid.NewString()
}
