// Package geo computes straight-line distances between coordinates.
package geo

import (
	"math"
	"strconv"
	"strings"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Distance returns the great-circle distance between a and b in kilometers
// using the haversine formula. Inputs are not range checked.
func Distance(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Asin(math.Sqrt(h))
}

// ParseOrigin parses decimal lat/lng query values. ok is false when either is
// empty or not a number.
func ParseOrigin(lat, lng string) (Point, bool) {
	lat, lng = strings.TrimSpace(lat), strings.TrimSpace(lng)
	if lat == "" || lng == "" {
		return Point{}, false
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return Point{}, false
	}
	lo, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return Point{}, false
	}
	if math.IsNaN(la) || math.IsNaN(lo) || math.IsInf(la, 0) || math.IsInf(lo, 0) {
		return Point{}, false
	}
	return Point{Lat: la, Lng: lo}, true
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
