// Package geo has the small amount of spherical geometry needed for
// nearby-post lookups.
package geo

import "math"

const earthRadiusKm = 6371.0

// boxPadding inflates the angular radius so a point at exactly the radius
// stays inside the box despite floating-point rounding in the haversine
// round trip.
const boxPadding = 1 + 1e-9

// DistanceKm returns the great-circle distance between two coordinates using
// the haversine formula.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// BoundingBox returns a latitude/longitude box that contains every point
// within radiusKm of the center. The box widens near the poles; callers must
// still filter by exact distance.
func BoundingBox(lat, lng, radiusKm float64) (minLat, maxLat, minLng, maxLng float64) {
	angular := radiusKm / earthRadiusKm * boxPadding
	latDelta := degrees(angular)
	minLat = clampLat(lat - latDelta)
	maxLat = clampLat(lat + latDelta)

	// A circle that reaches a pole spans every longitude.
	if lat+latDelta >= 90 || lat-latDelta <= -90 {
		return minLat, maxLat, -180, 180
	}

	// The circle's widest longitudes sit poleward of the center latitude,
	// so the delta needs asin rather than a plain cosine scale.
	lngDelta := degrees(math.Asin(math.Sin(angular) / math.Cos(radians(lat))))
	return minLat, maxLat, lng - lngDelta, lng + lngDelta
}

func clampLat(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
