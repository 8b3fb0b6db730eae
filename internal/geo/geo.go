// Package geo holds the small amount of spherical geometry the pipeline needs:
// great-circle distance and an axis-aligned lat/lon bounding box.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by HaversineKm.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres between two
// points given in decimal degrees. The result is symmetric in its endpoints
// and exactly zero for identical points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	// Rounding can leave a just outside [0, 1] for antipodal points.
	a = math.Min(1, math.Max(0, a))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// BoundingBox is a closed lat/lon rectangle. Points on an edge are inside.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// NYC covers the five boroughs plus the airports.
var NYC = BoundingBox{
	MinLat: 40.4774,
	MaxLat: 40.9176,
	MinLon: -74.2591,
	MaxLon: -73.7004,
}

// Contains reports whether the point lies inside b, edges included.
// NaN coordinates are never inside.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}
