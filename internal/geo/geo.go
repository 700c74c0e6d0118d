// Package geo holds the small amount of spherical math the feed needs:
// great-circle distance and a bounding box for index-friendly radius queries.
package geo

import "math"

const earthRadiusKm = 6371.0

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IsZero reports whether p is the (0,0) "no location" sentinel.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lon == 0
}

// Valid reports whether p lies within the legal coordinate ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// DistanceKm returns the haversine distance between a and b.
func DistanceKm(a, b Point) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Box is an axis-aligned latitude/longitude rectangle.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoundingBox returns a box containing every point within radiusKm of center.
// Near the poles the longitude span widens to the full circle.
func BoundingBox(center Point, radiusKm float64) Box {
	dLat := degrees(radiusKm / earthRadiusKm)
	b := Box{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
		MinLon: -180,
		MaxLon: 180,
	}
	cos := math.Cos(radians(center.Lat))
	if cos > 1e-9 {
		dLon := degrees(radiusKm / (earthRadiusKm * cos))
		if dLon < 180 {
			b.MinLon = center.Lon - dLon
			b.MaxLon = center.Lon + dLon
		}
	}
	return b
}

// Contains reports whether p falls inside the box. Boxes that cross the
// antimeridian are not split; callers re-check with DistanceKm.
func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
