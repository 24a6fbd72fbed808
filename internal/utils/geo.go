package utils

import (
	"fmt"
	"math"
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) ToCoordinates() []float64 {
	return []float64{p.Lng, p.Lat}
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

func NewPointFromCoordinates(coordinates []float64) Point {
	if len(coordinates) >= 2 {
		return Point{Lat: coordinates[1], Lng: coordinates[0]}
	}
	return Point{}
}

func IsValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func NormalizeCoordinates(lat, lng float64) (float64, float64) {
	// Normalize latitude to [-90, 90]
	if lat > 90 {
		lat = 90
	} else if lat < -90 {
		lat = -90
	}

	// Normalize longitude to [-180, 180]
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}

	return lat, lng
}

func IsPointInCircle(point Point, center Point, radiusMeters float64) bool {
	return IsWithinRadiusMeters(center.Lat, center.Lng, point.Lat, point.Lng, radiusMeters)
}

// MaskCoordinate rounds a coordinate down to MaskedCoordinatePlaces decimal
// degrees (~1.1km at the equator). Applied as a read-time projection for
// observers without precise-location consent; stored samples are untouched.
func MaskCoordinate(value float64) float64 {
	factor := math.Pow(10, MaskedCoordinatePlaces)
	return math.Round(value*factor) / factor
}

func MaskPoint(p Point) Point {
	return Point{
		Lat: MaskCoordinate(p.Lat),
		Lng: MaskCoordinate(p.Lng),
	}
}
