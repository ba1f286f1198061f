package dispatch

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

func validateCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return &ValidationError{Field: "lat", Message: fmt.Sprintf("latitude %v out of range [-90, 90]", lat)}
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return &ValidationError{Field: "lon", Message: fmt.Sprintf("longitude %v out of range [-180, 180]", lon)}
	}
	return nil
}

// validateOptionalCoordinate requires both or neither coordinate.
func validateOptionalCoordinate(lat, lon *float64) error {
	if lat == nil && lon == nil {
		return nil
	}
	if lat == nil || lon == nil {
		return &ValidationError{Field: "lat/lon", Message: "latitude and longitude must be sent together"}
	}
	return validateCoordinate(*lat, *lon)
}

// distanceMeters is the great-circle distance between two lat/lon pairs.
func distanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	// orb points are (lon, lat)
	return geo.Distance(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}
