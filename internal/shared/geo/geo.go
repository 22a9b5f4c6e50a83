package geo

import "math"

const earthRadiusM = 6371000.0

// HaversineM returns the great-circle distance in meters between two
// WGS84 coordinates.
func HaversineM(lat1, lng1, lat2, lng2 float64) float64 {
	if lat1 == lat2 && lng1 == lng2 {
		return 0
	}

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return HaversineM(lat1, lng1, lat2, lng2) / 1000
}

// BearingDeg returns the initial (forward azimuth) bearing in degrees,
// normalized to [0, 360).
func BearingDeg(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// PointToSegmentM returns the distance in meters from a point to the
// great-circle chord between two endpoints. Cross-track distance is used
// while the point projects onto the chord; past either end the nearer
// endpoint distance applies.
func PointToSegmentM(lat, lng, lat1, lng1, lat2, lng2 float64) float64 {
	if lat1 == lat2 && lng1 == lng2 {
		return HaversineM(lat, lng, lat1, lng1)
	}

	d13 := HaversineM(lat1, lng1, lat, lng) / earthRadiusM
	theta13 := BearingDeg(lat1, lng1, lat, lng) * math.Pi / 180
	theta12 := BearingDeg(lat1, lng1, lat2, lng2) * math.Pi / 180

	dxt := math.Asin(math.Sin(d13) * math.Sin(theta13-theta12))

	// Along-track position decides whether the perpendicular foot lies
	// within the segment.
	dat := math.Acos(clamp(math.Cos(d13)/math.Cos(dxt), -1, 1))
	if math.Cos(theta13-theta12) < 0 {
		return HaversineM(lat, lng, lat1, lng1)
	}
	d12 := HaversineM(lat1, lng1, lat2, lng2) / earthRadiusM
	if dat > d12 {
		return HaversineM(lat, lng, lat2, lng2)
	}
	return math.Abs(dxt) * earthRadiusM
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
