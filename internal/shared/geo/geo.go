package geo

import "math"

// EarthRadiusM is the mean radius of the spherical Earth model, in meters.
const EarthRadiusM = 6371000.0

// HaversineM returns the great-circle distance in meters between two
// coordinates given in degrees.
func HaversineM(lat1, lng1, lat2, lng2 float64) float64 {
	const toRad = math.Pi / 180

	phi1 := lat1 * toRad
	phi2 := lat2 * toRad
	dPhi := (lat2 - lat1) * toRad
	dLambda := (lng2 - lng1) * toRad

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda

	// rounding can push a just outside [0,1]; sqrt of a negative is NaN
	if a < 0 {
		a = 0
	} else if a > 1 {
		a = 1
	}
	return EarthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// HaversineKm is HaversineM in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return HaversineM(lat1, lng1, lat2, lng2) / 1000
}
