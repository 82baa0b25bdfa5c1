// Package geo provides great-circle distance and signal propagation math
// shared by the location estimator and relocation manager.
package geo

import "math"

const earthRadiusM = 6371000 // Earth's radius in meters

// DistanceMeters calculates the distance between two coordinates using the
// Haversine formula.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLatRad := (lat2 - lat1) * math.Pi / 180
	deltaLonRad := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLatRad/2)*math.Sin(deltaLatRad/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLonRad/2)*math.Sin(deltaLonRad/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// SignalToDistanceMeters estimates the distance to a transmitter from its
// received signal strength using the free-space path loss model. The
// estimate assumes a 20 dBm transmit power, which is typical for consumer
// WiFi gear; treat the result as an order-of-magnitude hint only.
func SignalToDistanceMeters(signalDBm int, frequencyMHz int) float64 {
	if signalDBm >= 0 {
		return 0
	}
	if frequencyMHz <= 0 {
		frequencyMHz = 2412 // channel 1
	}

	const txPowerDBm = 20.0
	pathLoss := txPowerDBm - float64(signalDBm)

	freqGHz := float64(frequencyMHz) / 1000.0
	distanceKM := math.Pow(10, (pathLoss-20*math.Log10(freqGHz)-32.44)/20)

	return distanceKM * 1000
}
