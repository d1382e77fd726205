package analytics

import "math"

// Rate returns numerator/denominator as a percentage rounded to two
// decimal places. A zero denominator yields 0, never NaN.
func Rate(numerator, denominator int64) float64 {
	if denominator == 0 {
		return 0
	}
	return math.Round(float64(numerator)/float64(denominator)*10000) / 100
}

// DeliveryRate is delivered-or-later over sent-or-later.
func DeliveryRate(c StatusCounts) float64 {
	return Rate(c.DeliveredOrLater(), c.SentOrLater())
}

// OpenRate is opened-or-later over delivered-or-later.
func OpenRate(c StatusCounts) float64 {
	return Rate(c.OpenedOrLater(), c.DeliveredOrLater())
}

// ClickRate is clicked over opened-or-later.
func ClickRate(c StatusCounts) float64 {
	return Rate(c.Clicked, c.OpenedOrLater())
}

// BounceRate is bounced over sent-or-later.
func BounceRate(c StatusCounts) float64 {
	return Rate(c.Bounced, c.SentOrLater())
}

// FailureRate is failed over total attempts.
func FailureRate(c StatusCounts) float64 {
	return Rate(c.Failed, c.Total())
}
