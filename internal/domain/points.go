package domain

import (
	"fmt"
	"math"
)

// MaxPointsPerLog is the largest points_earned a single log can store.
const MaxPointsPerLog = math.MaxInt32

// ComputePoints converts a logged amount into integer points by flooring
// amount * pointsPerUnit. Products that are not finite, negative or above
// MaxPointsPerLog are rejected with ErrInvalidAmount.
func ComputePoints(amount, pointsPerUnit float64) (int, error) {
	points := math.Floor(amount * pointsPerUnit)
	if math.IsNaN(points) || math.IsInf(points, 0) || points < 0 || points > MaxPointsPerLog {
		return 0, fmt.Errorf("%w: %g units exceed the points limit", ErrInvalidAmount, amount)
	}
	return int(points), nil
}

// ValidateAmount rejects non-positive and non-finite amounts.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
