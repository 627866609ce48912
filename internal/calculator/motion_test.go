package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestSolveMotion(t *testing.T) {
	r, err := SolveMotion(MotionInput{Distance: f(120), Time: f(2)})
	require.NoError(t, err)
	assert.Equal(t, 60.0, r.Speed)
	assert.Equal(t, "km/h", r.SpeedUnit)
	assert.InDelta(t, 16.6667, r.SpeedMetersPerSecond, 1e-3)
	assert.InDelta(t, 60, r.SpeedKilometersPerHour, 1e-9)

	r, err = SolveMotion(MotionInput{Speed: f(10), Time: f(30), DistanceUnit: "m", TimeUnit: "s"})
	require.NoError(t, err)
	assert.Equal(t, 300.0, r.Distance)
	assert.InDelta(t, 36, r.SpeedKilometersPerHour, 1e-9)

	r, err = SolveMotion(MotionInput{Speed: f(50), Distance: f(125), DistanceUnit: "mi", TimeUnit: "h"})
	require.NoError(t, err)
	assert.Equal(t, 2.5, r.Time)
}

func TestSolveMotionErrors(t *testing.T) {
	_, err := SolveMotion(MotionInput{Speed: f(1)})
	assert.ErrorIs(t, err, ErrMotionInput)

	_, err = SolveMotion(MotionInput{Speed: f(1), Distance: f(2), Time: f(3)})
	assert.ErrorIs(t, err, ErrMotionInput)

	_, err = SolveMotion(MotionInput{Distance: f(10), Time: f(0)})
	assert.ErrorIs(t, err, ErrNonPositiveMotion)

	_, err = SolveMotion(MotionInput{Distance: f(10), Time: f(1), DistanceUnit: "yd"})
	assert.ErrorIs(t, err, ErrUnknownUnit)
}
