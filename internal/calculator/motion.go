package calculator

import (
	"fmt"
	"math"
)

var distanceUnits = map[string]float64{ // meters per unit
	"m":  1,
	"km": 1000,
	"mi": 1609.344,
}

var timeUnits = map[string]float64{ // seconds per unit
	"s":   1,
	"min": 60,
	"h":   3600,
}

// MotionInput holds two of the three quantities. Speed is expressed in
// DistanceUnit per TimeUnit.
type MotionInput struct {
	Speed        *float64 `json:"speed,omitempty"`
	Distance     *float64 `json:"distance,omitempty"`
	Time         *float64 `json:"time,omitempty"`
	DistanceUnit string   `json:"distanceUnit"`
	TimeUnit     string   `json:"timeUnit"`
}

// MotionResult has all three quantities in the input units plus SI and km/h speeds.
type MotionResult struct {
	Speed                  float64 `json:"speed"`
	Distance               float64 `json:"distance"`
	Time                   float64 `json:"time"`
	SpeedUnit              string  `json:"speedUnit"`
	SpeedMetersPerSecond   float64 `json:"speedMetersPerSecond"`
	SpeedKilometersPerHour float64 `json:"speedKilometersPerHour"`
}

// SolveMotion computes the missing quantity from speed = distance / time.
func SolveMotion(in MotionInput) (MotionResult, error) {
	if in.DistanceUnit == "" {
		in.DistanceUnit = "km"
	}
	if in.TimeUnit == "" {
		in.TimeUnit = "h"
	}
	dScale, ok := distanceUnits[in.DistanceUnit]
	if !ok {
		return MotionResult{}, fmt.Errorf("%w: distance %q", ErrUnknownUnit, in.DistanceUnit)
	}
	tScale, ok := timeUnits[in.TimeUnit]
	if !ok {
		return MotionResult{}, fmt.Errorf("%w: time %q", ErrUnknownUnit, in.TimeUnit)
	}

	given := 0
	for _, v := range []*float64{in.Speed, in.Distance, in.Time} {
		if v == nil {
			continue
		}
		given++
		if math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
			return MotionResult{}, ErrNonPositiveMotion
		}
	}
	if given != 2 {
		return MotionResult{}, ErrMotionInput
	}

	var r MotionResult
	switch {
	case in.Speed == nil:
		r.Distance, r.Time = *in.Distance, *in.Time
		r.Speed = r.Distance / r.Time
	case in.Distance == nil:
		r.Speed, r.Time = *in.Speed, *in.Time
		r.Distance = r.Speed * r.Time
	default:
		r.Speed, r.Distance = *in.Speed, *in.Distance
		r.Time = r.Distance / r.Speed
	}
	r.SpeedUnit = in.DistanceUnit + "/" + in.TimeUnit
	r.SpeedMetersPerSecond = r.Speed * dScale / tScale
	r.SpeedKilometersPerHour = r.SpeedMetersPerSecond * 3.6
	return r, nil
}
