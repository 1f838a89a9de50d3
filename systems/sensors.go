package systems

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// NumSensors is the number of proximity lines fanned around a car's heading.
const NumSensors = 5

// RayCaster finds the nearest static geometry along a ray.
type RayCaster interface {
	RayCast(origin, dir r2.Vec, length float64) (float64, bool)
}

// ProximitySensor is a line cast from the sensor origin at Offset radians
// from the body heading.
type ProximitySensor struct {
	Offset float64
	Length float64
}

// SensorReading is the result of one proximity cast.
type SensorReading struct {
	Start    r2.Vec
	Angle    float64 // absolute angle of the cast
	Length   float64
	Distance float64 // distance to the hit, Length when nothing was hit
	Value    float64 // Distance/Length, so 1 is clear and 0 is touching
}

// End returns the point where the cast stopped.
func (r SensorReading) End() r2.Vec {
	return r2.Add(r.Start, r2.Scale(r.Distance, Heading(r.Angle)))
}

// FanSensors spreads n sensors evenly over spread radians centred on the heading.
func FanSensors(n int, length, spread float64) []ProximitySensor {
	sensors := make([]ProximitySensor, n)
	for i := range sensors {
		offset := 0.0
		if n > 1 {
			offset = -spread/2 + spread*float64(i)/float64(n-1)
		}
		sensors[i] = ProximitySensor{Offset: offset, Length: length}
	}
	return sensors
}

// Sense casts every sensor from origin and writes the readings into dst,
// which is grown as needed and returned.
func Sense(caster RayCaster, origin r2.Vec, heading float64, sensors []ProximitySensor, dst []SensorReading) []SensorReading {
	dst = dst[:0]
	for _, s := range sensors {
		angle := heading + s.Offset
		r := SensorReading{Start: origin, Angle: angle, Length: s.Length, Distance: s.Length, Value: 1}
		if caster != nil {
			if d, ok := caster.RayCast(origin, Heading(angle), s.Length); ok {
				r.Distance = d
			}
		}
		if s.Length > 0 {
			r.Value = clamp01(r.Distance / s.Length)
		}
		dst = append(dst, r)
	}
	return dst
}
