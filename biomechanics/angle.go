package biomechanics

import (
	"bytes"
	"math"
	"strconv"

	"github.com/Tutortoise/pose-metrics-service/models"
)

type Point struct {
	X, Y float64
}

func pointOf(k models.Keypoint) Point {
	return Point{X: k.X, Y: k.Y}
}

// Angle is a measurement in degrees that may be unavailable.
// Unavailable angles encode as JSON null.
type Angle struct {
	Degrees float64
	Valid   bool
}

func Degrees(v float64) Angle {
	return Angle{Degrees: v, Valid: true}
}

var Unavailable = Angle{}

func (a Angle) Half() Angle {
	if !a.Valid {
		return Unavailable
	}
	return Degrees(a.Degrees / 2)
}

func (a Angle) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, a.Degrees, 'f', -1, 64), nil
}

func (a *Angle) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = Unavailable
		return nil
	}
	v, err := strconv.ParseFloat(string(bytes.TrimSpace(data)), 64)
	if err != nil {
		return err
	}
	*a = Degrees(v)
	return nil
}

// JointAngle returns the angle ABC in degrees, rounded to two decimals.
// A zero-length ray yields 0.
func JointAngle(a, b, c Point) float64 {
	deg, ok := vertexAngle(a, b, c)
	if !ok {
		return 0
	}
	return deg
}

// MeasureAngle is JointAngle with a zero-length ray reported as Unavailable.
func MeasureAngle(a, b, c Point) Angle {
	deg, ok := vertexAngle(a, b, c)
	if !ok {
		return Unavailable
	}
	return Degrees(deg)
}

func vertexAngle(a, b, c Point) (float64, bool) {
	bax, bay := a.X-b.X, a.Y-b.Y
	bcx, bcy := c.X-b.X, c.Y-b.Y

	magBA := math.Hypot(bax, bay)
	magBC := math.Hypot(bcx, bcy)
	if magBA == 0 || magBC == 0 {
		return 0, false
	}

	cos := (bax*bcx + bay*bcy) / (magBA * magBC)
	cos = math.Max(-1, math.Min(1, cos))

	return roundTo2(math.Acos(cos) * 180 / math.Pi), true
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}
