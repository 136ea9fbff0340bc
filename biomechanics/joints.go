package biomechanics

import "github.com/Tutortoise/pose-metrics-service/models"

type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// Sides lists both sides in report order.
var Sides = []Side{Left, Right}

// Segment is a joint name without its side prefix, e.g. "elbow".
type Segment string

const (
	Shoulder Segment = "shoulder"
	Elbow    Segment = "elbow"
	Wrist    Segment = "wrist"
	Hip      Segment = "hip"
	Knee     Segment = "knee"
	Ankle    Segment = "ankle"
)

func (s Side) Joint(seg Segment) models.JointName {
	return models.JointName(string(s) + "_" + string(seg))
}

// SideAngles holds one measurement per side of the body.
type SideAngles struct {
	Left  Angle `json:"left"`
	Right Angle `json:"right"`
}

func (sa SideAngles) Get(s Side) Angle {
	if s == Right {
		return sa.Right
	}
	return sa.Left
}

var (
	ElbowPattern = [3]Segment{Shoulder, Elbow, Wrist}
	KneePattern  = [3]Segment{Hip, Knee, Ankle}
)

// BilateralAngles measures pattern[1] as the vertex between pattern[0]
// and pattern[2] on each side independently.
func BilateralAngles(idx KeypointIndex, pattern [3]Segment) SideAngles {
	return SideAngles{
		Left:  sideAngle(idx, Left, pattern),
		Right: sideAngle(idx, Right, pattern),
	}
}

func sideAngle(idx KeypointIndex, s Side, pattern [3]Segment) Angle {
	pts, ok := idx.Points(s.Joint(pattern[0]), s.Joint(pattern[1]), s.Joint(pattern[2]))
	if !ok {
		return Unavailable
	}
	return MeasureAngle(pts[0], pts[1], pts[2])
}

// ArmpitAngles measures hip-shoulder-elbow with the shoulder as vertex.
func ArmpitAngles(idx KeypointIndex) SideAngles {
	return BilateralAngles(idx, [3]Segment{Hip, Shoulder, Elbow})
}

// LegSeparationAngles measures the ankle-centre of mass-ankle angle and
// reports half of it on each side. The split is symmetric by construction;
// it is not a per-leg measurement.
func LegSeparationAngles(idx KeypointIndex) SideAngles {
	pts, ok := idx.Points(models.LeftAnkle, models.CentreOfMass, models.RightAnkle)
	if !ok {
		return SideAngles{Left: Unavailable, Right: Unavailable}
	}
	half := MeasureAngle(pts[0], pts[1], pts[2]).Half()
	return SideAngles{Left: half, Right: half}
}
