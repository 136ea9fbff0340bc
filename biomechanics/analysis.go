// Package biomechanics turns the keypoints of a single pose frame into
// joint angle metrics. Every function is pure: inputs are never modified
// and nothing is retained between calls.
package biomechanics

import "github.com/Tutortoise/pose-metrics-service/models"

type BodyAngles struct {
	ElbowAngles        SideAngles `json:"elbowAngles"`
	KneeAngles         SideAngles `json:"kneeAngles"`
	ArmpitAngles       SideAngles `json:"armpitAngles"`
	LegSeparationAngle SideAngles `json:"legSeparationAngle"`
}

// LegSeparationTotal is the full angle between the legs.
func (b BodyAngles) LegSeparationTotal() Angle {
	l, r := b.LegSeparationAngle.Left, b.LegSeparationAngle.Right
	if !l.Valid || !r.Valid {
		return Unavailable
	}
	return Degrees(l.Degrees + r.Degrees)
}

type Analysis struct {
	// Keypoints are the filtered keypoints, plus the centre of mass when
	// it could be derived.
	Keypoints    []models.Keypoint
	CentreOfMass *models.Keypoint
	Angles       BodyAngles
}

// Analyze runs the full pipeline over one frame.
func Analyze(frame []models.Keypoint, cfg Config) Analysis {
	filtered := FilterKeypoints(frame, cfg.MinScore)

	working := make([]models.Keypoint, 0, len(filtered)+1)
	for _, k := range filtered {
		if k.Name != models.CentreOfMass {
			working = append(working, k)
		}
	}

	idx := NewKeypointIndex(working)

	var com *models.Keypoint
	if c, ok := CentreOfMass(idx, cfg.LandmarkPairs, cfg.Weighting); ok {
		working = append(working, c)
		idx[models.CentreOfMass] = c
		com = &c
	}

	return Analysis{
		Keypoints:    working,
		CentreOfMass: com,
		Angles: BodyAngles{
			ElbowAngles:        BilateralAngles(idx, ElbowPattern),
			KneeAngles:         BilateralAngles(idx, KneePattern),
			ArmpitAngles:       ArmpitAngles(idx),
			LegSeparationAngle: LegSeparationAngles(idx),
		},
	}
}
