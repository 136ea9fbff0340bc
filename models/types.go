package models

import "time"

// JointName is the canonical name of a body landmark.
type JointName string

const (
	LeftShoulder  JointName = "left_shoulder"
	RightShoulder JointName = "right_shoulder"
	LeftElbow     JointName = "left_elbow"
	RightElbow    JointName = "right_elbow"
	LeftWrist     JointName = "left_wrist"
	RightWrist    JointName = "right_wrist"
	LeftHip       JointName = "left_hip"
	RightHip      JointName = "right_hip"
	LeftKnee      JointName = "left_knee"
	RightKnee     JointName = "right_knee"
	LeftAnkle     JointName = "left_ankle"
	RightAnkle    JointName = "right_ankle"

	// CentreOfMass is reserved for the derived keypoint.
	CentreOfMass JointName = "centre_of_mass"
)

// BodyJoints lists the detected joint vocabulary, upper body first.
var BodyJoints = []JointName{
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftWrist, RightWrist,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
}

// IsBodyJoint reports whether name is one of the detected joints.
func IsBodyJoint(name JointName) bool {
	for _, j := range BodyJoints {
		if j == name {
			return true
		}
	}
	return false
}

type Keypoint struct {
	Name  JointName `json:"name"`
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
	Score float64   `json:"score"`
}

type ProcessingTimings struct {
	RequestID   string
	ImageDecode time.Duration
	Resize      time.Duration
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Analysis    time.Duration
	Total       time.Duration
}
