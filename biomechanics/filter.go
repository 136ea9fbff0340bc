package biomechanics

import "github.com/Tutortoise/pose-metrics-service/models"

// FilterKeypoints returns the keypoints scoring strictly above minScore,
// in their original order. The input slice is not modified.
func FilterKeypoints(frame []models.Keypoint, minScore float64) []models.Keypoint {
	kept := make([]models.Keypoint, 0, len(frame))
	for _, k := range frame {
		if k.Score > minScore {
			kept = append(kept, k)
		}
	}
	return kept
}

// KeypointIndex maps joint names to keypoints of a single frame.
type KeypointIndex map[models.JointName]models.Keypoint

// NewKeypointIndex indexes keypoints by name. The first keypoint wins
// when a name repeats.
func NewKeypointIndex(keypoints []models.Keypoint) KeypointIndex {
	idx := make(KeypointIndex, len(keypoints))
	for _, k := range keypoints {
		if _, ok := idx[k.Name]; !ok {
			idx[k.Name] = k
		}
	}
	return idx
}

// Points looks up every name and reports false if any is missing.
func (idx KeypointIndex) Points(names ...models.JointName) ([]Point, bool) {
	points := make([]Point, len(names))
	for i, name := range names {
		k, ok := idx[name]
		if !ok {
			return nil, false
		}
		points[i] = pointOf(k)
	}
	return points, true
}
