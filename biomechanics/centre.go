package biomechanics

import "github.com/Tutortoise/pose-metrics-service/models"

// CentreOfMass averages the landmarks named by pairs. It reports false
// when any of them is missing from idx.
func CentreOfMass(idx KeypointIndex, pairs []LandmarkPair, weighting Weighting) (models.Keypoint, bool) {
	if len(pairs) == 0 {
		return models.Keypoint{}, false
	}

	seen := make(map[models.JointName]bool)
	var sumX, sumY float64
	var count int

	for _, pair := range pairs {
		for _, name := range pair {
			k, ok := idx[name]
			if !ok {
				return models.Keypoint{}, false
			}
			if weighting == WeightPerLandmark {
				if seen[name] {
					continue
				}
				seen[name] = true
			}
			sumX += k.X
			sumY += k.Y
			count++
		}
	}

	return models.Keypoint{
		Name:  models.CentreOfMass,
		X:     sumX / float64(count),
		Y:     sumY / float64(count),
		Score: 1,
	}, true
}
