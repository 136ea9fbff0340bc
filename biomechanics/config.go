package biomechanics

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Tutortoise/pose-metrics-service/models"
	"gopkg.in/yaml.v3"
)

const DefaultMinScore = 0.3

// LandmarkPair is a pair of joints contributing to the centre of mass.
type LandmarkPair [2]models.JointName

// DefaultLandmarkPairs covers the limb segments and both girdles.
var DefaultLandmarkPairs = []LandmarkPair{
	{models.LeftShoulder, models.RightShoulder},
	{models.LeftShoulder, models.LeftElbow},
	{models.RightShoulder, models.RightElbow},
	{models.LeftElbow, models.LeftWrist},
	{models.RightElbow, models.RightWrist},
	{models.LeftHip, models.RightHip},
	{models.LeftShoulder, models.LeftHip},
	{models.RightShoulder, models.RightHip},
	{models.LeftHip, models.LeftKnee},
	{models.RightHip, models.RightKnee},
	{models.LeftKnee, models.LeftAnkle},
	{models.RightKnee, models.RightAnkle},
}

// Weighting selects how landmarks shared by several pairs are averaged.
type Weighting int

const (
	// WeightPerLandmark counts each distinct landmark once.
	WeightPerLandmark Weighting = iota
	// WeightPerPairMembership counts a landmark once for every pair it
	// belongs to. Recordings made before deduplication used this.
	WeightPerPairMembership
)

func (w Weighting) String() string {
	switch w {
	case WeightPerLandmark:
		return "landmark"
	case WeightPerPairMembership:
		return "pair"
	default:
		return fmt.Sprintf("weighting(%d)", int(w))
	}
}

func ParseWeighting(s string) (Weighting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "landmark":
		return WeightPerLandmark, nil
	case "pair":
		return WeightPerPairMembership, nil
	default:
		return 0, fmt.Errorf("unknown centre of mass weighting %q", s)
	}
}

type Config struct {
	MinScore      float64
	LandmarkPairs []LandmarkPair
	Weighting     Weighting
}

func DefaultConfig() Config {
	pairs := make([]LandmarkPair, len(DefaultLandmarkPairs))
	copy(pairs, DefaultLandmarkPairs)
	return Config{
		MinScore:      DefaultMinScore,
		LandmarkPairs: pairs,
		Weighting:     WeightPerLandmark,
	}
}

var ErrNoLandmarkPairs = errors.New("no centre of mass landmark pairs configured")

func (c Config) Validate() error {
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("min score %v outside [0,1]", c.MinScore)
	}
	if len(c.LandmarkPairs) == 0 {
		return ErrNoLandmarkPairs
	}
	for i, pair := range c.LandmarkPairs {
		for _, name := range pair {
			if !models.IsBodyJoint(name) {
				return fmt.Errorf("landmark pair %d: unknown joint %q", i, name)
			}
		}
	}
	if c.Weighting != WeightPerLandmark && c.Weighting != WeightPerPairMembership {
		return fmt.Errorf("invalid weighting %s", c.Weighting)
	}
	return nil
}

type landmarkFile struct {
	LandmarkPairs [][]string `yaml:"landmark_pairs"`
}

// LoadLandmarkPairs reads a YAML document of the form
//
//	landmark_pairs:
//	  - [left_shoulder, right_shoulder]
//	  - [left_hip, right_hip]
func LoadLandmarkPairs(r io.Reader) ([]LandmarkPair, error) {
	var doc landmarkFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode landmark pairs: %w", err)
	}
	if len(doc.LandmarkPairs) == 0 {
		return nil, ErrNoLandmarkPairs
	}

	pairs := make([]LandmarkPair, 0, len(doc.LandmarkPairs))
	for i, row := range doc.LandmarkPairs {
		if len(row) != 2 {
			return nil, fmt.Errorf("landmark pair %d: want 2 joints, got %d", i, len(row))
		}
		pair := LandmarkPair{models.JointName(row[0]), models.JointName(row[1])}
		for _, name := range pair {
			if !models.IsBodyJoint(name) {
				return nil, fmt.Errorf("landmark pair %d: unknown joint %q", i, name)
			}
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}
