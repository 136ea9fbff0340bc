package detections

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/Tutortoise/pose-metrics-service/models"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
)

// PoseSession is one loaded pose model with its bound tensors.
// It is not safe for concurrent use.
type PoseSession struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[int32]
	Output  *ort.Tensor[float32]
}

func NewPoseSession(session *ort.AdvancedSession, input *ort.Tensor[int32], output *ort.Tensor[float32]) *PoseSession {
	return &PoseSession{
		Session: session,
		Input:   input,
		Output:  output,
	}
}

func (m *PoseSession) Destroy() {
	if m.Session != nil {
		m.Session.Destroy()
	}
	if m.Input != nil {
		m.Input.Destroy()
	}
	if m.Output != nil {
		m.Output.Destroy()
	}
}

type ProcessingError struct {
	Message string
	Cause   error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// cocoJoints maps the model's output rows to joint names. Face points
// are not part of the vocabulary and stay empty.
var cocoJoints = [NumKeypoints]models.JointName{
	5:  models.LeftShoulder,
	6:  models.RightShoulder,
	7:  models.LeftElbow,
	8:  models.RightElbow,
	9:  models.LeftWrist,
	10: models.RightWrist,
	11: models.LeftHip,
	12: models.RightHip,
	13: models.LeftKnee,
	14: models.RightKnee,
	15: models.LeftAnkle,
	16: models.RightAnkle,
}

var preprocessor = newChannelProcessor(InputWidth, InputHeight)

// EstimatePose runs the pose model over img and returns keypoints in
// img's pixel coordinates.
func EstimatePose(ctx context.Context, img image.Image, model *PoseSession, timings *models.ProcessingTimings) ([]models.Keypoint, error) {
	return withRetry(ctx, func() ([]models.Keypoint, error) {
		return estimatePoseInternal(img, model, timings)
	})
}

// withRetry calls run up to RetryAttempts times with a linear backoff,
// giving up as soon as ctx is done.
func withRetry(ctx context.Context, run func() ([]models.Keypoint, error)) ([]models.Keypoint, error) {
	var lastErr error

	for attempt := 1; attempt <= RetryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		keypoints, err := run()
		if err == nil {
			return keypoints, nil
		}
		lastErr = err

		if attempt < RetryAttempts {
			backoff := time.NewTimer(time.Duration(attempt) * RetryDelayMs * time.Millisecond)
			select {
			case <-ctx.Done():
				backoff.Stop()
				return nil, ctx.Err()
			case <-backoff.C:
			}
		}
	}

	if lastErr != nil {
		return nil, &ProcessingError{Message: "pose estimation failed", Cause: lastErr}
	}
	return nil, errors.New("unknown error")
}

func estimatePoseInternal(img image.Image, model *PoseSession, timings *models.ProcessingTimings) ([]models.Keypoint, error) {
	resizeStart := time.Now()
	resized := imaging.Resize(img, InputWidth, InputHeight, imaging.Linear)
	timings.Resize = time.Since(resizeStart)

	// Prepare input buffer
	prepStart := time.Now()
	if err := prepareInput(resized, model.Input.GetData()); err != nil {
		return nil, fmt.Errorf("prepare input buffer: %w", err)
	}
	timings.Preprocess = time.Since(prepStart)

	// Run inference
	inferStart := time.Now()
	if err := model.Session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}
	timings.Inference = time.Since(inferStart)

	postStart := time.Now()
	keypoints, err := DecodeKeypoints(model.Output.GetData(), img.Bounds().Dx(), img.Bounds().Dy())
	if err != nil {
		return nil, fmt.Errorf("decode keypoints: %w", err)
	}
	timings.Postprocess = time.Since(postStart)

	return keypoints, nil
}

func prepareInput(pic *image.NRGBA, dst []int32) error {
	if pic.Bounds().Dx() != InputWidth || pic.Bounds().Dy() != InputHeight {
		return fmt.Errorf("unexpected input size %dx%d", pic.Bounds().Dx(), pic.Bounds().Dy())
	}
	if len(dst) != InputWidth*InputHeight*3 {
		return fmt.Errorf("unexpected input tensor length: got %d, want %d", len(dst), InputWidth*InputHeight*3)
	}
	preprocessor.processChannels(pic, dst)
	return nil
}

// DecodeKeypoints converts model output rows of (y, x, score), normalized
// to the model input, into keypoints scaled to a width x height image.
// The image was stretched to the input size, so normalized coordinates
// map straight back.
func DecodeKeypoints(output []float32, width, height int) ([]models.Keypoint, error) {
	if len(output) != NumKeypoints*3 {
		return nil, fmt.Errorf("unexpected output length: got %d, want %d", len(output), NumKeypoints*3)
	}

	keypoints := make([]models.Keypoint, 0, len(models.BodyJoints))
	for i, name := range cocoJoints {
		if name == "" {
			continue
		}
		row := output[i*3 : i*3+3]
		keypoints = append(keypoints, models.Keypoint{
			Name:  name,
			X:     float64(row[1]) * float64(width),
			Y:     float64(row[0]) * float64(height),
			Score: float64(row[2]),
		})
	}
	return keypoints, nil
}
