package detections

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/Tutortoise/pose-metrics-service/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKeypoints(t *testing.T) {
	output := make([]float32, NumKeypoints*3)
	for i := 0; i < NumKeypoints; i++ {
		output[i*3] = 0.5    // y
		output[i*3+1] = 0.25 // x
		output[i*3+2] = float32(i) / 20
	}

	got, err := DecodeKeypoints(output, 400, 800)
	require.NoError(t, err)

	require.Len(t, got, len(models.BodyJoints))
	for _, k := range got {
		assert.True(t, models.IsBodyJoint(k.Name), "unexpected joint %s", k.Name)
		assert.InDelta(t, 100, k.X, 1e-6)
		assert.InDelta(t, 400, k.Y, 1e-6)
	}
	assert.Equal(t, models.LeftShoulder, got[0].Name)
	assert.InDelta(t, 0.25, got[0].Score, 1e-6)
	assert.Equal(t, models.RightAnkle, got[len(got)-1].Name)
}

func TestDecodeKeypointsRejectsBadShape(t *testing.T) {
	_, err := DecodeKeypoints(make([]float32, 10), 100, 100)
	assert.Error(t, err)
}

func TestPrepareInputInterleavesChannels(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, InputWidth, InputHeight))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(InputWidth-1, InputHeight-1, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	buf := make([]int32, InputWidth*InputHeight*3)
	require.NoError(t, prepareInput(img, buf))

	assert.Equal(t, []int32{10, 20, 30}, buf[:3])
	assert.Equal(t, []int32{200, 100, 50}, buf[len(buf)-3:])
}

func TestPrepareInputRejectsWrongSize(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	assert.Error(t, prepareInput(img, make([]int32, InputWidth*InputHeight*3)))
}

func TestProcessingErrorUnwraps(t *testing.T) {
	cause := errors.New("session busy")
	err := &ProcessingError{Message: "pose estimation failed", Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "pose estimation failed: session busy", err.Error())
}

func TestWithRetryStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	start := time.Now()
	_, err := withRetry(ctx, func() ([]models.Keypoint, error) {
		calls++
		cancel()
		return nil, errors.New("inference failed")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.True(t, time.Since(start) < RetryDelayMs*time.Millisecond, "backoff should not wait out a cancelled request")
}

func TestWithRetryRecoversAfterFailure(t *testing.T) {
	calls := 0
	keypoints, err := withRetry(context.Background(), func() ([]models.Keypoint, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		return []models.Keypoint{{Name: models.LeftHip}}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, keypoints, 1)
}

func TestWithRetryGivesUp(t *testing.T) {
	calls := 0
	cause := errors.New("session broken")
	_, err := withRetry(context.Background(), func() ([]models.Keypoint, error) {
		calls++
		return nil, cause
	})

	var perr *ProcessingError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, RetryAttempts, calls)
}
