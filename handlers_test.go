package main

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Tutortoise/pose-metrics-service/biomechanics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullFrameJSON = `{
  "source": "crimp-project.mp4",
  "keypoints": [
    {"name": "left_shoulder",  "x": 0,  "y": 0,  "score": 0.9},
    {"name": "left_elbow",     "x": 4,  "y": 0,  "score": 0.9},
    {"name": "left_wrist",     "x": 7,  "y": 4,  "score": 0.9},
    {"name": "right_shoulder", "x": 10, "y": 0,  "score": 0.9},
    {"name": "right_elbow",    "x": 6,  "y": 0,  "score": 0.9},
    {"name": "right_wrist",    "x": 3,  "y": 4,  "score": 0.9},
    {"name": "left_hip",       "x": 1,  "y": 10, "score": 0.8},
    {"name": "right_hip",      "x": 9,  "y": 10, "score": 0.8},
    {"name": "left_knee",      "x": -2, "y": 15, "score": 0.7},
    {"name": "right_knee",     "x": 12, "y": 15, "score": 0.7},
    {"name": "left_ankle",     "x": -1, "y": 20, "score": 0.6},
    {"name": "right_ankle",    "x": 11, "y": 20, "score": 0.6}
  ]
}`

func newTestState(t *testing.T) *AppState {
	t.Helper()
	guides, err := loadGuides()
	require.NoError(t, err)
	return &AppState{
		Pipeline: biomechanics.DefaultConfig(),
		Guides:   guides,
		Registry: newRegistry(nil),
	}
}

func serve(t *testing.T, state *AppState, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	newRouter(state).ServeHTTP(rec, req)
	return rec
}

func TestAnalyseKeypoints(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/analyse/keypoints", strings.NewReader(fullFrameJSON))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(t, newTestState(t), req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, rec.Header().Get(RequestIDHeader), resp.RequestID)
	assert.Equal(t, "crimp-project.mp4", resp.Source)
	assert.Len(t, resp.Keypoints, 13)
	require.NotNil(t, resp.CentreOfMass)
	assert.InDelta(t, 5.0, resp.CentreOfMass.X, 1e-9)
	assert.Equal(t, biomechanics.Degrees(126.87), resp.Angles.ElbowAngles.Left)
	assert.Equal(t, biomechanics.Degrees(126.87), resp.Angles.ElbowAngles.Right)
	assert.Equal(t, resp.Angles.LegSeparationAngle.Left, resp.Angles.LegSeparationAngle.Right)
	assert.Contains(t, resp.Report, "Video: crimp-project.mp4")
	assert.NotContains(t, resp.Report, MsgNotAvailable)
}

func TestAnalyseKeypointsHighThreshold(t *testing.T) {
	body := strings.Replace(fullFrameJSON, `"source"`, `"min_score": 0.95, "source"`, 1)
	req := httptest.NewRequest(http.MethodPost, "/analyse/keypoints", strings.NewReader(body))

	rec := serve(t, newTestState(t), req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"armpitAngles":{"left":null,"right":null}`)
	assert.Contains(t, rec.Body.String(), `"centre_of_mass":null`)
	assert.Contains(t, rec.Body.String(), `"keypoints":[]`)
}

func TestAnalyseKeypointsValidation(t *testing.T) {
	cases := map[string]string{
		"unknown joint":   `{"keypoints":[{"name":"nose","x":1,"y":1,"score":0.9}]}`,
		"score too high":  `{"keypoints":[{"name":"left_hip","x":1,"y":1,"score":1.5}]}`,
		"duplicate joint": `{"keypoints":[{"name":"left_hip","score":0.9},{"name":"left_hip","score":0.8}]}`,
		"bad min score":   `{"min_score":-1,"keypoints":[]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/analyse/keypoints", strings.NewReader(body))
			rec := serve(t, newTestState(t), req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"code":"validation_error"`)
		})
	}
}

func TestAnalyseKeypointsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/analyse/keypoints", strings.NewReader(`{"keypoints":`))
	rec := serve(t, newTestState(t), req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"invalid_request"`)
}

func TestAnalyseKeypointsIsIdempotent(t *testing.T) {
	state := newTestState(t)
	var bodies []string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/analyse/keypoints", strings.NewReader(fullFrameJSON))
		req.Header.Set(RequestIDHeader, "fixed-id")
		rec := serve(t, state, req)
		require.Equal(t, http.StatusOK, rec.Code)
		bodies = append(bodies, rec.Body.String())
	}
	assert.Equal(t, bodies[0], bodies[1])
}

func TestRequestIDIsEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "climb-42")

	rec := serve(t, newTestState(t), req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "climb-42", rec.Header().Get(RequestIDHeader))
}

func TestAnalyseImageWithoutModel(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/analyse", bytes.NewReader([]byte{1, 2, 3}))
	rec := serve(t, newTestState(t), req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"model_unavailable"`)
}

func TestGuides(t *testing.T) {
	state := newTestState(t)

	rec := serve(t, state, httptest.NewRequest(http.MethodGet, "/guides/elbow", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var guide MetricGuide
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &guide))
	assert.Equal(t, "elbow", guide.Slug)
	assert.Equal(t, "Elbow Flexion/Extension Angle", guide.Title)
	assert.NotEmpty(t, guide.Calculation)
	assert.NotEmpty(t, guide.Importance)

	rec = serve(t, state, httptest.NewRequest(http.MethodGet, "/guides/grip", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, state, httptest.NewRequest(http.MethodGet, "/guides", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []MetricGuide
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 4)
	assert.Equal(t, []string{"armpit", "elbow", "knee", "leg-separation"},
		[]string{list[0].Slug, list[1].Slug, list[2].Slug, list[3].Slug})
}

func TestMetricsEndpoint(t *testing.T) {
	state := newTestState(t)
	serve(t, state, httptest.NewRequest(http.MethodPost, "/analyse/keypoints", strings.NewReader(fullFrameJSON)))

	rec := serve(t, state, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "pose_metrics_analyses_total")
	assert.Contains(t, body, "pose_metrics_angle_results_total")
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	img.SetNRGBA(1, 1, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestReadImageRequestRaw(t *testing.T) {
	data := pngBytes(t)
	req := httptest.NewRequest(http.MethodPost, "/analyse?source=frame.png", bytes.NewReader(data))
	req.Header.Set("Content-Type", "image/png")

	got, source, err := readImageRequest(req)

	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "frame.png", source)

	img, err := decodeImage(got)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())
}

func TestReadImageRequestEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/analyse", http.NoBody)
	_, _, err := readImageRequest(req)
	assert.Error(t, err)
}

func TestReadImageRequestJSON(t *testing.T) {
	data := pngBytes(t)
	body := `{"image":"` + base64.StdEncoding.EncodeToString(data) + `","source":"dyno.mp4"}`
	req := httptest.NewRequest(http.MethodPost, "/analyse", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	got, source, err := readImageRequest(req)

	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "dyno.mp4", source)
}

func TestReadImageRequestMultipart(t *testing.T) {
	data := pngBytes(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "uploads/slab.png")
	require.NoError(t, err)
	_, err = io.Copy(part, bytes.NewReader(data))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyse", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	got, source, err := readImageRequest(req)

	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "slab.png", source)
}
