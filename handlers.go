package main

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/Tutortoise/pose-metrics-service/biomechanics"
	"github.com/Tutortoise/pose-metrics-service/detections"
	"github.com/Tutortoise/pose-metrics-service/logging"
	"github.com/Tutortoise/pose-metrics-service/models"

	"github.com/disintegration/imaging"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	_ "golang.org/x/image/webp"
)

const maxBodyBytes = 10 << 20

type ImageRequest struct {
	Image  string `json:"image" validate:"required,base64"`
	Source string `json:"source" validate:"max=256"`
}

type KeypointInput struct {
	Name  string  `json:"name" validate:"required,joint"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score" validate:"gte=0,lte=1"`
}

type KeypointsRequest struct {
	Source    string          `json:"source" validate:"max=256"`
	MinScore  *float64        `json:"min_score" validate:"omitempty,gte=0,lte=1"`
	Keypoints []KeypointInput `json:"keypoints" validate:"max=64,unique=Name,dive"`
}

type AnalysisResponse struct {
	RequestID    string                  `json:"request_id"`
	Source       string                  `json:"source,omitempty"`
	Keypoints    []models.Keypoint       `json:"keypoints"`
	CentreOfMass *models.Keypoint        `json:"centre_of_mass"`
	Angles       biomechanics.BodyAngles `json:"angles"`
	Report       string                  `json:"report"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("joint", func(fl validator.FieldLevel) bool {
		name := models.JointName(fl.Field().String())
		return models.IsBodyJoint(name) || name == models.CentreOfMass
	})
	return v
}

func handleAnalyseImage(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTotal := time.Now()
		ctx := r.Context()
		requestID := logging.RequestID(ctx)
		timings := &models.ProcessingTimings{RequestID: requestID}

		if state.Pool == nil {
			recordAnalysis("image", "error")
			sendErrorResponse(w, "model_unavailable", "No pose model is loaded", http.StatusServiceUnavailable)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		imgBytes, source, err := readImageRequest(r)
		if err != nil {
			recordAnalysis("image", "error")
			sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}

		// Decode image
		decodeStart := time.Now()
		img, err := decodeImage(imgBytes)
		timings.ImageDecode = time.Since(decodeStart)
		if err != nil {
			recordAnalysis("image", "error")
			sendErrorResponse(w, "invalid_image", "Failed to decode image", http.StatusBadRequest)
			return
		}

		session, err := state.Pool.Acquire(ctx)
		if err != nil {
			recordAnalysis("image", "error")
			sendErrorResponse(w, "session_error", err.Error(), http.StatusServiceUnavailable)
			return
		}

		keypoints, err := detections.EstimatePose(ctx, img, session, timings)
		if err != nil {
			if ctx.Err() != nil {
				state.Pool.Release(session)
			} else {
				logging.FromContext(ctx).Warn("discarding pose session after failed estimation")
				state.Pool.Discard(session)
			}
			recordAnalysis("image", "error")
			traceID := logging.ErrorWithTraceID(logging.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}, "pose estimation failed")
			sendError(w, ErrorResponse{Code: "processing_error", Message: err.Error(), Details: "trace_id=" + traceID}, http.StatusInternalServerError)
			return
		}
		state.Pool.Release(session)

		analysisStart := time.Now()
		analysis := biomechanics.Analyze(keypoints, state.Pipeline)
		timings.Analysis = time.Since(analysisStart)
		timings.Total = time.Since(startTotal)

		logTimings(timings)
		recordTimings(timings)
		recordAngles(analysis.Angles)
		recordAnalysis("image", "success")

		sendJSON(w, http.StatusOK, newAnalysisResponse(requestID, source, analysis))
	}
}

func handleAnalyseKeypoints(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := logging.RequestID(r.Context())

		var req KeypointsRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			recordAnalysis("keypoints", "error")
			sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			recordAnalysis("keypoints", "error")
			sendError(w, ErrorResponse{Code: "validation_error", Message: "Invalid keypoints", Details: err.Error()}, http.StatusBadRequest)
			return
		}

		cfg := state.Pipeline
		if req.MinScore != nil {
			cfg.MinScore = *req.MinScore
		}

		frame := make([]models.Keypoint, len(req.Keypoints))
		for i, k := range req.Keypoints {
			frame[i] = models.Keypoint{Name: models.JointName(k.Name), X: k.X, Y: k.Y, Score: k.Score}
		}

		start := time.Now()
		analysis := biomechanics.Analyze(frame, cfg)
		recordTimings(&models.ProcessingTimings{Analysis: time.Since(start)})
		recordAngles(analysis.Angles)
		recordAnalysis("keypoints", "success")
		logging.FromContext(r.Context()).WithFields(logging.Fields{
			"keypoints": len(analysis.Keypoints),
			"min_score": cfg.MinScore,
		}).Debug("Keypoints analysed")

		sendJSON(w, http.StatusOK, newAnalysisResponse(requestID, req.Source, analysis))
	}
}

func handleListGuides(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sendJSON(w, http.StatusOK, state.Guides.List())
	}
}

func handleGuide(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metric := mux.Vars(r)["metric"]
		guide, ok := state.Guides[metric]
		if !ok {
			sendErrorResponse(w, "not_found", fmt.Sprintf("No guide for metric %q", metric), http.StatusNotFound)
			return
		}
		sendJSON(w, http.StatusOK, guide)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func newAnalysisResponse(requestID, source string, a biomechanics.Analysis) AnalysisResponse {
	return AnalysisResponse{
		RequestID:    requestID,
		Source:       source,
		Keypoints:    a.Keypoints,
		CentreOfMass: a.CentreOfMass,
		Angles:       a.Angles,
		Report:       FormatReport(source, a.Angles),
	}
}

// readImageRequest extracts image bytes and a source name from a JSON,
// multipart or raw body.
func readImageRequest(r *http.Request) ([]byte, string, error) {
	source := r.URL.Query().Get("source")

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch mediaType {
	case "application/json":
		return handleJSONRequest(r, source)
	case "multipart/form-data":
		return handleMultipartRequest(r, source)
	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, "", err
		}
		if len(data) == 0 {
			return nil, "", errors.New("empty request body")
		}
		return data, source, nil
	}
}

func handleJSONRequest(r *http.Request, source string) ([]byte, string, error) {
	var req ImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, "", err
	}
	if err := validate.Struct(req); err != nil {
		return nil, "", err
	}
	if req.Source != "" {
		source = req.Source
	}
	data, err := base64.StdEncoding.DecodeString(req.Image)
	return data, source, err
}

func handleMultipartRequest(r *http.Request, source string) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		return nil, "", err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	if source == "" {
		source = filepath.Base(header.Filename)
	}
	data, err := io.ReadAll(file)
	return data, source, err
}

func decodeImage(data []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn(logging.Fields{"error": err.Error()}, "failed to write response")
	}
}

func sendErrorResponse(w http.ResponseWriter, code, message string, status int) {
	sendError(w, ErrorResponse{Code: code, Message: message}, status)
}

func sendError(w http.ResponseWriter, resp ErrorResponse, status int) {
	sendJSON(w, status, resp)
}
