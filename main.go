package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tutortoise/pose-metrics-service/biomechanics"
	"github.com/Tutortoise/pose-metrics-service/logging"
	"github.com/Tutortoise/pose-metrics-service/models"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func logTimings(t *models.ProcessingTimings) {
	logging.Debug(logging.Fields{
		"request_id":  t.RequestID,
		"decode":      t.ImageDecode.String(),
		"resize":      t.Resize.String(),
		"preprocess":  t.Preprocess.String(),
		"inference":   t.Inference.String(),
		"postprocess": t.Postprocess.String(),
		"analysis":    t.Analysis.String(),
		"total":       t.Total.String(),
	}, "Processing times")
}

type AppState struct {
	// Pipeline is the analysis configuration shared by every request.
	Pipeline biomechanics.Config
	// Pool is nil when no pose model is loaded; image analysis is then
	// unavailable but keypoint analysis still works.
	Pool     *PoseSessionPool
	Guides   Guides
	Registry *prometheus.Registry
}

func newRouter(state *AppState) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware)

	r.HandleFunc("/analyse", handleAnalyseImage(state)).Methods("POST")
	r.HandleFunc("/analyse/keypoints", handleAnalyseKeypoints(state)).Methods("POST")
	r.HandleFunc("/guides", handleListGuides(state)).Methods("GET")
	r.HandleFunc("/guides/{metric}", handleGuide(state)).Methods("GET")
	r.HandleFunc("/healthz", handleHealth).Methods("GET")
	state.addMonitoringRoutes(r)

	return r
}

func (s *AppState) addMonitoringRoutes(r *mux.Router) {
	r.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})).Methods("GET")
}

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		logging.Logger().Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(logging.Options{Debug: cfg.Debug, Dir: cfg.LogDir})

	pipeline, err := cfg.Pipeline()
	if err != nil {
		logger.Fatalf("Invalid analysis configuration: %v", err)
	}

	guides, err := loadGuides()
	if err != nil {
		logger.Fatalf("Failed to load metric guides: %v", err)
	}

	pool, release, err := loadPosePool(cfg)
	if err != nil {
		logger.WithError(err).Warn("Pose model unavailable, serving keypoint analysis only")
	} else {
		defer release()
	}

	state := &AppState{
		Pipeline: pipeline,
		Pool:     pool,
		Guides:   guides,
		Registry: newRegistry(pool),
	}

	poolSize := 0
	if pool != nil {
		poolSize = pool.Size()
	}

	srv := &http.Server{
		Handler:      newRouter(state),
		Addr:         cfg.Addr,
		WriteTimeout: 60 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logging.Fields{
			"addr":      srv.Addr,
			"pool_size": poolSize,
			"min_score": pipeline.MinScore,
			"weighting": pipeline.Weighting.String(),
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
}
