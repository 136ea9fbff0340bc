package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/Tutortoise/pose-metrics-service/biomechanics"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr              string  `validate:"required,hostname_port"`
	ModelPath         string
	SharedLibraryPath string  `validate:"omitempty,file"`
	PoolSize          int     `validate:"gte=1,lte=64"`
	MinScore          float64 `validate:"gte=0,lte=1"`
	LandmarksFile     string  `validate:"omitempty,file"`
	Weighting         string  `validate:"oneof=landmark pair"`
	Debug             bool
	LogDir            string
}

// LoadConfig reads the environment, after applying .env if one exists.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Addr:              envString("ADDR", "127.0.0.1:8080"),
		ModelPath:         modelPath(),
		SharedLibraryPath: os.Getenv("ONNXRUNTIME_LIB"),
		Weighting:         envString("COM_WEIGHTING", "landmark"),
		LandmarksFile:     os.Getenv("LANDMARKS_FILE"),
		Debug:             os.Getenv("DEBUG") == "true",
		LogDir:            envString("LOG_DIR", "./storage/logs"),
	}
	if os.Getenv("APP_ENV") == "test" {
		cfg.LogDir = ""
	}

	var err error
	if cfg.PoolSize, err = envInt("POOL_SIZE", DefaultPoolSize); err != nil {
		return Config{}, err
	}
	if cfg.MinScore, err = envFloat("MIN_KEYPOINT_SCORE", biomechanics.DefaultMinScore); err != nil {
		return Config{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Pipeline builds the analysis configuration, reading landmark pairs
// from LandmarksFile when set.
func (c Config) Pipeline() (biomechanics.Config, error) {
	pipeline := biomechanics.DefaultConfig()
	pipeline.MinScore = c.MinScore

	weighting, err := biomechanics.ParseWeighting(c.Weighting)
	if err != nil {
		return biomechanics.Config{}, err
	}
	pipeline.Weighting = weighting

	if c.LandmarksFile != "" {
		f, err := os.Open(c.LandmarksFile)
		if err != nil {
			return biomechanics.Config{}, fmt.Errorf("open landmarks file: %w", err)
		}
		defer f.Close()

		pairs, err := biomechanics.LoadLandmarkPairs(f)
		if err != nil {
			return biomechanics.Config{}, fmt.Errorf("%s: %w", c.LandmarksFile, err)
		}
		pipeline.LandmarkPairs = pairs
	}

	if err := pipeline.Validate(); err != nil {
		return biomechanics.Config{}, err
	}
	return pipeline, nil
}

// modelPath defaults MODEL_PATH when it is unset. An empty value
// disables image analysis.
func modelPath() string {
	v, ok := os.LookupEnv("MODEL_PATH")
	if !ok {
		return "../models/movenet_singlepose_lightning.onnx"
	}
	return strings.TrimSpace(v)
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
