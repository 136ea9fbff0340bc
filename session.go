package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/Tutortoise/pose-metrics-service/detections"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	modelInputName  = "input"
	modelOutputName = "output_0"
)

// ErrNoModel reports that no pose model is configured.
var ErrNoModel = errors.New("no pose model configured")

// loadPosePool checks the model, starts onnxruntime and fills a session
// pool. The returned func destroys the pool and the environment.
func loadPosePool(cfg Config) (*PoseSessionPool, func(), error) {
	if cfg.ModelPath == "" {
		return nil, nil, ErrNoModel
	}
	factory, err := sessionFactoryFor(cfg.ModelPath)
	if err != nil {
		return nil, nil, err
	}

	teardown, err := initRuntime(cfg.SharedLibraryPath)
	if err != nil {
		return nil, nil, err
	}
	pool, err := NewPoseSessionPool(factory, cfg.PoolSize)
	if err != nil {
		teardown()
		return nil, nil, fmt.Errorf("create pose session pool: %w", err)
	}
	return pool, func() {
		pool.Destroy()
		teardown()
	}, nil
}

// initRuntime loads the onnxruntime shared library. The returned func
// tears the environment down.
func initRuntime(libPath string) (func(), error) {
	if libPath != "" {
		if _, err := os.Stat(libPath); err != nil {
			return nil, fmt.Errorf("onnxruntime library: %w", err)
		}
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime environment: %w", err)
	}
	return func() { ort.DestroyEnvironment() }, nil
}

func sessionFactoryFor(modelPath string) (sessionFactory, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	return func() (*detections.PoseSession, error) {
		return initSession(modelPath)
	}, nil
}

func initSession(modelPath string) (*detections.PoseSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())
	options.SetInterOpNumThreads(1)

	inputShape := ort.NewShape(1, detections.InputHeight, detections.InputWidth, 3)
	outputShape := ort.NewShape(1, 1, detections.NumKeypoints, 3)

	inputTensor, err := ort.NewEmptyTensor[int32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{modelInputName},
		[]string{modelOutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return detections.NewPoseSession(session, inputTensor, outputTensor), nil
}
