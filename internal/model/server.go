package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Options locate the model artifact and the onnxruntime shared library.
type Options struct {
	ModelPath    string
	MetadataPath string
	LibraryPath  string
}

// Server runs a digit classifier through onnxruntime. The session and its
// bound tensors are reused by every call, so Predict is serialized.
type Server struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	contract     Contract
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

func NewServer(opts Options) (*Server, error) {
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("model file %s: %w", opts.ModelPath, err)
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	s, err := newServer(opts)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, err
	}
	return s, nil
}

func newServer(opts Options) (*Server, error) {
	metadata, err := loadMetadata(opts.MetadataPath)
	if err != nil {
		return nil, err
	}
	if metadata.ImageSize != 0 && metadata.ImageSize != InputSize {
		return nil, fmt.Errorf("%w: image size %d", ErrBadShape, metadata.ImageSize)
	}
	if err := fillFromModel(opts.ModelPath, &metadata); err != nil {
		return nil, err
	}

	contract, err := ResolveContract(metadata.InputShape)
	if err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(contract.Shape()...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Server{
		session:      session,
		Metadata:     metadata,
		contract:     contract,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// loadMetadata reads the optional metadata file. A missing file yields
// empty metadata.
func loadMetadata(path string) (Metadata, error) {
	var metadata Metadata
	if path == "" {
		return metadata, nil
	}
	metaFile, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return metadata, nil
	}
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return metadata, nil
}

// fillFromModel completes metadata with the names and shapes the model
// itself declares.
func fillFromModel(modelPath string, metadata *Metadata) error {
	if metadata.InputName != "" && metadata.OutputName != "" &&
		len(metadata.InputShape) > 0 && len(metadata.OutputShape) > 0 {
		return nil
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return fmt.Errorf("failed to inspect model: %w", err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return fmt.Errorf("%w: model has %d inputs and %d outputs", ErrBadShape, len(inputs), len(outputs))
	}

	if metadata.InputName == "" {
		metadata.InputName = inputs[0].Name
	}
	if metadata.OutputName == "" {
		metadata.OutputName = outputs[0].Name
	}
	if len(metadata.InputShape) == 0 {
		metadata.InputShape = append([]int64(nil), inputs[0].Dimensions...)
	}
	if len(metadata.OutputShape) == 0 {
		metadata.OutputShape = []int64{1, NumClasses}
	}
	return nil
}

func (s *Server) Contract() Contract {
	return s.contract
}

// Predict classifies one preprocessed sample of NumPixels values.
func (s *Server) Predict(inputData []float32) (*Prediction, error) {
	if len(inputData) != NumPixels {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrBadInput, NumPixels, len(inputData))
	}

	s.mu.Lock()
	copy(s.inputTensor.GetData(), inputData)
	if err := s.session.Run(); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	outputData := append([]float32(nil), s.outputTensor.GetData()...)
	s.mu.Unlock()

	return NewPrediction(outputData, s.Metadata.Classes, s.Metadata.Logits)
}

func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	ort.DestroyEnvironment()
}
