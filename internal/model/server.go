package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	defaultInputName  = "input"
	defaultOutputName = "output"
)

// The runtime environment is process-global.
var (
	ortIsInitialized = ort.IsInitialized
	ortInitialize    = ort.InitializeEnvironment
	ortDestroy       = ort.DestroyEnvironment
)

type Options struct {
	Location         string
	MetadataLocation string
	Labels           []string
	RuntimeLibrary   string
	InputName        string
	OutputName       string
	HTTPClient       *resty.Client
	Logger           *slog.Logger
}

// Server holds a loaded ONNX session. It is read-only after NewServer returns
// and Predict may be called from many goroutines.
type Server struct {
	session    *ort.DynamicAdvancedSession
	Metadata   Metadata
	Labels     LabelSet
	location   string
	inputName  string
	outputName string
	releaseEnv func()
}

// NewServer loads the model and its metadata. Every failure wraps ErrModelLoad.
func NewServer(ctx context.Context, opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	metadata, err := LoadMetadata(ctx, opts.HTTPClient, opts.MetadataLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	labels, err := ResolveLabels(opts.Labels, metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	inputName := firstNonEmpty(opts.InputName, metadata.InputName, defaultInputName)
	outputName := firstNonEmpty(opts.OutputName, metadata.OutputName, defaultOutputName)

	log.Info("loading model", slog.String("location", opts.Location), slog.Int("labels", len(labels)))
	onnxData, err := ReadSource(ctx, opts.HTTPClient, opts.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	if opts.RuntimeLibrary != "" {
		ort.SetSharedLibraryPath(opts.RuntimeLibrary)
	}
	releaseEnv, err := acquireEnvironment()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize ONNX environment: %v", ErrModelLoad, err)
	}

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(onnxData,
		[]string{inputName}, []string{outputName}, nil)
	if err != nil {
		releaseEnv()
		return nil, fmt.Errorf("%w: failed to create ONNX session: %v", ErrModelLoad, err)
	}

	log.Info("model loaded", slog.String("input", inputName), slog.String("output", outputName))
	return &Server{
		session:    session,
		Metadata:   metadata,
		Labels:     labels,
		location:   opts.Location,
		inputName:  inputName,
		outputName: outputName,
		releaseEnv: releaseEnv,
	}, nil
}

// Predict runs one forward pass. Input and output tensors are allocated per
// call so concurrent predictions never share buffers.
func (s *Server) Predict(_ context.Context, input Tensor) ([]float32, error) {
	inputTensor, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create input tensor: %v", ErrInference, err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(s.Labels))))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create output tensor: %v", ErrInference, err)
	}
	defer outputTensor.Destroy()

	if err := s.session.Run([]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	out := make([]float32, len(s.Labels))
	copy(out, outputTensor.GetData())
	return out, nil
}

func (s *Server) Location() string {
	return s.location
}

func (s *Server) Close() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.releaseEnv != nil {
		s.releaseEnv()
	}
}

// acquireEnvironment initializes the runtime when needed. The returned
// release destroys it only if this call created it.
func acquireEnvironment() (func(), error) {
	if ortIsInitialized() {
		return func() {}, nil
	}
	if err := ortInitialize(); err != nil {
		return nil, err
	}
	return func() { _ = ortDestroy() }, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
