package inference

import (
	"context"
	"sync"

	"github.com/khaledhikmat/lens-go/model"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

// FakeService returns fixed probabilities for every frame. When
// detections are configured, ssd parsing returns them instead of decoding
// the output.
type FakeService struct {
	mu         sync.Mutex
	probs      []float32
	detections []model.Detection
	inputSize  int
	loadErr    error
	inferErr   error
	loaded     bool
	loads      int
	infers     int
}

func NewFake(probs []float32, detections []model.Detection, inputSize int) *FakeService {
	return &FakeService{
		probs:      probs,
		detections: detections,
		inputSize:  inputSize,
	}
}

// NewDefaultFake scores "basketball" highest, followed by "pushups",
// "drumming", "biking" and "blowdryhair".
func NewDefaultFake(inputSize int) *FakeService {
	probs := make([]float32, len(actionLabels))
	for i := range probs {
		probs[i] = 0.001
	}
	probs[3] = 0.61
	probs[30] = 0.2
	probs[12] = 0.1
	probs[5] = 0.05
	probs[7] = 0.03

	s := float32(inputSize)
	dets := []model.Detection{
		{Label: 1, Prob: 0.9, XMin: 0.1 * s, YMin: 0.1 * s, XMax: 0.5 * s, YMax: 0.6 * s},
		{Label: 1, Prob: 0.4, XMin: 0.5 * s, YMin: 0.2 * s, XMax: 0.9 * s, YMax: 0.8 * s},
	}
	return NewFake(probs, dets, inputSize)
}

func (svc *FakeService) FailLoad(err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.loadErr = err
}

func (svc *FakeService) FailInfer(err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.inferErr = err
}

func (svc *FakeService) Load(_ context.Context) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.loads++
	if svc.loadErr != nil {
		return svc.loadErr
	}
	svc.loaded = true
	return nil
}

func (svc *FakeService) Infer(frame gocv.Mat) (Output, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if !svc.loaded {
		return Output{}, xerrors.New("model is not loaded")
	}
	if svc.inferErr != nil {
		return Output{}, svc.inferErr
	}
	if frame.Empty() {
		return Output{}, xerrors.New("cannot infer on an empty frame")
	}

	svc.infers++
	return Output{
		Dims: []int{1, len(svc.probs)},
		Data: append([]float32(nil), svc.probs...),
	}, nil
}

func (svc *FakeService) Parse(modelType string, out Output) (Parsed, error) {
	if modelType == SSD && svc.detections != nil {
		return Parsed{Detections: append([]model.Detection(nil), svc.detections...)}, nil
	}
	return Parse(modelType, out, svc.inputSize)
}

func (svc *FakeService) Loads() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.loads
}

func (svc *FakeService) Infers() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.infers
}

func (svc *FakeService) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.loaded = false
	return nil
}
