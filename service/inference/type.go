package inference

import (
	"context"

	"github.com/khaledhikmat/lens-go/model"
	"gocv.io/x/gocv"
)

const (
	Classification = "classification"
	SSD            = "ssd"
)

// Output is a copy of the raw network output, detached from any Mat.
type Output struct {
	Dims []int
	Data []float32
}

// Parsed holds the result of parsing an Output for one model type. Only
// the field matching the model type is populated.
type Parsed struct {
	Classifications []model.Classification
	Detections      []model.Detection
}

type IService interface {
	Load(ctx context.Context) error
	Infer(frame gocv.Mat) (Output, error)
	Parse(modelType string, out Output) (Parsed, error)
	Close() error
}
