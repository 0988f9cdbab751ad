package inference

import (
	"context"
	"image"
	"log/slog"
	"os"

	"github.com/khaledhikmat/lens-go/service/config"
	"github.com/khaledhikmat/lens-go/service/lgr"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

type dnnService struct {
	CfgSvc config.IService
	net    *gocv.Net
}

// NewDNN runs the model through the OpenCV DNN module. OpenVINO IR
// models (.xml with a sibling .bin) and anything ReadNet accepts work.
func NewDNN(cfgSvc config.IService) IService {
	return &dnnService{
		CfgSvc: cfgSvc,
	}
}

func (svc *dnnService) Load(_ context.Context) error {
	if svc.net != nil {
		return nil
	}

	modelPath := svc.CfgSvc.GetModelPath()
	if _, err := os.Stat(modelPath); err != nil {
		return xerrors.Errorf("model %s is not accessible: %w", modelPath, err)
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return xerrors.Errorf("error reading model %s", modelPath)
	}

	backend, target := gocv.NetBackendDefault, gocv.NetTargetCPU
	if svc.CfgSvc.GetModelGPU() {
		backend, target = gocv.NetBackendOpenVINO, gocv.NetTargetFP16
	}

	if err := net.SetPreferableBackend(backend); err != nil {
		net.Close()
		return xerrors.Errorf("error setting backend: %w", err)
	}

	if err := net.SetPreferableTarget(target); err != nil {
		net.Close()
		return xerrors.Errorf("error setting target: %w", err)
	}

	lgr.Logger.Info(
		"model loaded",
		slog.String("model", modelPath),
		slog.Bool("gpu", svc.CfgSvc.GetModelGPU()),
	)

	svc.net = &net
	return nil
}

func (svc *dnnService) Infer(frame gocv.Mat) (Output, error) {
	if svc.net == nil {
		return Output{}, xerrors.New("model is not loaded")
	}

	if frame.Empty() {
		return Output{}, xerrors.New("cannot infer on an empty frame")
	}

	size := svc.CfgSvc.GetModelInputSize()
	blob := gocv.BlobFromImage(frame, 1.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	svc.net.SetInput(blob, "")
	output := svc.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return Output{}, xerrors.New("model produced an empty output")
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return Output{}, xerrors.Errorf("error reading model output: %w", err)
	}

	// The Mat owns data, copy before it is closed
	out := Output{
		Dims: output.Size(),
		Data: make([]float32, len(data)),
	}
	copy(out.Data, data)
	return out, nil
}

func (svc *dnnService) Parse(modelType string, out Output) (Parsed, error) {
	return Parse(modelType, out, svc.CfgSvc.GetModelInputSize())
}

func (svc *dnnService) Close() error {
	if svc.net == nil {
		return nil
	}

	err := svc.net.Close()
	svc.net = nil
	return err
}
