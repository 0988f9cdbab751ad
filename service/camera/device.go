package camera

import (
	"log/slog"
	"strconv"

	"github.com/khaledhikmat/lens-go/service/config"
	"github.com/khaledhikmat/lens-go/service/lgr"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

type deviceService struct {
	CfgSvc config.IService
	webcam *gocv.VideoCapture
}

// NewDevice captures from a local device index ("0"), a video file or an
// RTSP URL.
func NewDevice(cfgSvc config.IService) IService {
	return &deviceService{
		CfgSvc: cfgSvc,
	}
}

func (svc *deviceService) Open() error {
	if svc.webcam != nil {
		return nil
	}

	source := svc.CfgSvc.GetCameraSource()
	var device interface{} = source
	if id, err := strconv.Atoi(source); err == nil {
		device = id
	}

	webcam, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return xerrors.Errorf("error opening video capture %s: %w", source, err)
	}

	// Keep the driver queue to a single frame so reads return the most
	// recent image rather than a stale buffered one.
	webcam.Set(gocv.VideoCaptureBufferSize, 1)

	lgr.Logger.Info(
		"camera opened",
		slog.String("source", source),
		slog.String("openCV", gocv.Version()),
	)

	svc.webcam = webcam
	return nil
}

func (svc *deviceService) LastFrame() (gocv.Mat, error) {
	if svc.webcam == nil {
		return gocv.Mat{}, xerrors.New("camera is not open")
	}

	img := gocv.NewMat()
	if ok := svc.webcam.Read(&img); !ok || img.Empty() {
		img.Close() // Crucial to close the image to avoid memory leaks
		return gocv.Mat{}, xerrors.New("failed to get frame from the stream")
	}

	return img, nil
}

func (svc *deviceService) Close() error {
	if svc.webcam == nil {
		return nil
	}

	err := svc.webcam.Close()
	svc.webcam = nil
	return err
}
