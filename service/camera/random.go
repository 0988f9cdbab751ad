package camera

import (
	"image"
	"image/color"
	"math/rand"
	"sync"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

// RandomService produces synthetic 640x480 BGR frames for dry runs. A
// failure can be injected to exercise the restart path.
type RandomService struct {
	mu     sync.Mutex
	opened bool
	frames int
	failAt int
	rows   int
	cols   int
}

func NewRandom() *RandomService {
	return &RandomService{rows: 480, cols: 640}
}

// FailAt makes the n-th LastFrame call (1-based) fail. Zero disables.
func (svc *RandomService) FailAt(n int) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.failAt = n
}

func (svc *RandomService) Open() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.opened = true
	return nil
}

func (svc *RandomService) LastFrame() (gocv.Mat, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if !svc.opened {
		return gocv.Mat{}, xerrors.New("camera is not open")
	}

	svc.frames++
	if svc.failAt > 0 && svc.frames == svc.failAt {
		return gocv.Mat{}, xerrors.New("failed to get frame from the stream")
	}

	img := gocv.NewMatWithSize(svc.rows, svc.cols, gocv.MatTypeCV8UC3) // Create a 480x640 image with 3 channels (BGR)
	x := rand.Intn(svc.cols / 2)
	y := rand.Intn(svc.rows / 2)
	gocv.Rectangle(&img, image.Rect(x, y, x+svc.cols/4, y+svc.rows/4), color.RGBA{R: uint8(rand.Intn(256)), G: 128, B: 64}, -1)
	return img, nil
}

func (svc *RandomService) Frames() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.frames
}

func (svc *RandomService) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.opened = false
	return nil
}
