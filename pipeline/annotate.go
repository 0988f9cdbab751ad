package pipeline

import (
	"image"
	"image/color"

	"github.com/khaledhikmat/lens-go/model"
	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

// PreviewJPEGQuality is OpenCV's default JPEG quality.
const PreviewJPEGQuality = 95

var (
	// gocv maps RGBA to BGR scalars, this is BGR (255,165,20)
	labelColor = color.RGBA{R: 20, G: 165, B: 255}
	boxColor   = color.RGBA{R: 255}
)

// PutTopLabel writes the best label in the top left corner.
func PutTopLabel(img *gocv.Mat, text string) {
	gocv.PutText(img, text, image.Pt(0, 22), gocv.FontHersheySimplex, 1, labelColor, 4)
}

func DrawDetections(img *gocv.Mat, dets []model.Detection) {
	for _, d := range dets {
		rect := image.Rect(int(d.XMin), int(d.YMin), int(d.XMax), int(d.YMax))
		gocv.Rectangle(img, rect, boxColor, 2)
	}
}

func EncodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	if img.Empty() {
		return nil, xerrors.New("cannot encode an empty frame")
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, xerrors.Errorf("error encoding jpeg: %w", err)
	}
	defer buf.Close()

	// The native buffer is released on Close
	return append([]byte(nil), buf.GetBytes()...), nil
}
