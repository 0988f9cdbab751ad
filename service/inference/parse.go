package inference

import (
	"sort"

	"github.com/khaledhikmat/lens-go/model"
	"golang.org/x/xerrors"
)

// ssd rows are [image_id, label, conf, xmin, ymin, xmax, ymax]
const ssdRowLen = 7

// Parse decodes a raw output. inputSize scales normalised ssd boxes to
// pixels of the model input.
func Parse(modelType string, out Output, inputSize int) (Parsed, error) {
	switch modelType {
	case Classification:
		return Parsed{Classifications: parseClassification(out)}, nil
	case SSD:
		return Parsed{Detections: parseSSD(out, inputSize)}, nil
	default:
		return Parsed{}, xerrors.Errorf("unsupported model type %q", modelType)
	}
}

func parseClassification(out Output) []model.Classification {
	results := make([]model.Classification, len(out.Data))
	for i, p := range out.Data {
		results[i] = model.Classification{Label: i, Prob: p}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Prob > results[j].Prob
	})
	return results
}

// parseSSD yields no detections for an output that is not made of ssd
// rows, such as a classification vector.
func parseSSD(out Output, inputSize int) []model.Detection {
	dets := []model.Detection{}
	if !isSSDShaped(out) {
		return dets
	}

	scale := float32(inputSize)
	for i := 0; i+ssdRowLen <= len(out.Data); i += ssdRowLen {
		row := out.Data[i : i+ssdRowLen]
		// A negative image id marks the end of valid detections
		if row[0] < 0 {
			break
		}

		dets = append(dets, model.Detection{
			Label: int(row[1]),
			Prob:  row[2],
			XMin:  clamp01(row[3]) * scale,
			YMin:  clamp01(row[4]) * scale,
			XMax:  clamp01(row[5]) * scale,
			YMax:  clamp01(row[6]) * scale,
		})
	}

	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Prob > dets[j].Prob
	})
	return dets
}

func isSSDShaped(out Output) bool {
	if len(out.Data) == 0 || len(out.Data)%ssdRowLen != 0 {
		return false
	}
	if len(out.Dims) > 0 && out.Dims[len(out.Dims)-1] != ssdRowLen {
		return false
	}
	return true
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// TopClassifications returns at most n leading entries.
func TopClassifications(results []model.Classification, n int) []model.Classification {
	if n < len(results) {
		return results[:n]
	}
	return results
}

func TopDetections(results []model.Detection, n int) []model.Detection {
	if n < len(results) {
		return results[:n]
	}
	return results
}
