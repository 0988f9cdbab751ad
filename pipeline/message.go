package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/khaledhikmat/lens-go/model"
	"github.com/khaledhikmat/lens-go/service/inference"
)

const (
	StartMessage       = "Action recognition starts now"
	ModelLoadedMessage = "Model loaded"
	PipeOpenedMessage  = "Opened Pipe"
	UploadingMessage   = "write_image_to_s3"
)

// TopNMessage renders results as {"label": 0.61,"label": 0.20} keeping
// the probability order.
func TopNMessage(labels inference.Labels, top []model.Classification) string {
	var b strings.Builder
	b.WriteString("{")
	for i, c := range top {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%s: %.2f", quote(labels.Name(c.Label)), c.Prob)
	}
	b.WriteString("}")
	return b.String()
}

func ImageMessage(url string) string {
	return `{"img":` + quote(url) + `}`
}

func FailureMessage(err error) string {
	return "Test failed: " + err.Error()
}

func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
