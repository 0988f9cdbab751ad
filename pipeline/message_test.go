package pipeline

import (
	"errors"
	"testing"

	"github.com/khaledhikmat/lens-go/model"
	"github.com/khaledhikmat/lens-go/service/inference"
)

func TestTopNMessage(t *testing.T) {
	labels := inference.ActionLabels()

	tests := []struct {
		name string
		top  []model.Classification
		want string
	}{
		{
			name: "ordered results",
			top:  []model.Classification{{Label: 3, Prob: 0.61}, {Label: 30, Prob: 0.2}},
			want: `{"basketball": 0.61,"pushups": 0.20}`,
		},
		{
			name: "unknown label",
			top:  []model.Classification{{Label: 99, Prob: 0.5}},
			want: `{"class_99": 0.50}`,
		},
		{
			name: "empty",
			top:  nil,
			want: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TopNMessage(labels, tt.top); got != tt.want {
				t.Errorf("TopNMessage() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestImageMessage(t *testing.T) {
	got := ImageMessage("https://s3.amazonaws.com/bucket/DeepLens/image-20240131-154502.jpg")
	want := `{"img":"https://s3.amazonaws.com/bucket/DeepLens/image-20240131-154502.jpg"}`
	if got != want {
		t.Errorf("ImageMessage() = %s, want %s", got, want)
	}

	if got := ImageMessage(`a"b`); got != `{"img":"a\"b"}` {
		t.Errorf("expected quote to be escaped, got %s", got)
	}
}

func TestFailureMessage(t *testing.T) {
	err := model.GenError("pipeline_infer", model.Transient, errors.New("timeout"), nil, "failed to get frame from the stream")
	if got := FailureMessage(err); got != "Test failed: failed to get frame from the stream: timeout" {
		t.Errorf("unexpected failure message: %s", got)
	}
}
