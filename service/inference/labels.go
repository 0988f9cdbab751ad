package inference

import (
	"fmt"
	"os"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

// Labels maps a model class index to its display name.
type Labels map[int]string

var actionLabels = Labels{
	0: "applyeyemakeup", 1: "applylipstick", 2: "archery", 3: "basketball",
	4: "benchpress", 5: "biking", 6: "billiards", 7: "blowdryhair",
	8: "blowingcandles", 9: "bowling", 10: "brushingteeth", 11: "cuttinginkitchen",
	12: "drumming", 13: "haircut", 14: "hammering", 15: "handstandwalking",
	16: "headmassage", 17: "horseriding", 18: "hulahoop", 19: "jugglingballs",
	20: "jumprope", 21: "jumpingjack", 22: "lunges", 23: "nunchucks",
	24: "playingcello", 25: "playingflute", 26: "playingguitar", 27: "playingpiano",
	28: "playingsitar", 29: "playingviolin", 30: "pushups", 31: "shavingbeard",
	32: "skiing", 33: "typing", 34: "walkingwithdog", 35: "writingonboard",
	36: "yoyo",
}

// ActionLabels returns a copy of the built-in action recognition classes.
func ActionLabels() Labels {
	labels := make(Labels, len(actionLabels))
	for k, v := range actionLabels {
		labels[k] = v
	}
	return labels
}

// LoadLabels reads a YAML mapping of index to name. An empty path yields
// the built-in action classes.
func LoadLabels(path string) (Labels, error) {
	if path == "" {
		return ActionLabels(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("error reading labels file %s: %w", path, err)
	}

	labels := Labels{}
	if err := yaml.Unmarshal(data, &labels); err != nil {
		return nil, xerrors.Errorf("error parsing labels file %s: %w", path, err)
	}

	if len(labels) == 0 {
		return nil, xerrors.Errorf("labels file %s has no labels", path)
	}

	return labels, nil
}

func (l Labels) Name(label int) string {
	if name, ok := l[label]; ok {
		return name
	}
	return fmt.Sprintf("class_%d", label)
}
