package pipeline

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/khaledhikmat/lens-go/model"
	"github.com/khaledhikmat/lens-go/service/inference"
	"github.com/natefinch/lumberjack"
	"golang.org/x/xerrors"
)

type journalEntry struct {
	Time  string       `json:"time"`
	RunID string       `json:"runId"`
	Frame int          `json:"frame"`
	Top   []journalHit `json:"top"`
}

type journalHit struct {
	Label int     `json:"label"`
	Name  string  `json:"name"`
	Prob  float32 `json:"prob"`
}

// Journal appends every classification result as a JSON line to a size
// rotated file. A nil Journal discards records.
type Journal struct {
	mu     sync.Mutex
	writer *lumberjack.Logger
}

func NewJournal(path string) *Journal {
	if path == "" {
		return nil
	}

	return &Journal{
		writer: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7,    // days
			Compress:   true, // compress old logs
		},
	}
}

func (j *Journal) Record(runID string, frame int, labels inference.Labels, top []model.Classification) error {
	if j == nil {
		return nil
	}

	entry := journalEntry{
		Time:  time.Now().Format(time.RFC3339Nano),
		RunID: runID,
		Frame: frame,
		Top:   make([]journalHit, len(top)),
	}
	for i, c := range top {
		entry.Top[i] = journalHit{Label: c.Label, Name: labels.Name(c.Label), Prob: c.Prob}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return xerrors.Errorf("error marshalling journal entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.writer.Write(append(line, '\n')); err != nil {
		return xerrors.Errorf("error writing journal entry: %w", err)
	}
	return nil
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.writer.Close()
}
