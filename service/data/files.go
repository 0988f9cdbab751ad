package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/khaledhikmat/lens-go/model"
	"github.com/khaledhikmat/lens-go/service/config"
	"golang.org/x/xerrors"
)

// Each file keeps only the most recent entities.
var maxEntities = 500

// filesDBService keeps each entity kind as a JSON array in its own file
// under the data folder.
type filesDBService struct {
	CfgSvc config.IService
	mu     sync.Mutex
}

func NewFilesDB(cfgsvc config.IService) IService {
	return &filesDBService{
		CfgSvc: cfgsvc,
	}
}

type errorRecord struct {
	Timestamp  int64                  `json:"timestamp"`
	Processor  string                 `json:"processor"`
	Kind       model.Kind             `json:"kind"`
	Inner      string                 `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (svc *filesDBService) NewError(err interface{}) error {
	// Determine if the error is custom
	var customErr model.CustomError
	switch e := err.(type) {
	case model.CustomError:
		customErr = e
	case error:
		if !xerrors.As(e, &customErr) {
			customErr = model.CustomError{
				Processor:  "N/A",
				Kind:       model.KindOf(e),
				Inner:      e,
				Message:    e.Error(),
				StackTrace: "N/A",
			}
		}
	default:
		customErr = model.CustomError{
			Processor:  "N/A",
			Kind:       model.Transient,
			Message:    fmt.Sprintf("%v", err),
			StackTrace: "N/A",
		}
	}

	inner := ""
	if customErr.Inner != nil {
		inner = customErr.Inner.Error()
	}

	return svc.newEntity(errorRecord{
		Timestamp:  time.Now().Unix(),
		Processor:  customErr.Processor,
		Kind:       customErr.Kind,
		Inner:      inner,
		Message:    customErr.Message,
		StackTrace: customErr.StackTrace,
		Misc:       customErr.Misc,
	}, "errors")
}

func (svc *filesDBService) NewLoopStats(stats model.LoopStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "loop-stats")
}

func (svc *filesDBService) NewPreviewStats(stats model.PreviewStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "preview-stats")
}

func (svc *filesDBService) NewSupervisorStats(stats model.SupervisorStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newEntity(stats, "supervisor-stats")
}

func (svc *filesDBService) newEntity(entity any, filename string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	folder := svc.CfgSvc.GetDataFolder()
	if err := os.MkdirAll(folder, 0755); err != nil {
		return xerrors.Errorf("error creating data folder %s: %w", folder, err)
	}

	return appendEntity(filepath.Join(folder, filename+".json"), entity)
}

func appendEntity[T any](path string, entity T) error {
	entities, err := retrieveEntities[T](path)
	if err != nil {
		return err
	}

	entities = append(entities, entity)
	if len(entities) > maxEntities {
		entities = entities[len(entities)-maxEntities:]
	}

	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return xerrors.Errorf("error marshalling %s: %w", path, err)
	}

	// Write through a temp file so a crash never leaves a torn array
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return xerrors.Errorf("error writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func retrieveEntities[T any](path string) ([]T, error) {
	entities := []T{}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return entities, nil
	}
	if err != nil {
		return nil, xerrors.Errorf("error reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, xerrors.Errorf("error unmarshalling %s: %w", path, err)
	}

	return entities, nil
}
