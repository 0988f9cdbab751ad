package storage

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/khaledhikmat/lens-go/service/config"
	"golang.org/x/xerrors"
)

type folderService struct {
	CfgSvc config.IService
}

// NewFolder keeps snapshots on the local disk, which is handy when the
// device has no cloud credentials.
func NewFolder(cfgSvc config.IService) IService {
	return &folderService{
		CfgSvc: cfgSvc,
	}
}

func (svc *folderService) StoreFile(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fn := filepath.Join(svc.CfgSvc.GetStorageFolder(), filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
		return "", xerrors.Errorf("error creating folder for %s: %w", fn, err)
	}

	if err := os.WriteFile(fn, data, 0644); err != nil {
		return "", xerrors.Errorf("error writing %s: %w", fn, err)
	}

	abs, err := filepath.Abs(fn)
	if err != nil {
		abs = fn
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}
