package pipeline

import (
	"time"

	"github.com/khaledhikmat/lens-go/service/camera"
	"github.com/khaledhikmat/lens-go/service/config"
	"github.com/khaledhikmat/lens-go/service/data"
	"github.com/khaledhikmat/lens-go/service/inference"
	"github.com/khaledhikmat/lens-go/service/lgr"
	"github.com/khaledhikmat/lens-go/service/publisher"
	"github.com/khaledhikmat/lens-go/service/storage"
)

const (
	// How long a producer waits for the mode processor to drain a stream
	streamSendTimeout = 2 * time.Second
)

type ServicesFactory struct {
	CfgSvc       config.IService
	DataSvc      data.IService
	CameraSvc    camera.IService
	InferenceSvc inference.IService
	PublisherSvc publisher.IService
	StorageSvc   storage.IService
}

func emit(stream chan interface{}, v interface{}) {
	if stream == nil {
		return
	}

	select {
	case stream <- v:
	case <-time.After(streamSendTimeout):
		lgr.Logger.Warn("stream not drained, dropping item")
	}
}
