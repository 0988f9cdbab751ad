package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/lens-go/mode"
	"github.com/khaledhikmat/lens-go/pipeline"
	"github.com/khaledhikmat/lens-go/service/camera"
	"github.com/khaledhikmat/lens-go/service/config"
	"github.com/khaledhikmat/lens-go/service/data"
	"github.com/khaledhikmat/lens-go/service/inference"
	"github.com/khaledhikmat/lens-go/service/lgr"
	"github.com/khaledhikmat/lens-go/service/publisher"
	"github.com/khaledhikmat/lens-go/service/storage"
)

const (
	// WARNING: this has to be bigger that the mode processor shutdown time
	waitOnShutdown = 8 * time.Second
)

var modeProcessors = map[string]mode.Processor{
	"infer":    mode.Infer,
	"snapshot": mode.Snapshot,
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)
	defer canxFn()

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		lgr.Logger.Info("loading env vars from .env file")
		err := godotenv.Load()
		if err != nil {
			lgr.Logger.Warn("no .env file loaded", slog.Any("error", xerrors.New(err.Error())))
		}
	}

	modeType := "infer"
	args := os.Args[1:]
	if len(args) > 0 {
		modeType = args[0]
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		panic("invalid mode")
	}

	// Config service
	cfgSvc, err := config.NewEnv()
	if err != nil {
		lgr.Logger.Error("invalid configuration", slog.Any("error", err))
		panic("invalid configuration")
	}

	svcs, err := newServices(canxCtx, cfgSvc)
	if err != nil {
		lgr.Logger.Error("error creating services", slog.Any("error", err))
		panic("error creating services")
	}

	// Create mode processor result
	modeProcResult := make(chan error, 1)

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs)
	}()

	// Wait for cancellation or mode proc
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"lens context cancelled",
			)
			goto resume

		case err := <-modeProcResult:
			if err != nil {
				lgr.Logger.Info(
					"lens mode processor exited",
					slog.String("mode", modeType),
					slog.Any("error", err),
				)
			}
			// Snapshot finishes on its own
			canxFn()
			return
		}
	}

	// Wait in a non-blocking way for `waitOnShutdown` for all the go routines to exit
	// This is needed because the go routines may need to report errors as they are existing
resume:
	lgr.Logger.Info(
		"lens is waiting for all go routines to exit",
	)

	// The only way to exit the main function is to wait for the shutdown
	// duration or for the mode processor to return
	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			// Timer expired, proceed with shutdown
			lgr.Logger.Info(
				"lens shutdown waiting period expired. Exiting now",
				slog.Duration("period", waitOnShutdown),
			)

			return

		case err := <-modeProcResult:
			if err != nil {
				lgr.Logger.Info(
					"lens mode processor exited",
					slog.Any("error", err),
				)
			}
			return
		}
	}
}

// newServices picks an implementation for every service from the
// configuration.
func newServices(canxCtx context.Context, cfgSvc config.IService) (pipeline.ServicesFactory, error) {
	// Camera service
	var cameraSvc camera.IService
	if cfgSvc.GetCameraSource() == config.CameraRandom {
		cameraSvc = camera.NewRandom()
	} else {
		cameraSvc = camera.NewDevice(cfgSvc)
	}

	// Inference service
	var inferenceSvc inference.IService
	if cfgSvc.GetModelPath() == config.ModelFake {
		inferenceSvc = inference.NewDefaultFake(cfgSvc.GetModelInputSize())
	} else {
		inferenceSvc = inference.NewDNN(cfgSvc)
	}

	// Publisher service
	var publisherSvc publisher.IService
	switch cfgSvc.GetPublisherType() {
	case config.PublisherMQTT:
		publisherSvc = publisher.NewMQTT(cfgSvc)
	default:
		publisherSvc = publisher.NewFake()
	}

	// Storage service
	var storageSvc storage.IService
	switch cfgSvc.GetStorageType() {
	case config.StorageS3:
		s3Svc, err := storage.NewS3(canxCtx, cfgSvc)
		if err != nil {
			return pipeline.ServicesFactory{}, err
		}
		storageSvc = s3Svc
	case config.StorageFolder:
		storageSvc = storage.NewFolder(cfgSvc)
	default:
		storageSvc = storage.NewFake()
	}

	lgr.Logger.Info(
		"lens services created",
		slog.String("thing", cfgSvc.GetThingName()),
		slog.String("camera", cfgSvc.GetCameraSource()),
		slog.String("model", cfgSvc.GetModelPath()),
		slog.String("publisher", cfgSvc.GetPublisherType()),
		slog.String("storage", cfgSvc.GetStorageType()),
		slog.Int("qos", int(cfgSvc.GetMQTTQoS())),
	)

	return pipeline.ServicesFactory{
		CfgSvc:       cfgSvc,
		DataSvc:      data.NewFilesDB(cfgSvc),
		CameraSvc:    cameraSvc,
		InferenceSvc: inferenceSvc,
		PublisherSvc: publisherSvc,
		StorageSvc:   storageSvc,
	}, nil
}
