package mode

import (
	"context"
	"log/slog"
	"time"

	"github.com/hybridgroup/mjpeg"
	"github.com/khaledhikmat/lens-go/model"
	"github.com/khaledhikmat/lens-go/pipeline"
	"github.com/khaledhikmat/lens-go/service/lgr"
	"golang.org/x/xerrors"
)

const supervisorProc = "mode_infer"

// Infer keeps the inference loop running until the context is cancelled.
// A failed run is reported on the inference topic and restarted after a
// delay that depends on the error kind. The preview outlives restarts so
// an attached viewer is not dropped.
func Infer(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	// Create an error stream
	errorStream := make(chan interface{})

	// Create a stats stream shared by the loop and the preview
	statsStream := make(chan interface{})

	var stream *mjpeg.Stream
	if svcs.CfgSvc.GetPreviewAddr() != "" {
		stream = mjpeg.NewStream()
		go func() {
			if err := pipeline.ServeMJPEG(canxCtx, svcs.CfgSvc.GetPreviewAddr(), stream); err != nil {
				sendError(canxCtx, errorStream, model.GenError(supervisorProc,
					model.Transient,
					err,
					map[string]interface{}{"addr": svcs.CfgSvc.GetPreviewAddr()},
					"mjpeg preview server stopped"))
			}
		}()
	}

	notify := func(ctx context.Context, msg string) {
		if err := svcs.PublisherSvc.Publish(ctx, svcs.CfgSvc.GetTopic(), []byte(msg)); err != nil {
			lgr.Logger.Warn("failed to publish preview notice", slog.Any("error", err))
		}
	}

	preview := pipeline.NewPreview(svcs.CfgSvc.GetFifoPath(), stream, notify)
	go preview.Run(canxCtx, errorStream, statsStream)

	// Single slot: at most one run is in flight
	runResult := make(chan error, 1)
	startRun := func() {
		go func() {
			runResult <- runSafely(canxCtx, svcs, preview, statsStream)
		}()
	}

	startTime := time.Now().Unix()
	stats := model.SupervisorStats{}
	consecutiveFatal := 0
	running := true
	var restartTimer <-chan time.Time
	var exitErr error

	lgr.Logger.Info(
		"inference supervisor starting",
		slog.String("topic", svcs.CfgSvc.GetTopic()),
		slog.Duration("restartDelay", svcs.CfgSvc.GetRestartDelay()),
		slog.Int("maxRestarts", svcs.CfgSvc.GetMaxRestarts()),
	)

	stats.Runs++
	startRun()

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"inference supervisor context cancelled",
			)
			goto resume

		case err := <-runResult:
			running = false
			if canxCtx.Err() != nil {
				goto resume
			}

			if err == nil {
				err = model.GenError(supervisorProc, model.Transient, nil, nil, "inference run stopped unexpectedly")
			}

			kind := model.KindOf(err)
			if kind == model.Fatal {
				stats.FatalErrors++
				consecutiveFatal++
			} else {
				stats.TransientErrs++
				consecutiveFatal = 0
			}

			publishFailure(svcs, err)
			procError(svcs.DataSvc, err)

			if maxRestarts := svcs.CfgSvc.GetMaxRestarts(); maxRestarts > 0 && stats.Restarts >= maxRestarts {
				lgr.Logger.Error(
					"inference supervisor giving up",
					slog.Int("restarts", stats.Restarts),
					slog.Any("error", err),
				)
				exitErr = xerrors.Errorf("inference gave up after %d restarts: %w", stats.Restarts, err)
				goto resume
			}

			delay := restartDelay(kind, consecutiveFatal, svcs.CfgSvc.GetRestartDelay(), svcs.CfgSvc.GetRestartMaxDelay())
			lgr.Logger.Warn(
				"inference run failed, restarting",
				slog.String("kind", string(kind)),
				slog.Duration("delay", delay),
				slog.Any("error", err),
			)
			restartTimer = time.After(delay)

		case <-restartTimer:
			restartTimer = nil
			stats.Restarts++
			stats.Runs++
			running = true
			startRun()

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}

	// Wait in a non-blocking way for the shutdown period so the loop and
	// the preview can report their final stats and errors
resume:
	lgr.Logger.Info(
		"inference supervisor is waiting for all go routines to exit",
	)

	timer := time.NewTimer(svcs.CfgSvc.GetModeMaxShutdownTime())
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			lgr.Logger.Info(
				"inference supervisor shutdown waiting period expired. Exiting now",
				slog.Duration("period", svcs.CfgSvc.GetModeMaxShutdownTime()),
				slog.Bool("runInFlight", running),
			)

			stats.Uptime = time.Now().Unix() - startTime
			stats.Timestamp = time.Now().Unix()
			procStats(svcs.DataSvc, stats)
			svcs.PublisherSvc.Disconnect()
			return exitErr

		case err := <-runResult:
			running = false
			if err != nil && canxCtx.Err() == nil {
				procError(svcs.DataSvc, err)
			}

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}
}

// runSafely turns a panic inside a run into a fatal error.
func runSafely(canxCtx context.Context, svcs pipeline.ServicesFactory, preview *pipeline.Preview, statsStream chan interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.GenError(supervisorProc,
				model.Fatal,
				xerrors.Errorf("%v", r),
				nil,
				"inference run panicked")
		}
	}()

	return pipeline.Infer(canxCtx, svcs, preview, statsStream, 0)
}

// restartDelay returns base for transient errors. Fatal errors double the
// delay for each consecutive fatal failure, up to maxDelay.
func restartDelay(kind model.Kind, consecutiveFatal int, base, maxDelay time.Duration) time.Duration {
	if kind != model.Fatal || consecutiveFatal <= 1 {
		return base
	}
	if maxDelay < base {
		maxDelay = base
	}

	delay := base
	for i := 1; i < consecutiveFatal; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}

func sendError(canxCtx context.Context, errorStream chan interface{}, err error) {
	select {
	case errorStream <- err:
	case <-canxCtx.Done():
	}
}
