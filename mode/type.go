package mode

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledhikmat/lens-go/model"
	"github.com/khaledhikmat/lens-go/pipeline"
	"github.com/khaledhikmat/lens-go/service/data"
	"github.com/khaledhikmat/lens-go/service/lgr"
)

type Processor func(canxCtx context.Context, svcs pipeline.ServicesFactory) error

const failurePublishTimeout = 5 * time.Second

func procStats(datasvc data.IService, stats interface{}) {
	switch stats := stats.(type) {
	case model.LoopStats:
		procLoopStats(datasvc, stats)
	case model.PreviewStats:
		procPreviewStats(datasvc, stats)
	case model.SupervisorStats:
		procSupervisorStats(datasvc, stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
	}
}

func procLoopStats(datasvc data.IService, stats model.LoopStats) {
	err := datasvc.NewLoopStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store loop stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procPreviewStats(datasvc data.IService, stats model.PreviewStats) {
	err := datasvc.NewPreviewStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store preview stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procSupervisorStats(datasvc data.IService, stats model.SupervisorStats) {
	err := datasvc.NewSupervisorStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store supervisor stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procError(datasvc data.IService, err interface{}) {
	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", errTemp),
		)
	}
}

// publishFailure reports a failed run on the inference topic. It uses its
// own deadline so a failure can still be reported while shutting down.
func publishFailure(svcs pipeline.ServicesFactory, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), failurePublishTimeout)
	defer cancel()

	topic := svcs.CfgSvc.GetTopic()
	if pubErr := svcs.PublisherSvc.Publish(ctx, topic, []byte(pipeline.FailureMessage(err))); pubErr != nil {
		lgr.Logger.Warn(
			"failed to publish run failure",
			slog.String("topic", topic),
			slog.Any("error", pubErr),
		)
	}
}
