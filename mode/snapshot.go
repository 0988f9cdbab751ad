package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/lens-go/pipeline"
	"github.com/khaledhikmat/lens-go/service/lgr"
)

// Snapshot runs a single iteration of the inference loop and exits. It is
// meant for checking a device: camera, model, bus and bucket in one shot.
func Snapshot(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	statsStream := make(chan interface{}, 1)
	defer svcs.PublisherSvc.Disconnect()

	err := pipeline.Infer(canxCtx, svcs, nil, statsStream, 1)

	select {
	case s := <-statsStream:
		procStats(svcs.DataSvc, s)
	default:
	}

	if err != nil {
		publishFailure(svcs, err)
		procError(svcs.DataSvc, err)
		return err
	}

	lgr.Logger.Info(
		"snapshot completed",
		slog.String("topic", svcs.CfgSvc.GetTopic()),
	)
	return nil
}
