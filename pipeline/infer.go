package pipeline

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/khaledhikmat/lens-go/model"
	"github.com/khaledhikmat/lens-go/service/inference"
	"github.com/khaledhikmat/lens-go/service/lgr"
	"github.com/khaledhikmat/lens-go/service/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gocv.io/x/gocv"
)

const inferProc = "pipeline_infer"

var tracer = otel.Tracer("github.com/khaledhikmat/lens-go/pipeline")

type run struct {
	id       string
	svcs     ServicesFactory
	preview  *Preview
	labels   inference.Labels
	journal  *Journal
	topic    string
	frames   int
	uploads  int
	messages int
	inferDur time.Duration
}

// Infer runs the capture, infer, annotate, publish and upload loop until
// the context is cancelled, maxFrames iterations completed (0 means no
// limit) or an iteration fails. Failures are returned as
// model.CustomError so the caller can choose a restart policy.
func Infer(canxCtx context.Context, svcs ServicesFactory, preview *Preview, statsStream chan interface{}, maxFrames int) error {
	r := &run{
		id:      uuid.NewString(),
		svcs:    svcs,
		preview: preview,
		topic:   svcs.CfgSvc.GetTopic(),
	}

	lgr.Logger.Info(
		"inference run starting....",
		slog.String("runId", r.id),
		slog.String("topic", r.topic),
		slog.String("model", svcs.CfgSvc.GetModelPath()),
		slog.String("camera", svcs.CfgSvc.GetCameraSource()),
	)

	startTime := time.Now()
	errors := 0
	defer func() {
		uptime := int64(time.Since(startTime).Seconds())
		fps := 0
		if uptime > 0 {
			fps = int(float64(r.frames) / float64(uptime))
		}

		var avgInferTime float64
		if r.frames > 0 {
			avgInferTime = r.inferDur.Seconds() / float64(r.frames)
		}

		emit(statsStream, model.LoopStats{
			Name:         "infer",
			RunID:        r.id,
			Frames:       r.frames,
			Errors:       errors,
			Uploads:      r.uploads,
			Publishes:    r.messages,
			FPS:          fps,
			Uptime:       uptime,
			AvgInferTime: avgInferTime,
		})
	}()

	if err := r.start(canxCtx); err != nil {
		errors++
		return err
	}
	defer r.stop()

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"inference run context cancelled",
				slog.String("runId", r.id),
			)
			return nil

		default:
			if err := r.iterate(canxCtx); err != nil {
				errors++
				return err
			}

			if maxFrames > 0 && r.frames >= maxFrames {
				return nil
			}
		}
	}
}

func (r *run) start(ctx context.Context) error {
	svcs := r.svcs

	if err := svcs.PublisherSvc.Connect(ctx); err != nil {
		return model.GenError(inferProc, model.Transient, err, nil, "error connecting to the message bus")
	}

	if err := r.publish(ctx, StartMessage); err != nil {
		return err
	}

	labels, err := inference.LoadLabels(svcs.CfgSvc.GetLabelsFile())
	if err != nil {
		return model.GenError(inferProc, model.Fatal, err, nil, "error loading labels")
	}
	r.labels = labels

	if err := svcs.CameraSvc.Open(); err != nil {
		return model.GenError(inferProc,
			model.Fatal,
			err,
			map[string]interface{}{"camera": svcs.CfgSvc.GetCameraSource()},
			"error opening camera")
	}

	if err := svcs.InferenceSvc.Load(ctx); err != nil {
		svcs.CameraSvc.Close()
		return model.GenError(inferProc,
			model.Fatal,
			err,
			map[string]interface{}{"model": svcs.CfgSvc.GetModelPath()},
			"error loading model")
	}

	if err := r.publish(ctx, ModelLoadedMessage); err != nil {
		r.stop()
		return err
	}

	r.journal = NewJournal(svcs.CfgSvc.GetResultsLog())
	return nil
}

func (r *run) stop() {
	if err := r.svcs.InferenceSvc.Close(); err != nil {
		lgr.Logger.Warn("error closing model", slog.Any("error", err))
	}
	if err := r.svcs.CameraSvc.Close(); err != nil {
		lgr.Logger.Warn("error closing camera", slog.Any("error", err))
	}
	if err := r.journal.Close(); err != nil {
		lgr.Logger.Warn("error closing results journal", slog.Any("error", err))
	}
}

func (r *run) publish(ctx context.Context, payload string) error {
	if err := r.svcs.PublisherSvc.Publish(ctx, r.topic, []byte(payload)); err != nil {
		return model.GenError(inferProc,
			model.Transient,
			err,
			map[string]interface{}{"topic": r.topic},
			"error publishing message")
	}
	r.messages++
	return nil
}

func (r *run) iterate(canxCtx context.Context) (err error) {
	cfg := r.svcs.CfgSvc
	frameNo := r.frames + 1

	ctx, span := tracer.Start(canxCtx, "infer.iteration", trace.WithAttributes(
		attribute.String("run.id", r.id),
		attribute.Int("frame", frameNo),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// Get a frame from the video stream
	frame, err := r.svcs.CameraSvc.LastFrame()
	if err != nil {
		return model.GenError(inferProc, model.Transient, err, nil, "failed to get frame from the stream")
	}
	defer frame.Close() // Crucial to close the image to avoid memory leaks

	// Resize frame to fit model input requirement
	size := cfg.GetModelInputSize()
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(frame, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)
	if resized.Empty() {
		return model.GenError(inferProc, model.Transient, nil, nil, "error resizing frame")
	}

	startInference := time.Now()
	out, err := r.svcs.InferenceSvc.Infer(resized)
	if err != nil {
		return model.GenError(inferProc, model.Transient, err, nil, "error running inference")
	}
	r.inferDur += time.Since(startInference)

	parsed, err := r.svcs.InferenceSvc.Parse(cfg.GetModelType(), out)
	if err != nil {
		return model.GenError(inferProc, model.Transient, err, nil, "error parsing %s result", cfg.GetModelType())
	}

	top := inference.TopClassifications(parsed.Classifications, cfg.GetTopN())
	if len(top) == 0 {
		return model.GenError(inferProc, model.Transient, nil, nil, "model returned no %s results", cfg.GetModelType())
	}

	PutTopLabel(&frame, r.labels.Name(top[0].Label))

	if err := r.journal.Record(r.id, frameNo, r.labels, top); err != nil {
		lgr.Logger.WarnContext(ctx, "error recording results", slog.Any("error", err))
	}

	if frameNo%cfg.GetPublishEvery() == 0 {
		if err := r.publish(ctx, TopNMessage(r.labels, top)); err != nil {
			return err
		}
	}

	jpg, err := EncodeJPEG(frame, PreviewJPEGQuality)
	if err != nil {
		return model.GenError(inferProc, model.Transient, err, nil, "error encoding preview frame")
	}
	r.preview.Offer(jpg)

	if frameNo%cfg.GetUploadEvery() == 0 {
		if err := r.upload(ctx, out, &resized); err != nil {
			return err
		}
	}

	r.frames++

	lgr.Logger.DebugContext(ctx,
		"frame processed",
		slog.String("runId", r.id),
		slog.Int("frame", frameNo),
		slog.String("top", r.labels.Name(top[0].Label)),
		slog.Float64("prob", float64(top[0].Prob)),
	)

	return nil
}

// upload draws the ssd view of the output on the resized frame, stores it
// and publishes its URL. An output without ssd rows is uploaded without
// boxes.
func (r *run) upload(ctx context.Context, out inference.Output, resized *gocv.Mat) error {
	cfg := r.svcs.CfgSvc

	if err := r.publish(ctx, UploadingMessage); err != nil {
		return err
	}

	parsed, err := r.svcs.InferenceSvc.Parse(inference.SSD, out)
	if err != nil {
		lgr.Logger.WarnContext(ctx, "error parsing ssd result, uploading without boxes", slog.Any("error", err))
	}

	DrawDetections(resized, inference.TopDetections(parsed.Detections, cfg.GetTopN()))

	snapshot, err := EncodeJPEG(*resized, cfg.GetJPEGQuality())
	if err != nil {
		return model.GenError(inferProc, model.Transient, err, nil, "error encoding snapshot")
	}

	key := storage.ImageKey(cfg.GetS3Prefix(), time.Now())
	url, err := r.svcs.StorageSvc.StoreFile(ctx, key, snapshot)
	if err != nil {
		return model.GenError(inferProc,
			model.Transient,
			err,
			map[string]interface{}{"key": key},
			"error storing snapshot")
	}
	r.uploads++

	return r.publish(ctx, ImageMessage(url))
}
