package mode

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/khaledhikmat/lens-go/model"
	"github.com/khaledhikmat/lens-go/pipeline"
	"github.com/khaledhikmat/lens-go/service/camera"
	"github.com/khaledhikmat/lens-go/service/config"
	"github.com/khaledhikmat/lens-go/service/inference"
	"github.com/khaledhikmat/lens-go/service/publisher"
	"github.com/khaledhikmat/lens-go/service/storage"
	"gocv.io/x/gocv"
)

type recordingData struct {
	mu         sync.Mutex
	errors     []interface{}
	loops      []model.LoopStats
	previews   []model.PreviewStats
	supervisor []model.SupervisorStats
}

func (d *recordingData) NewError(err interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors = append(d.errors, err)
	return nil
}

func (d *recordingData) NewLoopStats(stats model.LoopStats) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loops = append(d.loops, stats)
	return nil
}

func (d *recordingData) NewPreviewStats(stats model.PreviewStats) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.previews = append(d.previews, stats)
	return nil
}

func (d *recordingData) NewSupervisorStats(stats model.SupervisorStats) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.supervisor = append(d.supervisor, stats)
	return nil
}

type testRig struct {
	svcs      pipeline.ServicesFactory
	data      *recordingData
	camera    *camera.RandomService
	inference *inference.FakeService
	publisher *publisher.FakeService
	storage   *storage.FakeService
}

func newTestRig(t *testing.T, tweak func(*config.Settings)) testRig {
	t.Helper()

	s := config.Defaults()
	s.FifoPath = ""
	s.ResultsLog = ""
	s.RestartDelay = 10 * time.Millisecond
	s.RestartMaxDelay = 40 * time.Millisecond
	s.ModeMaxShutdownTime = 100 * time.Millisecond
	if tweak != nil {
		tweak(&s)
	}

	rig := testRig{
		data:      &recordingData{},
		camera:    camera.NewRandom(),
		inference: inference.NewDefaultFake(s.ModelInputSize),
		publisher: publisher.NewFake(),
		storage:   storage.NewFake(),
	}
	rig.svcs = pipeline.ServicesFactory{
		CfgSvc:       config.NewFromSettings(s),
		DataSvc:      rig.data,
		CameraSvc:    rig.camera,
		InferenceSvc: rig.inference,
		PublisherSvc: rig.publisher,
		StorageSvc:   rig.storage,
	}
	return rig
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func count(payloads []string, match func(string) bool) int {
	n := 0
	for _, p := range payloads {
		if match(p) {
			n++
		}
	}
	return n
}

func TestRestartDelay(t *testing.T) {
	base := 15 * time.Second
	maxDelay := time.Minute

	tests := []struct {
		name             string
		kind             model.Kind
		consecutiveFatal int
		want             time.Duration
	}{
		{"transient", model.Transient, 0, base},
		{"transient after fatal streak", model.Transient, 3, base},
		{"first fatal", model.Fatal, 1, base},
		{"second fatal", model.Fatal, 2, 30 * time.Second},
		{"capped", model.Fatal, 3, maxDelay},
		{"long streak", model.Fatal, 40, maxDelay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := restartDelay(tt.kind, tt.consecutiveFatal, base, maxDelay); got != tt.want {
				t.Errorf("restartDelay() = %s, want %s", got, tt.want)
			}
		})
	}

	if got := restartDelay(model.Fatal, 3, base, time.Second); got != base {
		t.Errorf("expected max below base to clamp to base, got %s", got)
	}
}

func TestInferGivesUpAfterMaxRestarts(t *testing.T) {
	rig := newTestRig(t, func(s *config.Settings) {
		s.MaxRestarts = 2
	})
	rig.inference.FailLoad(errors.New("boom"))

	err := Infer(context.Background(), rig.svcs)
	if err == nil {
		t.Fatal("expected the supervisor to give up")
	}
	if !model.IsFatal(err) {
		t.Errorf("expected the fatal run error to be wrapped, got %v", err)
	}

	payloads := rig.publisher.Payloads()
	starts := count(payloads, func(p string) bool { return p == pipeline.StartMessage })
	failures := count(payloads, func(p string) bool { return p == "Test failed: error loading model: boom" })
	if starts != 3 || failures != 3 {
		t.Errorf("expected 3 runs and 3 failures, got %d and %d: %v", starts, failures, payloads)
	}
	if rig.inference.Loads() != 3 {
		t.Errorf("expected 3 load attempts, got %d", rig.inference.Loads())
	}

	rig.data.mu.Lock()
	defer rig.data.mu.Unlock()

	if len(rig.data.errors) != 3 {
		t.Errorf("expected 3 stored errors, got %d", len(rig.data.errors))
	}
	if len(rig.data.supervisor) != 1 {
		t.Fatalf("expected supervisor stats, got %d", len(rig.data.supervisor))
	}
	stats := rig.data.supervisor[0]
	if stats.Runs != 3 || stats.Restarts != 2 || stats.FatalErrors != 3 || stats.TransientErrs != 0 {
		t.Errorf("unexpected supervisor stats: %+v", stats)
	}
}

func TestInferRestartsAfterTransientFailure(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.camera.FailAt(2)

	canxCtx, canxFn := context.WithCancel(context.Background())
	defer canxFn()

	done := make(chan error, 1)
	go func() {
		done <- Infer(canxCtx, rig.svcs)
	}()

	waitFor(t, "a restarted run", func() bool {
		payloads := rig.publisher.Payloads()
		return count(payloads, func(p string) bool { return p == pipeline.ModelLoadedMessage }) >= 2
	})
	canxFn()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected a clean exit, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not exit after cancellation")
	}

	payloads := rig.publisher.Payloads()
	failures := count(payloads, func(p string) bool {
		return strings.HasPrefix(p, "Test failed: failed to get frame from the stream")
	})
	if failures != 1 {
		t.Errorf("expected 1 frame failure, got %d: %v", failures, payloads)
	}

	rig.data.mu.Lock()
	defer rig.data.mu.Unlock()

	if len(rig.data.supervisor) != 1 {
		t.Fatalf("expected supervisor stats, got %d", len(rig.data.supervisor))
	}
	stats := rig.data.supervisor[0]
	if stats.TransientErrs != 1 || stats.Restarts != 1 || stats.FatalErrors != 0 {
		t.Errorf("unexpected supervisor stats: %+v", stats)
	}
	if len(rig.data.loops) < 1 {
		t.Error("expected loop stats to be stored")
	}
}

func TestInferRecoversPanics(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.svcs.InferenceSvc = panickyInference{rig.inference}

	err := runSafely(context.Background(), rig.svcs, nil, nil)
	if err == nil {
		t.Fatal("expected the panic to become an error")
	}
	if !model.IsFatal(err) {
		t.Error("expected a panic to be fatal")
	}
	if !strings.Contains(err.Error(), "inference run panicked") {
		t.Errorf("unexpected error: %v", err)
	}
}

type panickyInference struct {
	*inference.FakeService
}

func (panickyInference) Infer(_ gocv.Mat) (inference.Output, error) {
	panic("native crash")
}

func TestSnapshot(t *testing.T) {
	rig := newTestRig(t, nil)

	if err := Snapshot(context.Background(), rig.svcs); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if n := len(rig.storage.Keys()); n != 1 {
		t.Errorf("expected 1 upload, got %d", n)
	}
	if n := len(rig.publisher.Payloads()); n != 5 {
		t.Errorf("expected 5 messages, got %d", n)
	}
	if rig.publisher.Stats().Connected {
		t.Error("expected the publisher to be disconnected")
	}

	rig.data.mu.Lock()
	defer rig.data.mu.Unlock()
	if len(rig.data.loops) != 1 || rig.data.loops[0].Frames != 1 {
		t.Errorf("unexpected loop stats: %+v", rig.data.loops)
	}
}

func TestSnapshotFailure(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.storage.FailStore(errors.New("access denied"))

	if err := Snapshot(context.Background(), rig.svcs); err == nil {
		t.Fatal("expected an error")
	}

	payloads := rig.publisher.Payloads()
	last := payloads[len(payloads)-1]
	if !strings.HasPrefix(last, "Test failed: error storing snapshot") {
		t.Errorf("expected a failure message, got %s", last)
	}
}
