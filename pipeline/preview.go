package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/hybridgroup/mjpeg"
	"github.com/khaledhikmat/lens-go/model"
	"github.com/khaledhikmat/lens-go/service/lgr"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

const (
	previewProc       = "pipeline_preview"
	previewRetryDelay = time.Second
)

// Notifier tells the outside world about preview events.
type Notifier func(ctx context.Context, msg string)

// Preview streams the latest annotated JPEG to a named pipe and,
// optionally, to an HTTP MJPEG stream. The inference loop is the only
// writer and Run is the only reader of the frames channel. The channel
// holds a single frame: a newer frame replaces an unread one.
type Preview struct {
	fifoPath string
	stream   *mjpeg.Stream
	notify   Notifier
	frames   chan []byte

	mu    sync.Mutex
	stats model.PreviewStats
}

func NewPreview(fifoPath string, stream *mjpeg.Stream, notify Notifier) *Preview {
	return &Preview{
		fifoPath: fifoPath,
		stream:   stream,
		notify:   notify,
		frames:   make(chan []byte, 1),
		stats:    model.PreviewStats{Name: "preview"},
	}
}

// Offer never blocks the caller.
func (p *Preview) Offer(jpg []byte) {
	if p == nil {
		return
	}

	if p.stream != nil {
		p.stream.UpdateJPEG(jpg)
	}

	select {
	case p.frames <- jpg:
		return
	default:
	}

	// Full: discard the stale frame and try again
	select {
	case <-p.frames:
		p.countDropped()
	default:
	}

	select {
	case p.frames <- jpg:
	default:
		p.countDropped()
	}
}

func (p *Preview) Stats() model.PreviewStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Run feeds the named pipe until the context is cancelled. Opening the
// pipe blocks until a viewer attaches; when the viewer goes away the pipe
// is closed and Run waits for the next one.
func (p *Preview) Run(canxCtx context.Context, errorStream chan interface{}, statsStream chan interface{}) {
	if p.fifoPath == "" {
		return
	}

	startTime := time.Now().Unix()
	defer func() {
		stats := p.Stats()
		stats.Uptime = time.Now().Unix() - startTime
		emit(statsStream, stats)
	}()

	if err := ensureFIFO(p.fifoPath); err != nil {
		emit(errorStream, model.GenError(previewProc,
			model.Fatal,
			err,
			map[string]interface{}{"fifo": p.fifoPath},
			"error creating preview pipe"))
		return
	}

	for {
		f, err := openFIFO(canxCtx, p.fifoPath)
		if canxCtx.Err() != nil {
			if f != nil {
				f.Close()
			}
			lgr.Logger.Info(
				"preview context cancelled",
			)
			return
		}

		if err != nil {
			emit(errorStream, model.GenError(previewProc,
				model.Transient,
				err,
				map[string]interface{}{"fifo": p.fifoPath},
				"error opening preview pipe"))

			select {
			case <-canxCtx.Done():
				return
			case <-time.After(previewRetryDelay):
			}
			continue
		}

		p.mu.Lock()
		p.stats.Opens++
		p.mu.Unlock()

		lgr.Logger.Info("preview pipe opened", slog.String("fifo", p.fifoPath))
		if p.notify != nil {
			p.notify(canxCtx, PipeOpenedMessage)
		}

		p.pump(canxCtx, f)
		f.Close()
	}
}

func (p *Preview) pump(canxCtx context.Context, f *os.File) {
	for {
		select {
		case <-canxCtx.Done():
			return

		case jpg := <-p.frames:
			if _, err := f.Write(jpg); err != nil {
				p.mu.Lock()
				p.stats.WriteErrors++
				p.mu.Unlock()

				lgr.Logger.Warn(
					"preview viewer went away",
					slog.String("fifo", p.fifoPath),
					slog.Any("error", err),
				)
				return
			}

			p.mu.Lock()
			p.stats.Frames++
			p.mu.Unlock()
		}
	}
}

func (p *Preview) countDropped() {
	p.mu.Lock()
	p.stats.Dropped++
	p.mu.Unlock()
}

func ensureFIFO(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := unix.Mkfifo(path, 0666); err != nil {
			return xerrors.Errorf("mkfifo %s: %w", path, err)
		}
		return nil
	}
	if err != nil {
		return xerrors.Errorf("stat %s: %w", path, err)
	}

	if info.Mode()&os.ModeNamedPipe == 0 {
		return xerrors.Errorf("%s exists and is not a named pipe", path)
	}
	return nil
}

type openResult struct {
	f   *os.File
	err error
}

// openFIFO opens the pipe for writing. The open blocks until a reader
// attaches, so cancellation releases it by attaching a throwaway reader.
func openFIFO(canxCtx context.Context, path string) (*os.File, error) {
	result := make(chan openResult, 1)
	go func() {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		result <- openResult{f: f, err: err}
	}()

	select {
	case r := <-result:
		return r.f, r.err

	case <-canxCtx.Done():
		reader, err := os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK, 0)
		if err != nil {
			return nil, canxCtx.Err()
		}
		defer reader.Close()

		r := <-result
		if r.f != nil {
			r.f.Close()
		}
		return nil, canxCtx.Err()
	}
}

// ServeMJPEG serves the preview stream over HTTP until the context is
// cancelled.
func ServeMJPEG(canxCtx context.Context, addr string, stream *mjpeg.Stream) error {
	mux := http.NewServeMux()
	mux.Handle("/", stream)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-canxCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Streaming clients never finish on their own
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
		}
	}()

	lgr.Logger.Info("mjpeg preview listening", slog.String("addr", addr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return xerrors.Errorf("mjpeg preview server: %w", err)
	}
	return nil
}
