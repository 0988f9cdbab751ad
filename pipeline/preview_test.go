package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/khaledhikmat/lens-go/model"
)

func TestPreviewOfferKeepsLatest(t *testing.T) {
	p := NewPreview("", nil, nil)

	p.Offer([]byte("first"))
	p.Offer([]byte("second"))
	p.Offer([]byte("third"))

	select {
	case jpg := <-p.frames:
		if string(jpg) != "third" {
			t.Errorf("expected latest frame, got %s", jpg)
		}
	default:
		t.Fatal("expected a pending frame")
	}

	if dropped := p.Stats().Dropped; dropped != 2 {
		t.Errorf("expected 2 dropped frames, got %d", dropped)
	}

	var nilPreview *Preview
	nilPreview.Offer([]byte("ignored"))
}

func TestPreviewRunWithoutPipe(t *testing.T) {
	p := NewPreview("", nil, nil)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), nil, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return immediately without a pipe path")
	}
}

func TestPreviewStreamsToPipe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.mjpeg")

	notified := make(chan string, 4)
	p := NewPreview(path, nil, func(_ context.Context, msg string) {
		notified <- msg
	})

	canxCtx, canxFn := context.WithCancel(context.Background())
	defer canxFn()

	errorStream := make(chan interface{}, 4)
	statsStream := make(chan interface{}, 1)
	done := make(chan struct{})
	go func() {
		p.Run(canxCtx, errorStream, statsStream)
		close(done)
	}()

	// Wait for Run to create the pipe
	deadline := time.Now().Add(2 * time.Second)
	for {
		info, err := os.Stat(path)
		if err == nil && info.Mode()&os.ModeNamedPipe != 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("named pipe was not created")
		}
		time.Sleep(10 * time.Millisecond)
	}

	reader, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open pipe for reading: %v", err)
	}

	select {
	case msg := <-notified:
		if msg != PipeOpenedMessage {
			t.Errorf("expected %q, got %q", PipeOpenedMessage, msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected pipe opened notification")
	}

	frame := []byte("jpeg-bytes")
	p.Offer(frame)

	buf := make([]byte, len(frame))
	if _, err := io.ReadFull(reader, buf); err != nil {
		t.Fatalf("failed to read frame from pipe: %v", err)
	}
	if string(buf) != string(frame) {
		t.Errorf("expected %s, got %s", frame, buf)
	}
	reader.Close()

	canxFn()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("expected Run to exit after cancellation")
	}

	select {
	case s := <-statsStream:
		stats, ok := s.(model.PreviewStats)
		if !ok {
			t.Fatalf("unexpected stats type %T", s)
		}
		if stats.Opens < 1 || stats.Frames != 1 {
			t.Errorf("unexpected preview stats: %+v", stats)
		}
	default:
		t.Error("expected preview stats on exit")
	}

	select {
	case e := <-errorStream:
		t.Errorf("unexpected preview error: %v", e)
	default:
	}
}

func TestPreviewRejectsRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.mjpeg")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	errorStream := make(chan interface{}, 1)
	p := NewPreview(path, nil, nil)
	p.Run(context.Background(), errorStream, nil)

	select {
	case e := <-errorStream:
		err, ok := e.(model.CustomError)
		if !ok {
			t.Fatalf("unexpected error type %T", e)
		}
		if !model.IsFatal(err) {
			t.Error("expected a fatal preview error")
		}
	default:
		t.Fatal("expected an error for a regular file")
	}
}
