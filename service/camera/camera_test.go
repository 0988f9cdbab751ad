package camera

import "testing"

func TestRandomRequiresOpen(t *testing.T) {
	svc := NewRandom()

	if _, err := svc.LastFrame(); err == nil {
		t.Fatal("expected error before Open")
	}
}

func TestRandomFrames(t *testing.T) {
	svc := NewRandom()
	if err := svc.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer svc.Close()

	img, err := svc.LastFrame()
	if err != nil {
		t.Fatalf("LastFrame failed: %v", err)
	}
	defer img.Close()

	if img.Rows() != 480 || img.Cols() != 640 || img.Channels() != 3 {
		t.Errorf("unexpected frame shape %dx%dx%d", img.Rows(), img.Cols(), img.Channels())
	}
	if svc.Frames() != 1 {
		t.Errorf("expected 1 frame, got %d", svc.Frames())
	}
}

func TestRandomInjectedFailure(t *testing.T) {
	svc := NewRandom()
	svc.FailAt(2)
	_ = svc.Open()

	img, err := svc.LastFrame()
	if err != nil {
		t.Fatalf("first frame failed: %v", err)
	}
	img.Close()

	if _, err := svc.LastFrame(); err == nil {
		t.Fatal("expected injected failure on second frame")
	}

	img, err = svc.LastFrame()
	if err != nil {
		t.Fatalf("third frame failed: %v", err)
	}
	img.Close()
}

func TestDeviceNotOpen(t *testing.T) {
	svc := NewDevice(nil)
	if _, err := svc.LastFrame(); err == nil {
		t.Fatal("expected error when device is not open")
	}
	if err := svc.Close(); err != nil {
		t.Errorf("Close on unopened device failed: %v", err)
	}
}
