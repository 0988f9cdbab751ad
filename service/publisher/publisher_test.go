package publisher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/khaledhikmat/lens-go/service/config"
)

func TestFakePublish(t *testing.T) {
	ctx := context.Background()
	svc := NewFake()

	if err := svc.Publish(ctx, "t", []byte("x")); err == nil {
		t.Fatal("expected error before Connect")
	}

	_ = svc.Connect(ctx)
	if err := svc.Publish(ctx, "$aws/things/a/infer", []byte("Model loaded")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	msgs := svc.Messages()
	if len(msgs) != 1 || msgs[0].Payload != "Model loaded" || msgs[0].Topic != "$aws/things/a/infer" {
		t.Errorf("unexpected messages %+v", msgs)
	}

	svc.FailPublish(errors.New("broker down"))
	if err := svc.Publish(ctx, "t", []byte("x")); err == nil {
		t.Error("expected injected error")
	}

	stats := svc.Stats()
	if stats.Errors != 2 || stats.Published["$aws/things/a/infer"] != 1 || !stats.Connected {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestMQTTPublishWithoutConnect(t *testing.T) {
	svc := NewMQTT(config.NewHardCoded())

	if err := svc.Publish(context.Background(), "t", []byte("x")); err == nil {
		t.Fatal("expected error when not connected")
	}
	if svc.Stats().Errors != 1 {
		t.Errorf("expected error to be counted, got %d", svc.Stats().Errors)
	}
	svc.Disconnect()
}

func TestNewTLSConfig(t *testing.T) {
	cfg, err := newTLSConfig("", "", "")
	if err != nil || cfg != nil {
		t.Errorf("expected no TLS config, got %v, %v", cfg, err)
	}

	if _, err := newTLSConfig(filepath.Join(t.TempDir(), "missing.pem"), "", ""); err == nil {
		t.Error("expected error for missing CA file")
	}

	bogus := filepath.Join(t.TempDir(), "bogus.pem")
	_ = os.WriteFile(bogus, []byte("not a certificate"), 0644)
	if _, err := newTLSConfig(bogus, "", ""); err == nil {
		t.Error("expected error for CA file without certificates")
	}
}

type stubToken struct {
	done chan struct{}
	err  error
}

func (s *stubToken) Wait() bool                     { <-s.done; return true }
func (s *stubToken) WaitTimeout(time.Duration) bool { return true }
func (s *stubToken) Done() <-chan struct{}          { return s.done }
func (s *stubToken) Error() error                   { return s.err }

var _ mqtt.Token = (*stubToken)(nil)

func TestWaitToken(t *testing.T) {
	done := make(chan struct{})
	close(done)
	if err := waitToken(context.Background(), &stubToken{done: done, err: errors.New("refused")}, time.Second); err == nil {
		t.Error("expected token error")
	}

	pending := &stubToken{done: make(chan struct{})}
	if err := waitToken(context.Background(), pending, 10*time.Millisecond); err == nil {
		t.Error("expected timeout")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitToken(ctx, pending, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context cancellation, got %v", err)
	}
}

type fakeClient struct {
	mqtt.Client
	connectToken *stubToken
	connected    bool
	disconnects  int
}

func (c *fakeClient) IsConnected() bool   { return c.connected }
func (c *fakeClient) Connect() mqtt.Token { return c.connectToken }
func (c *fakeClient) Disconnect(_ uint)   { c.disconnects++; c.connected = false }

func newTestMQTT(connect func() *fakeClient) (*mqttService, *[]*fakeClient) {
	clients := []*fakeClient{}
	svc := &mqttService{
		CfgSvc:    config.NewHardCoded(),
		published: make(map[string]uint64),
	}
	svc.newClient = func(_ *mqtt.ClientOptions) mqtt.Client {
		c := connect()
		clients = append(clients, c)
		return c
	}
	return svc, &clients
}

func TestMQTTConnectReplacesStalledClient(t *testing.T) {
	svc, clients := newTestMQTT(func() *fakeClient {
		return &fakeClient{connectToken: &stubToken{done: make(chan struct{})}}
	})

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		if err := svc.Connect(ctx); err == nil {
			t.Fatal("expected connect to time out")
		}
		cancel()
	}

	if len(*clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(*clients))
	}
	if (*clients)[0].disconnects != 1 {
		t.Errorf("expected the stalled client to be disconnected, got %d disconnects", (*clients)[0].disconnects)
	}
	if (*clients)[1].disconnects != 0 {
		t.Errorf("expected the current client to be kept, got %d disconnects", (*clients)[1].disconnects)
	}

	svc.Disconnect()
	if (*clients)[1].disconnects != 1 {
		t.Error("expected Disconnect to stop the retrying client")
	}
}

func TestMQTTConnectReusesConnectedClient(t *testing.T) {
	svc, clients := newTestMQTT(func() *fakeClient {
		done := make(chan struct{})
		close(done)
		return &fakeClient{connectToken: &stubToken{done: done}, connected: true}
	})

	for i := 0; i < 3; i++ {
		if err := svc.Connect(context.Background()); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
	}

	if len(*clients) != 1 {
		t.Errorf("expected a single client, got %d", len(*clients))
	}
	if !svc.Stats().Connected {
		t.Error("expected connected stats")
	}
}
