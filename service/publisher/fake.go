package publisher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/khaledhikmat/lens-go/service/lgr"
	"golang.org/x/xerrors"
)

type Message struct {
	Topic   string
	Payload string
}

// FakeService records published messages and logs them. It serves dry
// runs and tests.
type FakeService struct {
	mu         sync.Mutex
	messages   []Message
	connected  bool
	publishErr error
	errors     uint64
}

func NewFake() *FakeService {
	return &FakeService{}
}

// FailPublish makes every publish fail until reset with nil.
func (svc *FakeService) FailPublish(err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.publishErr = err
}

func (svc *FakeService) Connect(_ context.Context) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.connected = true
	return nil
}

func (svc *FakeService) Publish(_ context.Context, topic string, payload []byte) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if !svc.connected {
		svc.errors++
		return xerrors.New("fake publisher not connected")
	}
	if svc.publishErr != nil {
		svc.errors++
		return svc.publishErr
	}

	svc.messages = append(svc.messages, Message{Topic: topic, Payload: string(payload)})
	lgr.Logger.Debug(
		"fake publish",
		slog.String("topic", topic),
		slog.String("payload", string(payload)),
	)
	return nil
}

func (svc *FakeService) Disconnect() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.connected = false
}

func (svc *FakeService) Stats() Stats {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	published := map[string]uint64{}
	for _, m := range svc.messages {
		published[m.Topic]++
	}
	return Stats{Connected: svc.connected, Published: published, Errors: svc.errors}
}

func (svc *FakeService) Messages() []Message {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]Message(nil), svc.messages...)
}

func (svc *FakeService) Payloads() []string {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	payloads := make([]string, len(svc.messages))
	for i, m := range svc.messages {
		payloads[i] = m.Payload
	}
	return payloads
}
