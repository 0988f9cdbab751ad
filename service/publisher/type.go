package publisher

import "context"

type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

type IService interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Disconnect()
	Stats() Stats
}
