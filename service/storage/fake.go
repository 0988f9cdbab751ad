package storage

import (
	"context"
	"sync"
)

// FakeService keeps stored objects in memory.
type FakeService struct {
	mu      sync.Mutex
	objects map[string][]byte
	keys    []string
	err     error
}

func NewFake() *FakeService {
	return &FakeService{objects: map[string][]byte{}}
}

func (svc *FakeService) FailStore(err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.err = err
}

func (svc *FakeService) StoreFile(_ context.Context, key string, data []byte) (string, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.err != nil {
		return "", svc.err
	}

	svc.objects[key] = append([]byte(nil), data...)
	svc.keys = append(svc.keys, key)
	return "fake://" + key, nil
}

func (svc *FakeService) Keys() []string {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]string(nil), svc.keys...)
}

func (svc *FakeService) Object(key string) ([]byte, bool) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	data, ok := svc.objects[key]
	return data, ok
}
