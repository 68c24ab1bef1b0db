package replay

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/engine"
)

// Store persists replay blobs. Put returns a URI suitable for the ledger's
// result record; storage is content addressed, so putting the same blob
// twice returns the same URI.
type Store interface {
	Put(ctx context.Context, blob []byte) (string, error)
}

// MemStore keeps blobs in process memory, for tests and single-node runs.
type MemStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (m *MemStore) Put(_ context.Context, blob []byte) (string, error) {
	h := engine.Keccak256(blob)
	uri := "mem://replays/" + hex.EncodeToString(h[:])
	m.mu.Lock()
	m.blobs[uri] = append([]byte(nil), blob...)
	m.mu.Unlock()
	return uri, nil
}

// Get returns a stored blob by URI.
func (m *MemStore) Get(uri string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[uri]
	return b, ok
}

// Len reports how many distinct blobs are held.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}
