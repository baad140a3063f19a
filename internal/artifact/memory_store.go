package artifact

import (
	"context"
	"os"
	"sync"

	"vidmerge/internal/services"
	"vidmerge/internal/videoid"
)

// MemoryStore is an in-process Store for tests. It does not sniff content.
// The error fields, when set, are returned by the matching operation.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	probes  int

	ExistsErr   error
	DownloadErr error
	UploadErr   error
	// OnUpload runs after a successful upload, outside the lock.
	OnUpload func(tier Tier, id videoid.ID)
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put seeds an object.
func (m *MemoryStore) Put(tier Tier, id videoid.ID, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[Key(tier, id)] = append([]byte(nil), data...)
}

// Get returns a copy of an object.
func (m *MemoryStore) Get(tier Tier, id videoid.ID) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[Key(tier, id)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Probes returns how many Exists calls the store has served.
func (m *MemoryStore) Probes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes
}

// Exists implements Store.
func (m *MemoryStore) Exists(_ context.Context, tier Tier, id videoid.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes++
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	_, ok := m.objects[Key(tier, id)]
	return ok, nil
}

// Download implements Store.
func (m *MemoryStore) Download(_ context.Context, tier Tier, id videoid.ID, dst string) error {
	m.mu.Lock()
	data, ok := m.objects[Key(tier, id)]
	err := m.DownloadErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if !ok {
		return services.Wrap(services.KindNotFound, stageStore, "download", Key(tier, id), nil)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return services.Wrap(services.KindStorageUnavailable, stageStore, "download", Key(tier, id), err)
	}
	return nil
}

// Upload implements Store.
func (m *MemoryStore) Upload(_ context.Context, src string, tier Tier, id videoid.ID) error {
	m.mu.Lock()
	err := m.UploadErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return services.Wrap(services.KindStorageUnavailable, stageStore, "upload", Key(tier, id), err)
	}
	m.Put(tier, id, data)
	if m.OnUpload != nil {
		m.OnUpload(tier, id)
	}
	return nil
}
