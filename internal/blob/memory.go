package blob

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory implements Store in memory, for tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memoryObject
}

type memoryObject struct {
	body        []byte
	contentType string
	createdAt   time.Time
}

// NewMemory returns an empty in-memory blob store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]memoryObject)}
}

func (m *Memory) Driver() Driver { return DriverMemory }

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}

	m.mu.Lock()
	m.data[key] = memoryObject{body: body, contentType: opts.ContentType, createdAt: time.Now()}
	m.mu.Unlock()

	return Info{Key: key, Size: int64(len(body)), ContentType: opts.ContentType}, nil
}

func (m *Memory) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return Info{}, nil, ErrNotFound
	}
	info := Info{Key: key, Size: int64(len(obj.body)), ContentType: obj.contentType, CreatedAt: obj.createdAt}
	return info, io.NopCloser(bytes.NewReader(obj.body)), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[key]; !ok {
		return ErrNotFound
	}
	delete(m.data, key)
	return nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var infos []Info
	for key, obj := range m.data {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		infos = append(infos, Info{Key: key, Size: int64(len(obj.body)), ContentType: obj.contentType, CreatedAt: obj.createdAt})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
