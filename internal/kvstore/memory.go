package kvstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/storefront-cart/internal/port"
)

var ErrQuotaExceeded = errors.New("storage quota exceeded")

const changeBuffer = 64

// Memory is a process-local backend shared by any number of sessions, the way one browser profile
// is shared by its tabs.
type Memory struct {
	mu       sync.Mutex
	data     map[string]string
	quota    int
	watchers map[uint64]memoryWatcher
	nextID   uint64
}

type memoryWatcher struct {
	origin string
	ch     chan port.StoreChange
}

type MemoryOption func(*Memory)

// WithQuota caps the summed size of keys and values in bytes.
func WithQuota(bytes int) MemoryOption {
	return func(m *Memory) {
		m.quota = bytes
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		data:     make(map[string]string),
		watchers: make(map[uint64]memoryWatcher),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Session() port.SessionStore {
	return &MemorySession{backend: m, origin: uuid.NewString()}
}

func (m *Memory) Close() error {
	return nil
}

// SetQuota changes the quota of a live backend.
func (m *Memory) SetQuota(bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quota = bytes
}

func (m *Memory) write(origin string, entries map[string]string, deletes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quota > 0 {
		size := 0
		for k, v := range m.data {
			if _, replaced := entries[k]; replaced {
				continue
			}
			size += len(k) + len(v)
		}
		for k, v := range entries {
			size += len(k) + len(v)
		}
		for _, k := range deletes {
			if v, ok := m.data[k]; ok {
				if _, replaced := entries[k]; !replaced {
					size -= len(k) + len(v)
				}
			}
		}
		if size > m.quota {
			return ErrQuotaExceeded
		}
	}

	keys := make([]string, 0, len(entries)+len(deletes))
	for k, v := range entries {
		m.data[k] = v
		keys = append(keys, k)
	}
	for _, k := range deletes {
		if _, ok := m.data[k]; !ok {
			continue
		}
		delete(m.data, k)
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, w := range m.watchers {
		if w.origin == origin {
			continue
		}
		for _, k := range keys {
			select {
			case w.ch <- port.StoreChange{Key: k}:
			default:
				// a full buffer drops the signal; watchers re-read on the next one
			}
		}
	}
	return nil
}

// MemorySession is one handle onto a Memory backend.
type MemorySession struct {
	backend *Memory
	origin  string
}

func (s *MemorySession) Origin() string {
	return s.origin
}

func (s *MemorySession) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	v, ok := s.backend.data[key]
	return v, ok, nil
}

func (s *MemorySession) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

func (s *MemorySession) SetMany(ctx context.Context, entries map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	return s.backend.write(s.origin, entries, nil)
}

func (s *MemorySession) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.backend.write(s.origin, nil, []string{key})
}

func (s *MemorySession) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	var keys []string
	for k := range s.backend.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemorySession) Changes(ctx context.Context) (<-chan port.StoreChange, error) {
	ch := make(chan port.StoreChange, changeBuffer)

	s.backend.mu.Lock()
	id := s.backend.nextID
	s.backend.nextID++
	s.backend.watchers[id] = memoryWatcher{origin: s.origin, ch: ch}
	s.backend.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.backend.mu.Lock()
		delete(s.backend.watchers, id)
		close(ch)
		s.backend.mu.Unlock()
	}()

	return ch, nil
}
