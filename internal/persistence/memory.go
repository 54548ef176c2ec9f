package persistence

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/racelog/internal/store"
)

// Memory is an in-process Backend for tests and dry runs. It can enforce a
// byte quota and inject write failures.
type Memory struct {
	mu       sync.Mutex
	data     map[string][]byte
	quota    int64
	failPuts int
	failErr  error
	puts     int
}

// NewMemory returns an empty Memory. quota 0 means unbounded.
func NewMemory(quota int64) *Memory {
	return &Memory{data: make(map[string][]byte), quota: quota}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failPuts != 0 {
		if m.failPuts > 0 {
			m.failPuts--
		}
		return fmt.Errorf("put slice %q: %w", key, m.failErr)
	}
	if m.quota > 0 && m.usedLocked()-int64(len(m.data[key]))+int64(len(value)) > m.quota {
		return fmt.Errorf("put slice %q: %w", key, store.ErrQuotaExceeded)
	}
	m.data[key] = slices.Clone(value)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Usage(context.Context) (used, quota int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usedLocked(), m.quota, nil
}

// FailPuts makes the next n Put calls fail with err. n < 0 fails every
// Put until FailPuts(0, nil) is called.
func (m *Memory) FailPuts(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPuts = n
	m.failErr = err
}

// Puts returns the number of Put calls so far, failed ones included.
func (m *Memory) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// Keys returns the stored keys, sorted.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.data))
}

// Set stores a raw value directly, bypassing quota and failure injection.
func (m *Memory) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = slices.Clone(value)
}

func (m *Memory) usedLocked() int64 {
	var n int64
	for k, v := range m.data {
		n += int64(len(k) + len(v))
	}
	return n
}
