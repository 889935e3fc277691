package protocol

import (
	"context"
	"sync"
)

// CounterState holds the per-device send and receive counters. Both are
// 16-bit and wrap to 0 after 65535.
type CounterState struct {
	Send    uint16 `json:"send"`
	Receive uint16 `json:"receive"`
}

// CounterStore hands out send counters for commands to a device. NextSend
// increments and returns the new value; calls for the same device are
// serialized. The receive counter is assigned by the device and only
// recorded, see Registry.SetReceiveCounter.
type CounterStore interface {
	NextSend(ctx context.Context, address string) (uint16, error)
	Current(ctx context.Context, address string) (CounterState, error)
}

// MemoryCounters is a CounterStore kept in process memory.
type MemoryCounters struct {
	mu       sync.Mutex
	counters map[string]*CounterState
}

// NewMemoryCounters creates an empty in-memory counter store.
func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{counters: make(map[string]*CounterState)}
}

func (m *MemoryCounters) state(address string) *CounterState {
	st, ok := m.counters[address]
	if !ok {
		st = &CounterState{}
		m.counters[address] = st
	}
	return st
}

// Set overwrites the counters of a device.
func (m *MemoryCounters) Set(address string, st CounterState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.state(address) = st
}

// NextSend increments the send counter. uint16 arithmetic wraps 65535 to 0.
func (m *MemoryCounters) NextSend(_ context.Context, address string) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state(address)
	st.Send++
	return st.Send, nil
}


// Current returns the counters without changing them.
func (m *MemoryCounters) Current(_ context.Context, address string) (CounterState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.state(address), nil
}
