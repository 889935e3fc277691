package protocol

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryCountersWrap(t *testing.T) {
	m := NewMemoryCounters()
	ctx := context.Background()
	m.Set("a", CounterState{Send: 65534, Receive: 65535})

	tests := []struct {
		name string
		next func() (uint16, error)
		want uint16
	}{
		{"send to max", func() (uint16, error) { return m.NextSend(ctx, "a") }, 65535},
		{"send wraps", func() (uint16, error) { return m.NextSend(ctx, "a") }, 0},
		{"other device starts at one", func() (uint16, error) { return m.NextSend(ctx, "b") }, 1},
	}

	for _, tt := range tests {
		got, err := tt.next()
		if err != nil {
			t.Fatalf("%s: error = %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}

	st, _ := m.Current(ctx, "a")
	if st != (CounterState{Send: 0, Receive: 65535}) {
		t.Errorf("Current() = %+v, want send wrapped and receive untouched", st)
	}
}

func TestMemoryCountersConcurrent(t *testing.T) {
	m := NewMemoryCounters()
	ctx := context.Background()
	const workers, each = 8, 100

	seen := make(chan uint16, workers*each)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				v, _ := m.NextSend(ctx, "dev")
				seen <- v
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[uint16]bool{}
	for v := range seen {
		if unique[v] {
			t.Fatalf("counter %d handed out twice", v)
		}
		unique[v] = true
	}
	if len(unique) != workers*each {
		t.Errorf("got %d unique counters, want %d", len(unique), workers*each)
	}
}
