package quota

import (
	"context"
	"sync"
	"time"

	"github.com/adrianaguero/chatgate/internal/core"
)

const memorySweepEvery = 1024

// Memory is an in-process sliding window log. It is exact for a single
// instance and forgets everything on restart.
type Memory struct {
	window core.QuotaWindow
	now    func() time.Time

	mu      sync.Mutex
	entries map[string][]int64
	calls   int
}

// NewMemory returns an empty in-process store. A nil clock uses time.Now.
func NewMemory(window core.QuotaWindow, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		window:  window.Normalize(),
		now:     now,
		entries: make(map[string][]int64),
	}
}

func (m *Memory) TryAcquire(ctx context.Context, identifier string) (core.QuotaDecision, error) {
	if err := ctx.Err(); err != nil {
		return core.QuotaDecision{}, Wrap("memory", "acquire", err)
	}
	id, err := NormalizeIdentifier(identifier)
	if err != nil {
		return core.QuotaDecision{}, Wrap("memory", "acquire", err)
	}

	nowMs := m.now().UnixMilli()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.calls%memorySweepEvery == 0 {
		m.sweepLocked(nowMs)
	}

	log := m.pruneLocked(id, nowMs)
	allowed := len(log) < m.window.Limit
	if allowed {
		log = append(log, nowMs)
		m.entries[id] = log
	}

	return Decide(m.window, allowed, len(log), oldest(log)), nil
}

func (m *Memory) Inspect(ctx context.Context, identifier string) (core.QuotaDecision, error) {
	if err := ctx.Err(); err != nil {
		return core.QuotaDecision{}, Wrap("memory", "inspect", err)
	}
	id, err := NormalizeIdentifier(identifier)
	if err != nil {
		return core.QuotaDecision{}, Wrap("memory", "inspect", err)
	}

	nowMs := m.now().UnixMilli()

	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.pruneLocked(id, nowMs)
	return Decide(m.window, len(log) < m.window.Limit, len(log), oldest(log)), nil
}

func (m *Memory) Reset(ctx context.Context, identifier string) error {
	if err := ctx.Err(); err != nil {
		return Wrap("memory", "reset", err)
	}
	id, err := NormalizeIdentifier(identifier)
	if err != nil {
		return Wrap("memory", "reset", err)
	}

	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

// Len returns the number of identifiers currently tracked.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// pruneLocked drops entries at or before the window start and returns what remains.
func (m *Memory) pruneLocked(id string, nowMs int64) []int64 {
	log := m.entries[id]
	cutoff := nowMs - m.window.Duration.Milliseconds()
	keep := 0
	for keep < len(log) && log[keep] <= cutoff {
		keep++
	}
	if keep == 0 {
		return log
	}
	log = append(log[:0], log[keep:]...)
	if len(log) == 0 {
		delete(m.entries, id)
		return nil
	}
	m.entries[id] = log
	return log
}

func (m *Memory) sweepLocked(nowMs int64) {
	for id := range m.entries {
		m.pruneLocked(id, nowMs)
	}
}

func oldest(log []int64) int64 {
	if len(log) == 0 {
		return 0
	}
	return log[0]
}
