package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mdhender/promisance/internal/common"
)

type hold struct {
	ref   Ref
	owner Owner
	count int
}

// MemoryManager is a single-process Manager. A set is taken all at once
// under one mutex, so a requester never holds part of a set while waiting.
type MemoryManager struct {
	mu      sync.Mutex
	held    map[Ref]*hold
	changed chan struct{}
	obs     Observer
}

func NewMemoryManager(obs Observer) *MemoryManager {
	if obs == nil {
		obs = nopObserver{}
	}
	return &MemoryManager{
		held:    make(map[Ref]*hold),
		changed: make(chan struct{}),
		obs:     obs,
	}
}

func (m *MemoryManager) Acquire(ctx context.Context, owner Owner, refs []Ref, wait time.Duration) (*LockSet, error) {
	refs = Normalize(refs)
	start := time.Now()

	var deadline <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		deadline = t.C
	}

	for {
		m.mu.Lock()
		busy, ok := m.busy(owner, refs)
		if !ok {
			holds := m.take(owner, refs)
			m.mu.Unlock()
			m.obs.LockAcquired(time.Since(start))
			return newLockSet(owner, refs, func() { m.release(holds) }), nil
		}
		changed := m.changed
		m.mu.Unlock()

		if wait <= 0 {
			m.obs.LockConflict()
			return nil, fmt.Errorf("%w: %s", common.ErrLockConflict, busy)
		}

		select {
		case <-changed:
		case <-deadline:
			m.obs.LockConflict()
			return nil, fmt.Errorf("%w: %s still held after %s", common.ErrLockConflict, busy, wait)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// ReleaseAll drops every lock held by owner.
func (m *MemoryManager) ReleaseAll(_ context.Context, owner Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ref, h := range m.held {
		if h.owner == owner {
			delete(m.held, ref)
		}
	}
	m.broadcast()
	return nil
}

// HeldBy reports the owner holding ref, if any.
func (m *MemoryManager) HeldBy(ref Ref) (Owner, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.held[ref]
	if !ok {
		return 0, false
	}
	return h.owner, true
}

func (m *MemoryManager) busy(owner Owner, refs []Ref) (Ref, bool) {
	for _, ref := range refs {
		if h, ok := m.held[ref]; ok && h.owner != owner {
			return ref, true
		}
	}
	return Ref{}, false
}

func (m *MemoryManager) take(owner Owner, refs []Ref) []*hold {
	holds := make([]*hold, 0, len(refs))
	for _, ref := range refs {
		h, ok := m.held[ref]
		if !ok {
			h = &hold{ref: ref, owner: owner}
			m.held[ref] = h
		}
		h.count++
		holds = append(holds, h)
	}
	return holds
}

func (m *MemoryManager) release(holds []*hold) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range holds {
		// skip holds dropped by ReleaseAll
		if m.held[h.ref] != h {
			continue
		}
		h.count--
		if h.count <= 0 {
			delete(m.held, h.ref)
		}
	}
	m.broadcast()
}

func (m *MemoryManager) broadcast() {
	close(m.changed)
	m.changed = make(chan struct{})
}
