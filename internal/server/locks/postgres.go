package locks

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
	"time"

	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/dbx"
)

const (
	tryLockQuery   = `SELECT pg_try_advisory_lock($1)`
	unlockQuery    = `SELECT pg_advisory_unlock($1)`
	unlockAllQuery = `SELECT pg_advisory_unlock_all()`

	idMask = int64(1)<<48 - 1
)

// AdvisoryKey maps a ref onto the bigint advisory lock space.
func AdvisoryKey(r Ref) int64 {
	return int64(r.Kind)<<48 | (r.ID & idMask)
}

type ownerConn struct {
	mu     sync.Mutex
	conn   *sql.Conn
	counts map[Ref]int
	closed bool
}

// PostgresManager takes session-level advisory locks. Each owner gets one
// dedicated connection for as long as it holds anything; when the process
// dies the connection goes away and so do its locks.
type PostgresManager struct {
	db      *sql.DB
	obs     Observer
	backoff time.Duration

	mu     sync.Mutex
	owners map[Owner]*ownerConn
}

func NewPostgresManager(db *sql.DB, obs Observer) *PostgresManager {
	if obs == nil {
		obs = nopObserver{}
	}
	return &PostgresManager{
		db:      db,
		obs:     obs,
		backoff: 10 * time.Millisecond,
		owners:  make(map[Owner]*ownerConn),
	}
}

func (m *PostgresManager) Acquire(ctx context.Context, owner Owner, refs []Ref, wait time.Duration) (*LockSet, error) {
	refs = Normalize(refs)
	start := time.Now()
	deadline := start.Add(wait)
	backoff := m.backoff

	for {
		oc, err := m.conn(ctx, owner)
		if err != nil {
			return nil, err
		}

		busy, ok, err := m.tryAll(ctx, oc, refs)
		if err != nil {
			m.dropIfIdle(owner, oc)
			return nil, err
		}
		if ok {
			m.obs.LockAcquired(time.Since(start))
			return newLockSet(owner, refs, func() { m.release(owner, oc, refs) }), nil
		}
		m.dropIfIdle(owner, oc)

		remaining := time.Until(deadline)
		if wait <= 0 || remaining <= 0 {
			m.obs.LockConflict()
			return nil, fmt.Errorf("%w: %s", common.ErrLockConflict, busy)
		}

		t := time.NewTimer(min(backoff, remaining))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
		backoff = min(backoff*2, 250*time.Millisecond)
	}
}

// ReleaseAll unlocks everything owner holds and returns its connection.
func (m *PostgresManager) ReleaseAll(ctx context.Context, owner Owner) error {
	m.mu.Lock()
	oc, ok := m.owners[owner]
	delete(m.owners, owner)
	m.mu.Unlock()
	if !ok {
		return nil
	}

	oc.mu.Lock()
	defer oc.mu.Unlock()
	if oc.closed {
		return nil
	}
	oc.closed = true
	_, err := oc.conn.ExecContext(ctx, unlockAllQuery)
	if err != nil {
		discard(oc.conn)
	}
	_ = oc.conn.Close()
	return dbx.Classify(err)
}

func (m *PostgresManager) conn(ctx context.Context, owner Owner) (*ownerConn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if oc, ok := m.owners[owner]; ok {
		return oc, nil
	}
	c, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock connection: %w", dbx.Classify(err))
	}
	oc := &ownerConn{conn: c, counts: make(map[Ref]int)}
	m.owners[owner] = oc
	return oc, nil
}

// tryAll locks refs in order. On the first busy ref everything taken in
// this attempt is given back.
func (m *PostgresManager) tryAll(ctx context.Context, oc *ownerConn, refs []Ref) (Ref, bool, error) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	if oc.closed {
		return Ref{}, false, fmt.Errorf("%w: lock connection closed", common.ErrLockConflict)
	}

	taken := make([]Ref, 0, len(refs))
	undo := func() {
		for i := len(taken) - 1; i >= 0; i-- {
			m.decrement(oc, taken[i])
		}
	}

	for _, ref := range refs {
		if oc.counts[ref] > 0 {
			oc.counts[ref]++
			taken = append(taken, ref)
			continue
		}
		var got bool
		if err := oc.conn.QueryRowContext(ctx, tryLockQuery, AdvisoryKey(ref)).Scan(&got); err != nil {
			undo()
			return Ref{}, false, fmt.Errorf("try lock %s: %w", ref, dbx.Classify(err))
		}
		if !got {
			undo()
			return ref, false, nil
		}
		oc.counts[ref] = 1
		taken = append(taken, ref)
	}
	return Ref{}, true, nil
}

func (m *PostgresManager) release(owner Owner, oc *ownerConn, refs []Ref) {
	oc.mu.Lock()
	if !oc.closed {
		for i := len(refs) - 1; i >= 0; i-- {
			m.decrement(oc, refs[i])
		}
	}
	oc.mu.Unlock()
	m.dropIfIdle(owner, oc)
}

// decrement drops one hold on ref; the advisory lock is released with the
// last one. Caller holds oc.mu.
func (m *PostgresManager) decrement(oc *ownerConn, ref Ref) {
	oc.counts[ref]--
	if oc.counts[ref] > 0 {
		return
	}
	delete(oc.counts, ref)
	if _, err := oc.conn.ExecContext(context.Background(), unlockQuery, AdvisoryKey(ref)); err != nil {
		// a connection in an unknown lock state must not go back to the pool
		discard(oc.conn)
		oc.closed = true
	}
}

func (m *PostgresManager) dropIfIdle(owner Owner, oc *ownerConn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oc.mu.Lock()
	defer oc.mu.Unlock()
	if len(oc.counts) > 0 && !oc.closed {
		return
	}
	if m.owners[owner] == oc {
		delete(m.owners, owner)
	}
	oc.closed = true
	_ = oc.conn.Close()
}

func discard(c *sql.Conn) {
	_ = c.Raw(func(any) error { return driver.ErrBadConn })
}
