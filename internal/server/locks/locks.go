// Package locks provides exclusive entity locks taken as a set.
//
// Every mutation of a user or empire runs while holding the locks for all
// entities it touches. Sets are normalized (sorted by kind then id, without
// duplicates) before anything is locked, so two requesters asking for
// overlapping sets always lock in the same order.
package locks

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Kind is the entity type of a lock reference.
type Kind int

const (
	KindUser   Kind = 1
	KindEmpire Kind = 2
	KindClan   Kind = 3
	KindVars   Kind = 4
	KindMarket Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindEmpire:
		return "empire"
	case KindClan:
		return "clan"
	case KindVars:
		return "vars"
	case KindMarket:
		return "market"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Ref names one lockable entity.
type Ref struct {
	Kind Kind
	ID   int64
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

func User(id int64) Ref   { return Ref{Kind: KindUser, ID: id} }
func Empire(id int64) Ref { return Ref{Kind: KindEmpire, ID: id} }

// Vars is the world-variables entity. Holding it serializes scheduler passes.
func Vars() Ref { return Ref{Kind: KindVars} }

// Owner identifies a requester.
type Owner int64

// Reserved owners for non-interactive work.
const (
	OwnerScript Owner = 2147483643
	OwnerNew    Owner = 2147483646
	OwnerTurns  Owner = 2147483647
)

// Normalize returns refs sorted by kind then id, without duplicates.
func Normalize(refs []Ref) []Ref {
	out := slices.Clone(refs)
	slices.SortFunc(out, compareRefs)
	return slices.Compact(out)
}

func compareRefs(a, b Ref) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// Manager hands out lock sets.
//
// With wait == 0 Acquire fails immediately with common.ErrLockConflict when
// any entity is held by another owner. With wait > 0 it blocks up to wait
// for the whole set to become free. Entities already held by the same owner
// do not conflict.
type Manager interface {
	Acquire(ctx context.Context, owner Owner, refs []Ref, wait time.Duration) (*LockSet, error)
	ReleaseAll(ctx context.Context, owner Owner) error
}

// Observer receives lock timings. Implemented by the metrics package.
type Observer interface {
	LockAcquired(wait time.Duration)
	LockConflict()
}

type nopObserver struct{}

func (nopObserver) LockAcquired(time.Duration) {}
func (nopObserver) LockConflict()              {}

// LockSet is a held set of entity locks.
type LockSet struct {
	Owner Owner
	Refs  []Ref

	once    sync.Once
	release func()
}

func newLockSet(owner Owner, refs []Ref, release func()) *LockSet {
	return &LockSet{Owner: owner, Refs: refs, release: release}
}

// Release frees the set. Safe to call more than once and on nil.
func (s *LockSet) Release() {
	if s == nil || s.release == nil {
		return
	}
	s.once.Do(s.release)
}

// Holds reports whether the set covers ref.
func (s *LockSet) Holds(ref Ref) bool {
	if s == nil {
		return false
	}
	_, found := slices.BinarySearchFunc(s.Refs, ref, compareRefs)
	return found
}

// With acquires refs, runs fn and always releases.
func With(ctx context.Context, m Manager, owner Owner, refs []Ref, wait time.Duration, fn func(ctx context.Context) error) error {
	set, err := m.Acquire(ctx, owner, refs, wait)
	if err != nil {
		return err
	}
	defer set.Release()
	return fn(ctx)
}
