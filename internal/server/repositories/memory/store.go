// Package memory implements every repository over maps guarded by a single
// mutex. Records are copied on the way in and out, so callers never share
// state with the store. It backs the "memory" database and the service tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mdhender/promisance/internal/common"
	"github.com/mdhender/promisance/internal/server/models"
)

type Store struct {
	mu sync.Mutex

	nextUser   int64
	nextEmpire int64

	users    map[int64]models.User
	empires  map[int64]models.Empire
	schedule map[scheduleKey]models.ScheduleState
	events   []models.Event
	turnlog  []models.TurnLogEntry
	sessions map[string]models.Session
}

type scheduleKey struct {
	round int64
	cycle models.Cycle
}

func NewStore() *Store {
	return &Store{
		users:    make(map[int64]models.User),
		empires:  make(map[int64]models.Empire),
		schedule: make(map[scheduleKey]models.ScheduleState),
		sessions: make(map[string]models.Session),
	}
}

func (s *Store) Users() *Users       { return &Users{s} }
func (s *Store) Empires() *Empires   { return &Empires{s} }
func (s *Store) Schedule() *Schedule { return &Schedule{s} }
func (s *Store) Events() *Events     { return &Events{s} }
func (s *Store) TurnLog() *TurnLog   { return &TurnLog{s} }
func (s *Store) Sessions() *Sessions { return &Sessions{s} }

type Users struct{ s *Store }

func (r *Users) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextUser++
	u.ID = r.s.nextUser
	r.s.users[u.ID] = *u
	return u, nil
}

func (r *Users) FindByName(_ context.Context, username string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, u := range r.s.users {
		if strings.EqualFold(u.Username, username) {
			return id, nil
		}
	}
	return 0, common.ErrorNotFound
}

func (r *Users) Load(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *Users) Save(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return common.ErrorNotFound
	}
	r.s.users[u.ID] = *u
	return nil
}

type Empires struct{ s *Store }

func (r *Empires) Create(_ context.Context, e *models.Empire) (*models.Empire, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextEmpire++
	e.ID = r.s.nextEmpire
	r.s.empires[e.ID] = *e
	return e, nil
}

func (r *Empires) Load(_ context.Context, id int64) (*models.Empire, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.empires[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &e, nil
}

// Put stores e as is, keeping its id. Tests use it to seed records.
func (r *Empires) Put(e *models.Empire) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.empires[e.ID] = *e
	if e.ID > r.s.nextEmpire {
		r.s.nextEmpire = e.ID
	}
}

func (r *Empires) Save(_ context.Context, e *models.Empire) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.empires[e.ID]; !ok {
		return common.ErrorNotFound
	}
	r.s.empires[e.ID] = *e
	return nil
}

func (r *Empires) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.empires, id)
	return nil
}

func (r *Empires) ListIDsForUser(_ context.Context, userID int64) ([]int64, error) {
	return r.ids(func(e models.Empire) bool {
		return e.UserID == userID && e.State != models.StateAbandoned && e.State != models.StatePurged
	}), nil
}

func (r *Empires) ListLiveIDs(_ context.Context) ([]int64, error) {
	return r.ids(func(e models.Empire) bool { return e.State != models.StatePurged }), nil
}

func (r *Empires) CountRegistered(_ context.Context) (int, error) {
	return len(r.ids(func(e models.Empire) bool {
		return e.State != models.StateAbandoned && e.State != models.StatePurged
	})), nil
}

func (r *Empires) ids(keep func(models.Empire) bool) []int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]int64, 0)
	for id, e := range r.s.empires {
		if keep(e) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

type Schedule struct{ s *Store }

func (r *Schedule) Get(_ context.Context, roundID int64, cycle models.Cycle) (*models.ScheduleState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.schedule[scheduleKey{roundID, cycle}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &st, nil
}

func (r *Schedule) Advance(_ context.Context, roundID int64, cycle models.Cycle, period int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := scheduleKey{roundID, cycle}
	if st, ok := r.s.schedule[key]; ok && st.LastPeriod >= period {
		return false, nil
	}
	r.s.schedule[key] = models.ScheduleState{RoundID: roundID, Cycle: cycle, LastPeriod: period, RanAt: at}
	return true, nil
}

type Events struct{ s *Store }

func (r *Events) Append(_ context.Context, ev models.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events = append(r.s.events, ev)
	return nil
}

func (r *Events) ListForEmpire(_ context.Context, empireID int64, limit int) ([]models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Event, 0)
	for i := len(r.s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.events[i].EmpireID == empireID {
			out = append(out, r.s.events[i])
		}
	}
	return out, nil
}

// All returns every stored event in insertion order.
func (r *Events) All() []models.Event {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.Clone(r.s.events)
}

type TurnLog struct{ s *Store }

func (r *TurnLog) Append(_ context.Context, e models.TurnLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.turnlog = append(r.s.turnlog, e)
	return nil
}

func (r *TurnLog) Recent(_ context.Context, limit int) ([]models.TurnLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := slices.Clone(r.s.turnlog)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type Sessions struct{ s *Store }

func (r *Sessions) Upsert(_ context.Context, sess models.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, old := range r.s.sessions {
		if old.UserID == sess.UserID {
			delete(r.s.sessions, id)
		}
	}
	r.s.sessions[sess.ID] = sess
	return nil
}

func (r *Sessions) Get(_ context.Context, id string) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &sess, nil
}

func (r *Sessions) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}
