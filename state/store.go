package state

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"tidbyt.dev/timetable/logging"
	"tidbyt.dev/timetable/metrics"
	"tidbyt.dev/timetable/session"
	"tidbyt.dev/timetable/storage"
)

const DefaultSlot = "timetable-session"

// Owns the State. Events are reduced one at a time; after each, the
// session (selection and date) is written to storage and subscribers
// are notified in dispatch order.
type Store struct {
	Slot    string
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	mutex   sync.Mutex
	state   State
	storage storage.Storage

	subMutex sync.Mutex
	subs     map[int]func(State)
	nextSub  int

	notifyMutex sync.Mutex
}

// Storage may be nil, in which case nothing is persisted.
func NewStore(s storage.Storage) *Store {
	return &Store{
		Slot:    DefaultSlot,
		Logger:  slog.Default(),
		state:   New(),
		storage: s,
		subs:    map[int]func(State){},
	}
}

func (st *Store) State() State {
	st.mutex.Lock()
	defer st.mutex.Unlock()
	return st.state
}

// Loads the persisted session, if any. A missing or unreadable blob
// leaves the default selection and date in place; the latter is
// logged but not returned.
func (st *Store) Restore() error {
	if st.storage == nil {
		return nil
	}

	blob, err := st.storage.Load(st.Slot)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	sess, err := session.Decode(blob)
	if err != nil {
		logging.LogError(st.Logger, "ignoring corrupt session", err,
			slog.String("slot", st.Slot))
		return nil
	}

	st.mutex.Lock()
	st.state.Selection = sess.Selection
	st.state.Date = sess.Date
	st.mutex.Unlock()

	return nil
}

// Drops the persisted session and returns selection and date to their
// defaults. Realtime state is kept. Subscribers are not notified.
func (st *Store) Clear() (State, error) {
	st.notifyMutex.Lock()
	defer st.notifyMutex.Unlock()

	st.mutex.Lock()
	fresh := New()
	st.state.Selection = fresh.Selection
	st.state.Date = fresh.Date
	next := st.state
	st.mutex.Unlock()

	if st.storage == nil {
		return next, nil
	}
	if err := st.storage.Delete(st.Slot); err != nil {
		return next, fmt.Errorf("clearing session: %w", err)
	}
	return next, nil
}

// Registers fn to be called with the new state after every event.
// Callbacks run on the dispatching goroutine and must not dispatch
// themselves. The returned function unregisters fn.
func (st *Store) Subscribe(fn func(State)) func() {
	st.subMutex.Lock()
	defer st.subMutex.Unlock()

	id := st.nextSub
	st.nextSub++
	st.subs[id] = fn

	return func() {
		st.subMutex.Lock()
		defer st.subMutex.Unlock()
		delete(st.subs, id)
	}
}

// Reduces ev into the state, persists the session and notifies
// subscribers. Returns the new state.
func (st *Store) Dispatch(ev Event) State {
	st.notifyMutex.Lock()
	defer st.notifyMutex.Unlock()

	st.mutex.Lock()
	st.state = Reduce(st.state, ev)
	next := st.state
	st.mutex.Unlock()

	st.persist(next)

	st.subMutex.Lock()
	subs := make([]func(State), 0, len(st.subs))
	ids := make([]int, 0, len(st.subs))
	for id := range st.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, st.subs[id])
	}
	st.subMutex.Unlock()

	for _, fn := range subs {
		fn(next)
	}

	return next
}

func (st *Store) persist(s State) {
	if st.storage == nil {
		return
	}

	blob, err := session.Encode(session.Session{Selection: s.Selection, Date: s.Date})
	if err == nil {
		err = st.storage.Save(st.Slot, blob)
	}
	st.Metrics.ObserveSessionWrite(err)
	if err != nil {
		logging.LogError(st.Logger, "failed to persist session", err,
			slog.String("slot", st.Slot))
	}
}
