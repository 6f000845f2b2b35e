// Package memory implements store.Store in process memory. It backs tests and
// the STORE_DRIVER=memory development mode and honors the same access rules as
// the PostgreSQL store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yatri-app/backend/internal/models"
	"github.com/yatri-app/backend/internal/store"
)

type memberKey struct{ trip, user uuid.UUID }

type data struct {
	trips    map[uuid.UUID]models.Trip
	members  map[memberKey]models.TripMember
	requests map[uuid.UUID]models.TripRequest
	messages map[uuid.UUID][]models.TripMessage
	users    map[uuid.UUID]models.User
}

func newData() *data {
	return &data{
		trips:    make(map[uuid.UUID]models.Trip),
		members:  make(map[memberKey]models.TripMember),
		requests: make(map[uuid.UUID]models.TripRequest),
		messages: make(map[uuid.UUID][]models.TripMessage),
		users:    make(map[uuid.UUID]models.User),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.trips {
		c.trips[k] = v
	}
	for k, v := range d.members {
		c.members[k] = v
	}
	for k, v := range d.requests {
		c.requests[k] = v
	}
	for k, v := range d.messages {
		c.messages[k] = append([]models.TripMessage(nil), v...)
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	return c
}

type shared struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	data   *data
	faults map[string]error
	now    func() time.Time
	last   time.Time
}

// Store is an in-memory store.Store. Transactions are serialized and roll back
// by restoring a snapshot.
type Store struct {
	sh   *shared
	inTx bool
}

// Option configures a Store.
type Option func(*shared)

// WithClock overrides time.Now for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *shared) { s.now = now }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	sh := &shared{data: newData(), faults: make(map[string]error), now: time.Now}
	for _, opt := range opts {
		opt(sh)
	}
	return &Store{sh: sh}
}

// InjectFault makes every call of the named operation (e.g. "AddMember") fail
// with err until ClearFaults is called.
func (s *Store) InjectFault(op string, err error) {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	s.sh.faults[op] = err
}

// ClearFaults removes all injected faults.
func (s *Store) ClearFaults() {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	s.sh.faults = make(map[string]error)
}

func (s *Store) Trips() store.TripStore       { return tripStore{s} }
func (s *Store) Members() store.MemberStore   { return memberStore{s} }
func (s *Store) Requests() store.RequestStore { return requestStore{s} }
func (s *Store) Messages() store.MessageStore { return messageStore{s} }
func (s *Store) Users() store.UserStore       { return userStore{s} }

// WithTx runs fn against a transactional view. On error every write made by fn is discarded.
func (s *Store) WithTx(ctx context.Context, fn func(store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.sh.txMu.Lock()
	defer s.sh.txMu.Unlock()

	s.sh.mu.Lock()
	snapshot := s.sh.data.clone()
	s.sh.mu.Unlock()

	if err := fn(&Store{sh: s.sh, inTx: true}); err != nil {
		s.sh.mu.Lock()
		s.sh.data = snapshot
		s.sh.mu.Unlock()
		return err
	}
	return nil
}

// do runs fn under the data lock after checking ctx and injected faults.
// Outside a transaction it also waits for any running transaction.
func (s *Store) do(ctx context.Context, op string, fn func(d *data) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.sh.txMu.Lock()
		defer s.sh.txMu.Unlock()
	}
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	if err := s.sh.faults[op]; err != nil {
		return err
	}
	return fn(s.sh.data)
}

// stamp returns a strictly increasing timestamp. Callers hold mu.
func (s *Store) stamp() time.Time {
	t := s.sh.now().UTC()
	if !t.After(s.sh.last) {
		t = s.sh.last.Add(time.Microsecond)
	}
	s.sh.last = t
	return t
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortTrips(trips []models.Trip) {
	sort.SliceStable(trips, func(i, j int) bool {
		if !trips[i].StartDate.Equal(trips[j].StartDate) {
			return trips[i].StartDate.Before(trips[j].StartDate)
		}
		return trips[i].CreatedAt.Before(trips[j].CreatedAt)
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

var _ store.Store = (*Store)(nil)
