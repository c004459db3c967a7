package store

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/ids"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/metrics"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

// Store is the process-wide session store. Only the reconciler path
// (Apply, ApplySessions and the auxiliary setters) and the admin gateway
// (RecordIntent) write to it; views read derived copies.
type Store struct {
	mu     sync.RWMutex
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	state     State
	loaded    bool
	lastErr   error
	updatedAt time.Time

	chain     models.AuditChain
	events    []models.FileAccessEvent
	eventKeys map[eventKey]struct{}
	stats     *models.RealtimeStats
	network   map[string][]models.NetworkActivity

	revision    uint64
	watchers    map[int]chan uint64
	nextWatcher int
}

type eventKey struct {
	user   string
	file   string
	action models.FileAction
	at     int64
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(intentTTL time.Duration, logger zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		ttl:      intentTTL,
		now:      time.Now,
		logger:   logger.With().Str("component", "store").Logger(),
		watchers: map[int]chan uint64{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.state = emptyState()
	s.loaded = false
	s.lastErr = nil
	s.updatedAt = time.Time{}
	s.chain = models.AuditChain{}
	s.events = nil
	s.eventKeys = map[eventKey]struct{}{}
	s.stats = nil
	s.network = map[string][]models.NetworkActivity{}
}

// Apply reconciles a principal snapshot into the store. Conflicts are
// reported and logged but never fatal.
func (s *Store) Apply(snap Snapshot) []Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = now
	}
	next, conflicts := Reconcile(s.state, snap, now)
	s.state = next
	s.loaded = true
	s.lastErr = nil
	s.updatedAt = now

	for _, c := range conflicts {
		metrics.IntentConflicts.WithLabelValues(string(c.Intent.Kind)).Inc()
		s.logger.Warn().
			Str("username", c.Intent.Username).
			Str("intent", string(c.Intent.Kind)).
			Str("intent_id", c.Intent.ID).
			Str("observed", string(c.Observed)).
			Int("contradictions", c.Intent.Contradictions).
			Msg("CONFLICT: intent contradicted by consecutive snapshots")
	}
	s.publishLocked()
	return conflicts
}

// ApplySessions reconciles one principal's fetched session history.
func (s *Store) ApplySessions(h models.SessionHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := ReconcileSessions(s.state.sessions[h.Username], h.Sessions)
	sessions := make(map[string][]models.Session, len(s.state.sessions)+1)
	for name, list := range s.state.sessions {
		sessions[name] = list
	}
	sessions[h.Username] = merged
	s.state.sessions = sessions
	s.publishLocked()
}

// RecordIntent registers an optimistic admin intent for username, replacing
// any earlier one.
func (s *Store) RecordIntent(username string, kind IntentKind) Intent {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	intent := Intent{
		ID:        ids.New(),
		Username:  username,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	intents := make(map[string]Intent, len(s.state.intents)+1)
	for name, i := range s.state.intents {
		intents[name] = i
	}
	intents[username] = intent
	s.state.intents = intents
	s.publishLocked()
	return intent
}

// RecordFailure notes a failed fetch. It only matters before the first
// successful one; afterwards stale data keeps being served.
func (s *Store) RecordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.lastErr = err
	}
}

func (s *Store) SetAuditChain(chain models.AuditChain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chain = chain
	s.publishLocked()
}

// AppendFileEvents adds audit events not seen before and returns how many
// were new. Events are never modified or removed.
func (s *Store) AppendFileEvents(events []models.FileAccessEvent) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, ev := range events {
		key := eventKey{user: ev.User, file: ev.File, action: ev.Action, at: ev.Timestamp.UnixNano()}
		if _, ok := s.eventKeys[key]; ok {
			continue
		}
		s.eventKeys[key] = struct{}{}
		s.events = append(s.events, ev)
		added++
	}
	if added > 0 {
		s.publishLocked()
	}
	return added
}

func (s *Store) SetRealtimeStats(stats models.RealtimeStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = &stats
	s.publishLocked()
}

// SetNetworkActivity replaces the activity list for username ("" for all).
func (s *Store) SetNetworkActivity(username string, activity []models.NetworkActivity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	network := make(map[string][]models.NetworkActivity, len(s.network)+1)
	for k, v := range s.network {
		network[k] = v
	}
	network[username] = activity
	s.network = network
	s.publishLocked()
}

// Reset drops everything, used on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	metrics.PendingIntents.Set(0)
	s.publishLocked()
}

// State returns the current immutable state together with the store clock
// reading used to derive views from it.
func (s *Store) State() (State, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.now()
}

func (s *Store) Principals() []models.Principal {
	st, now := s.State()
	return st.Principals(now)
}

func (s *Store) Principal(username string) (models.Principal, bool) {
	st, now := s.State()
	return st.Principal(username, now)
}

func (s *Store) Pending() []models.PendingRegistration {
	st, now := s.State()
	return st.Pending(now)
}

func (s *Store) Sessions(username string) []models.Session {
	st, _ := s.State()
	return st.Sessions(username)
}

func (s *Store) Counts() LevelCounts {
	st, now := s.State()
	return st.Counts(now)
}

// LiveIntents lists intents that have not expired.
func (s *Store) LiveIntents() []Intent {
	st, now := s.State()
	var out []Intent
	for _, i := range st.Intents() {
		if i.Live(now) {
			out = append(out, i)
		}
	}
	return out
}

func (s *Store) AuditChain() models.AuditChain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chain
}

// FileEvents returns the audit events newest first.
func (s *Store) FileEvents() []models.FileAccessEvent {
	s.mu.RLock()
	out := make([]models.FileAccessEvent, len(s.events))
	copy(out, s.events)
	s.mu.RUnlock()

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Timestamp.After(out[b].Timestamp)
	})
	return out
}

func (s *Store) RealtimeStats() (models.RealtimeStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stats == nil {
		return models.RealtimeStats{}, false
	}
	return *s.stats, true
}

func (s *Store) NetworkActivity(username string) []models.NetworkActivity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.network[username]
}

// Loaded reports whether any principal snapshot has been applied, and the
// failure seen before that if none has.
func (s *Store) Loaded() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded, s.lastErr
}

func (s *Store) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Watch returns a channel that receives the latest revision after every
// change. Slow readers only see the newest value.
func (s *Store) Watch() (<-chan uint64, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextWatcher
	s.nextWatcher++
	ch := make(chan uint64, 1)
	s.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) publishLocked() {
	s.revision++
	live := 0
	now := s.now()
	for _, i := range s.state.intents {
		if i.Live(now) {
			live++
		}
	}
	metrics.PendingIntents.Set(float64(live))

	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.revision:
		default:
		}
	}
}
