package store

import (
	"sort"
	"time"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

type IntentKind string

const (
	IntentRevoke  IntentKind = "revoke"
	IntentApprove IntentKind = "approve"
	IntentReject  IntentKind = "reject"
)

// Intent is a locally asserted, time-bounded belief about a pending server
// change. It only masks reads; confirmed state is never rewritten by it.
type Intent struct {
	ID             string
	Username       string
	Kind           IntentKind
	IssuedAt       time.Time
	ExpiresAt      time.Time
	Contradictions int
	// FetchedAt of the last snapshot that contradicted the intent, so the
	// same snapshot applied twice counts once.
	LastContradicted time.Time
}

func (i Intent) Live(now time.Time) bool {
	return now.Before(i.ExpiresAt)
}

// Snapshot is one fetched view of server state. Scope limits which
// principals the snapshot speaks for; nil means every principal.
type Snapshot struct {
	Principals []models.Principal
	Pending    []models.PendingRegistration
	HasPending bool
	Scope      []string
	FetchedAt  time.Time
}

func (s Snapshot) covers(username string) bool {
	if s.Scope == nil {
		return true
	}
	for _, u := range s.Scope {
		if u == username {
			return true
		}
	}
	return false
}

type LevelCounts struct {
	Critical int
	High     int
	Medium   int
	Low      int
	Total    int
}

// State is immutable once built. Reconcile and the Store's setters return
// fresh copies of any map they change.
type State struct {
	principals map[string]models.Principal
	pending    map[string]models.PendingRegistration
	intents    map[string]Intent
	sessions   map[string][]models.Session
}

func emptyState() State {
	return State{
		principals: map[string]models.Principal{},
		pending:    map[string]models.PendingRegistration{},
		intents:    map[string]Intent{},
		sessions:   map[string][]models.Session{},
	}
}

// Confirmed returns the server-confirmed principal without intent masking.
func (st State) Confirmed(username string) (models.Principal, bool) {
	p, ok := st.principals[username]
	return p, ok
}

func (st State) Intent(username string) (Intent, bool) {
	i, ok := st.intents[username]
	return i, ok
}

func (st State) Intents() []Intent {
	out := make([]Intent, 0, len(st.intents))
	for _, i := range st.intents {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Username < out[b].Username })
	return out
}

func (st State) liveIntent(username string, now time.Time) (Intent, bool) {
	i, ok := st.intents[username]
	if !ok || !i.Live(now) {
		return Intent{}, false
	}
	return i, true
}

// masked applies a live intent to a confirmed principal. The bool is false
// when the intent hides the principal entirely.
func (st State) masked(p models.Principal, now time.Time) (models.Principal, bool) {
	intent, ok := st.liveIntent(p.Username, now)
	if !ok {
		return p, true
	}
	switch intent.Kind {
	case IntentRevoke:
		p.Status = models.StatusRevoked
	case IntentApprove:
		p.Status = models.StatusActive
	case IntentReject:
		return p, false
	}
	return p, true
}

// Principals is the derived read model: confirmed principals with live
// intents applied, ordered by descending risk score then username.
func (st State) Principals(now time.Time) []models.Principal {
	out := make([]models.Principal, 0, len(st.principals))
	for _, p := range st.principals {
		if m, ok := st.masked(p, now); ok {
			out = append(out, m)
		}
	}
	SortPrincipals(out)
	return out
}

func (st State) Principal(username string, now time.Time) (models.Principal, bool) {
	p, ok := st.principals[username]
	if !ok {
		return models.Principal{}, false
	}
	return st.masked(p, now)
}

// Pending lists registrations awaiting approval, oldest first, minus those
// with a live approve or reject intent.
func (st State) Pending(now time.Time) []models.PendingRegistration {
	out := make([]models.PendingRegistration, 0, len(st.pending))
	for name, reg := range st.pending {
		if intent, ok := st.liveIntent(name, now); ok && intent.Kind != IntentRevoke {
			continue
		}
		out = append(out, reg)
	}
	sort.SliceStable(out, func(a, b int) bool {
		ta, tb := out[a].CreatedAt, out[b].CreatedAt
		switch {
		case ta != nil && tb != nil && !ta.Equal(*tb):
			return ta.Before(*tb)
		case (ta == nil) != (tb == nil):
			return tb == nil
		}
		return out[a].Username < out[b].Username
	})
	return out
}

func (st State) Sessions(username string) []models.Session {
	src := st.sessions[username]
	out := make([]models.Session, len(src))
	copy(out, src)
	return out
}

func (st State) Counts(now time.Time) LevelCounts {
	var c LevelCounts
	for _, p := range st.Principals(now) {
		c.Total++
		if p.RiskScore == nil {
			continue
		}
		switch p.RiskLevel {
		case models.RiskLevelCritical:
			c.Critical++
		case models.RiskLevelHigh:
			c.High++
		case models.RiskLevelMedium:
			c.Medium++
		case models.RiskLevelLow:
			c.Low++
		}
	}
	return c
}

func SortPrincipals(ps []models.Principal) {
	sort.SliceStable(ps, func(a, b int) bool {
		sa, sb := ps[a].Score(), ps[b].Score()
		if sa != sb {
			return sa > sb
		}
		return ps[a].Username < ps[b].Username
	})
}

// FilterByLevel keeps principals at the given level; an empty level keeps all.
func FilterByLevel(ps []models.Principal, level models.RiskLevel) []models.Principal {
	if level == "" {
		return ps
	}
	out := make([]models.Principal, 0, len(ps))
	for _, p := range ps {
		if p.RiskLevel == level {
			out = append(out, p)
		}
	}
	return out
}
