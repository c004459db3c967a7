package store

import (
	"sort"
	"time"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

// conflictThreshold is how many consecutive contradicting snapshots turn an
// intent into a reported conflict.
const conflictThreshold = 2

type Conflict struct {
	Intent    Intent
	Observed  models.PrincipalStatus
	FetchedAt time.Time
}

// Reconcile merges a snapshot into prev and returns the next state. It is
// pure: prev is not modified, and applying the same snapshot again at a
// later time yields the same state.
//
// Within the snapshot's scope the server is authoritative: principals it
// omits are dropped and the rest are replaced field by field. A confirmed
// REVOKED principal stays REVOKED until a re-approval is seen.
func Reconcile(prev State, snap Snapshot, now time.Time) (State, []Conflict) {
	next := State{
		principals: make(map[string]models.Principal, len(snap.Principals)),
		pending:    prev.pending,
		intents:    make(map[string]Intent, len(prev.intents)),
		sessions:   prev.sessions,
	}

	incoming := make(map[string]models.Principal, len(snap.Principals))
	for _, p := range snap.Principals {
		if snap.covers(p.Username) {
			incoming[p.Username] = p
		}
	}

	pendingNow := prev.pending
	if snap.HasPending {
		pendingNow = make(map[string]models.PendingRegistration, len(snap.Pending))
		for _, reg := range snap.Pending {
			pendingNow[reg.Username] = reg
		}
		next.pending = pendingNow
	}

	for name, p := range prev.principals {
		if !snap.covers(name) {
			next.principals[name] = p
		}
	}
	for name, p := range incoming {
		if old, ok := prev.principals[name]; ok && latchRevoked(old, p, prev.intents[name], snap, pendingNow, now) {
			p.Status = models.StatusRevoked
		}
		next.principals[name] = p
	}

	var conflicts []Conflict
	for name, intent := range prev.intents {
		if !intent.Live(now) {
			continue
		}
		if !snap.FetchedAt.IsZero() && snap.FetchedAt.Before(intent.IssuedAt) {
			// fetched before the mutation was issued; it cannot speak for it
			next.intents[name] = intent
			continue
		}
		snapP, present := incoming[name]
		observed, contradicted := judge(intent, snap, snapP, present, pendingNow)
		if !observed {
			next.intents[name] = intent
			continue
		}
		if !contradicted {
			continue
		}
		if intent.Contradictions == 0 || !intent.LastContradicted.Equal(snap.FetchedAt) {
			intent.Contradictions++
			intent.LastContradicted = snap.FetchedAt
			if intent.Contradictions == conflictThreshold {
				status := snapP.Status
				if !present {
					status = models.StatusPendingApproval
				}
				conflicts = append(conflicts, Conflict{Intent: intent, Observed: status, FetchedAt: snap.FetchedAt})
			}
		}
		next.intents[name] = intent
	}

	if len(next.sessions) > 0 {
		pruned := make(map[string][]models.Session, len(next.sessions))
		for name, sessions := range next.sessions {
			if _, ok := next.principals[name]; ok {
				pruned[name] = sessions
			}
		}
		next.sessions = pruned
	}

	return next, conflicts
}

// judge reports whether the snapshot says anything about the intent's
// target and, if so, whether it contradicts the intended outcome.
func judge(intent Intent, snap Snapshot, p models.Principal, present bool, pending map[string]models.PendingRegistration) (observed, contradicted bool) {
	inScope := snap.covers(intent.Username)
	switch intent.Kind {
	case IntentRevoke:
		if !inScope {
			return false, false
		}
		return true, present && p.Status != models.StatusRevoked
	case IntentApprove, IntentReject:
		if !inScope && !snap.HasPending {
			return false, false
		}
		_, listed := pending[intent.Username]
		stillPending := (snap.HasPending && listed) || (inScope && present && p.Status == models.StatusPendingApproval)
		if intent.Kind == IntentApprove && inScope && present && p.Status == models.StatusRevoked {
			return true, true
		}
		return true, stillPending
	}
	return false, false
}

// latchRevoked reports whether a principal previously confirmed REVOKED must
// stay REVOKED despite the snapshot. Only an approve intent or a fresh pass
// through PENDING_APPROVAL lifts the latch. An expired approve intent is
// ignored.
func latchRevoked(old, incoming models.Principal, intent Intent, snap Snapshot, pending map[string]models.PendingRegistration, now time.Time) bool {
	if old.Status != models.StatusRevoked || incoming.Status != models.StatusActive {
		return false
	}
	if intent.Kind == IntentApprove && intent.Live(now) {
		return false
	}
	if _, ok := pending[incoming.Username]; ok && snap.HasPending {
		return false
	}
	return true
}

// ReconcileSessions merges a fetched session list into the previous one for
// the same principal. Durations never shrink while a session is active and
// freeze once it closes; each device keeps at most one active session, the
// most recent login winning. Sessions the server no longer lists are dropped.
func ReconcileSessions(prev, fetched []models.Session) []models.Session {
	old := make(map[string]models.Session, len(prev))
	for _, s := range prev {
		old[s.SessionID] = s
	}

	out := make([]models.Session, 0, len(fetched))
	seen := make(map[string]struct{}, len(fetched))
	for _, s := range fetched {
		if _, dup := seen[s.SessionID]; dup {
			continue
		}
		seen[s.SessionID] = struct{}{}
		if o, ok := old[s.SessionID]; ok {
			switch {
			case !o.IsActive:
				s.IsActive = false
				s.DurationSeconds = o.DurationSeconds
			case s.DurationSeconds < o.DurationSeconds:
				s.DurationSeconds = o.DurationSeconds
			}
		}
		out = append(out, s)
	}

	sortSessions(out)

	activeDevice := make(map[string]struct{})
	for i := range out {
		if !out[i].IsActive {
			continue
		}
		key := deviceKey(out[i].Device)
		if key == "" {
			continue
		}
		if _, taken := activeDevice[key]; taken {
			out[i].IsActive = false
			continue
		}
		activeDevice[key] = struct{}{}
	}
	return out
}

func deviceKey(d *models.Device) string {
	if d == nil {
		return ""
	}
	switch {
	case d.DeviceID != "":
		return "id:" + d.DeviceID
	case d.MACAddress != "":
		return "mac:" + d.MACAddress
	case d.Hostname != "":
		return "host:" + d.Hostname
	}
	return ""
}

func sortSessions(ss []models.Session) {
	sort.SliceStable(ss, func(a, b int) bool {
		if !ss[a].LoginTime.Equal(ss[b].LoginTime) {
			return ss[a].LoginTime.After(ss[b].LoginTime)
		}
		return ss[a].SessionID < ss[b].SessionID
	})
}
