package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/config"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/poller"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/store"
)

var ErrUnknownRole = errors.New("no subscriptions for role")

// Remote is the read side of the authorization client.
type Remote interface {
	FetchPrincipals(ctx context.Context) ([]models.Principal, error)
	FetchPrincipal(ctx context.Context, username string) (models.Principal, error)
	FetchPendingRegistrations(ctx context.Context) ([]models.PendingRegistration, error)
	FetchAuditChain(ctx context.Context) (models.AuditChain, error)
	FetchUserSessions(ctx context.Context, username string) (models.SessionHistory, error)
	FetchNetworkActivity(ctx context.Context, username string) ([]models.NetworkActivity, error)
	FetchFileAccess(ctx context.Context) ([]models.FileAccessEvent, error)
	FetchRealtimeStats(ctx context.Context) (models.RealtimeStats, error)
}

type Refresher interface {
	Refresh(ctx context.Context) error
}

type subscription struct {
	name     string
	interval func(config.PollConfig) time.Duration
	cycle    func(d *Dashboard, username string) poller.Func
}

var filesSubscription = subscription{
	name:     "files",
	interval: func(c config.PollConfig) time.Duration { return c.Files },
	cycle:    func(d *Dashboard, _ string) poller.Func { return d.files.Refresh },
}

// plans maps each role to the subscriptions its dashboard runs while mounted.
var plans = map[models.Role][]subscription{
	models.RoleAdmin: {
		{
			name:     "admin",
			interval: func(c config.PollConfig) time.Duration { return c.Admin },
			cycle:    func(d *Dashboard, _ string) poller.Func { return d.adminCycle },
		},
		filesSubscription,
	},
	models.RoleHR: {
		{
			name:     "hr",
			interval: func(c config.PollConfig) time.Duration { return c.HR },
			cycle:    func(d *Dashboard, _ string) poller.Func { return d.rosterCycle },
		},
		filesSubscription,
	},
	models.RoleSOC: {
		{
			name:     "soc",
			interval: func(c config.PollConfig) time.Duration { return c.SOC },
			cycle:    func(d *Dashboard, _ string) poller.Func { return d.socCycle },
		},
		filesSubscription,
	},
	models.RoleEmployee: {
		{
			name:     "user",
			interval: func(c config.PollConfig) time.Duration { return c.User },
			cycle:    func(d *Dashboard, username string) poller.Func { return d.selfCycle(username) },
		},
		filesSubscription,
	},
}

// Dashboard owns the poller subscriptions of the mounted role view and
// feeds every fetch into the session store.
type Dashboard struct {
	remote Remote
	store  *store.Store
	files  Refresher
	poller *poller.Poller
	cfg    config.PollConfig
	logger zerolog.Logger

	mu      sync.Mutex
	handles []*poller.Handle
	mounted *models.AuthState
}

func New(remote Remote, st *store.Store, files Refresher, p *poller.Poller, cfg config.PollConfig, logger zerolog.Logger) *Dashboard {
	return &Dashboard{
		remote: remote,
		store:  st,
		files:  files,
		poller: p,
		cfg:    cfg,
		logger: logger.With().Str("component", "dashboard").Logger(),
	}
}

// Mount starts the subscriptions for state's role, replacing whatever view
// was mounted before.
func (d *Dashboard) Mount(state models.AuthState) error {
	plan, ok := plans[state.Role]
	if !ok {
		return fmt.Errorf("mount %q: %w", state.Role, ErrUnknownRole)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.unmountLocked()

	for _, sub := range plan {
		h := d.poller.Start(sub.cycle(d, state.Username), poller.Options{
			Name:     sub.name,
			Interval: sub.interval(d.cfg),
			Jitter:   d.cfg.Jitter,
		})
		d.handles = append(d.handles, h)
	}
	d.mounted = &state
	d.logger.Info().
		Str("username", state.Username).
		Str("role", string(state.Role)).
		Int("subscriptions", len(plan)).
		Msg("dashboard mounted")
	return nil
}

// Unmount cancels every subscription. In-flight cycles finish on their own.
func (d *Dashboard) Unmount() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unmountLocked()
}

func (d *Dashboard) unmountLocked() {
	if d.mounted == nil && len(d.handles) == 0 {
		return
	}
	for _, h := range d.handles {
		d.poller.Stop(h)
	}
	d.handles = nil
	if d.mounted != nil {
		d.logger.Info().Str("username", d.mounted.Username).Msg("dashboard unmounted")
	}
	d.mounted = nil
}

// Handles returns the running subscriptions of the mounted view.
func (d *Dashboard) Handles() []*poller.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*poller.Handle, len(d.handles))
	copy(out, d.handles)
	return out
}

func (d *Dashboard) Mounted() (models.AuthState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mounted == nil {
		return models.AuthState{}, false
	}
	return *d.mounted, true
}

// LoadSessions fetches and reconciles one principal's sessions on demand.
func (d *Dashboard) LoadSessions(ctx context.Context, username string) error {
	history, err := d.remote.FetchUserSessions(ctx, username)
	if err != nil {
		return err
	}
	if history.Username == "" {
		history.Username = username
	}
	d.store.ApplySessions(history)
	return nil
}

// fetchDirectory loads principals and, when withPending is set, the pending
// list in parallel. Both are required for the snapshot, which is stamped
// with the time the fetch started.
func (d *Dashboard) fetchDirectory(ctx context.Context, withPending bool) (store.Snapshot, error) {
	snap := store.Snapshot{FetchedAt: time.Now()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		principals, err := d.remote.FetchPrincipals(gctx)
		snap.Principals = principals
		return err
	})
	if withPending {
		snap.HasPending = true
		g.Go(func() error {
			pending, err := d.remote.FetchPendingRegistrations(gctx)
			snap.Pending = pending
			return err
		})
	}
	if err := g.Wait(); err != nil {
		d.store.RecordFailure(err)
		return store.Snapshot{}, err
	}
	return snap, nil
}

// bestEffort runs auxiliary fetches whose failure only costs freshness.
func (d *Dashboard) bestEffort(ctx context.Context, fetches map[string]func(context.Context) error) {
	var wg sync.WaitGroup
	for name, fetch := range fetches {
		name, fetch := name, fetch
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fetch(ctx); err != nil {
				d.logger.Warn().Err(err).Str("fetch", name).Msg("auxiliary fetch failed")
			}
		}()
	}
	wg.Wait()
}

func (d *Dashboard) fileEvents(ctx context.Context) error {
	events, err := d.remote.FetchFileAccess(ctx)
	if err != nil {
		return err
	}
	d.store.AppendFileEvents(events)
	return nil
}

func (d *Dashboard) auditChain(ctx context.Context) error {
	chain, err := d.remote.FetchAuditChain(ctx)
	if err != nil {
		return err
	}
	d.store.SetAuditChain(chain)
	return nil
}

func (d *Dashboard) realtimeStats(ctx context.Context) error {
	stats, err := d.remote.FetchRealtimeStats(ctx)
	if err != nil {
		return err
	}
	d.store.SetRealtimeStats(stats)
	return nil
}

func (d *Dashboard) allNetwork(ctx context.Context) error {
	activity, err := d.remote.FetchNetworkActivity(ctx, "")
	if err != nil {
		return err
	}
	d.store.SetNetworkActivity("", activity)
	return nil
}

func (d *Dashboard) adminCycle(ctx context.Context) error {
	snap, err := d.fetchDirectory(ctx, true)
	if err != nil {
		return err
	}
	d.store.Apply(snap)
	d.bestEffort(ctx, map[string]func(context.Context) error{
		"file_access":    d.fileEvents,
		"audit_chain":    d.auditChain,
		"realtime_stats": d.realtimeStats,
	})
	return nil
}

func (d *Dashboard) rosterCycle(ctx context.Context) error {
	snap, err := d.fetchDirectory(ctx, false)
	if err != nil {
		return err
	}
	d.store.Apply(snap)
	return nil
}

func (d *Dashboard) socCycle(ctx context.Context) error {
	snap, err := d.fetchDirectory(ctx, true)
	if err != nil {
		return err
	}
	d.store.Apply(snap)
	d.bestEffort(ctx, map[string]func(context.Context) error{
		"network_activity": d.allNetwork,
		"file_access":      d.fileEvents,
	})
	return nil
}

// selfCycle refreshes only the logged-in principal; the snapshot is scoped
// so other principals in the store are left alone.
func (d *Dashboard) selfCycle(username string) poller.Func {
	return func(ctx context.Context) error {
		fetchedAt := time.Now()
		p, err := d.remote.FetchPrincipal(ctx, username)
		if err != nil {
			d.store.RecordFailure(err)
			return err
		}
		d.store.Apply(store.Snapshot{Principals: []models.Principal{p}, Scope: []string{username}, FetchedAt: fetchedAt})
		d.bestEffort(ctx, map[string]func(context.Context) error{
			"sessions": func(ctx context.Context) error { return d.LoadSessions(ctx, username) },
		})
		return nil
	}
}
