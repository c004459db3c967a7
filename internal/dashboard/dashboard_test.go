package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/client"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/config"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/poller"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/store"
)

type fakeRemote struct {
	mu            sync.Mutex
	principals    []models.Principal
	pending       []models.PendingRegistration
	principalsErr error
	auditErr      error
	calls         map[string]int
	// onPrincipals runs while the principal fetch is in flight.
	onPrincipals func()
}

func newFakeRemote(principals ...models.Principal) *fakeRemote {
	return &fakeRemote{principals: principals, calls: map[string]int{}}
}

func (f *fakeRemote) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeRemote) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) FetchPrincipals(ctx context.Context) ([]models.Principal, error) {
	f.count("principals")
	if f.onPrincipals != nil {
		f.onPrincipals()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.principals, f.principalsErr
}

func (f *fakeRemote) FetchPrincipal(ctx context.Context, username string) (models.Principal, error) {
	f.count("principal")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.principals {
		if p.Username == username {
			return p, nil
		}
	}
	return models.Principal{}, &client.Error{Kind: client.KindServer, Status: 404, Op: "fetch_principal"}
}

func (f *fakeRemote) FetchPendingRegistrations(ctx context.Context) ([]models.PendingRegistration, error) {
	f.count("pending")
	return f.pending, nil
}

func (f *fakeRemote) FetchAuditChain(ctx context.Context) (models.AuditChain, error) {
	f.count("audit")
	if f.auditErr != nil {
		return models.AuditChain{}, f.auditErr
	}
	return models.AuditChain{Length: 1, Valid: true, Blocks: []models.AuditBlock{{Index: 0, CurrentHash: "h0"}}}, nil
}

func (f *fakeRemote) FetchUserSessions(ctx context.Context, username string) (models.SessionHistory, error) {
	f.count("sessions")
	return models.SessionHistory{
		Username: username,
		Sessions: []models.Session{{SessionID: "s1", Principal: username, IsActive: true, DurationSeconds: 60}},
	}, nil
}

func (f *fakeRemote) FetchNetworkActivity(ctx context.Context, username string) ([]models.NetworkActivity, error) {
	f.count("network")
	return []models.NetworkActivity{{User: "bob", Destination: "8.8.8.8", Port: 53, Protocol: "UDP", External: true}}, nil
}

func (f *fakeRemote) FetchFileAccess(ctx context.Context) ([]models.FileAccessEvent, error) {
	f.count("file_access")
	return []models.FileAccessEvent{{User: "bob", File: "a.txt", Action: models.FileActionRead, Timestamp: time.Unix(100, 0)}}, nil
}

func (f *fakeRemote) FetchRealtimeStats(ctx context.Context) (models.RealtimeStats, error) {
	f.count("stats")
	return models.RealtimeStats{ActiveNow: 2, TotalUsers: 5}, nil
}

type countingRefresher struct {
	n atomic.Int32
}

func (c *countingRefresher) Refresh(ctx context.Context) error {
	c.n.Add(1)
	return nil
}

func scored(name string, score int) models.Principal {
	return models.Principal{
		Username:  name,
		RiskScore: &score,
		RiskLevel: models.LevelForScore(score),
		Status:    models.StatusActive,
	}
}

var fastPolls = config.PollConfig{
	Admin: 10 * time.Millisecond,
	HR:    10 * time.Millisecond,
	SOC:   10 * time.Millisecond,
	User:  10 * time.Millisecond,
	Files: 10 * time.Millisecond,
}

func newDashboard(remote *fakeRemote) (*Dashboard, *store.Store, *poller.Poller, *countingRefresher) {
	st := store.New(10*time.Second, zerolog.Nop())
	p := poller.New(zerolog.Nop())
	files := &countingRefresher{}
	return New(remote, st, files, p, fastPolls, zerolog.Nop()), st, p, files
}

func TestAdminCycleFillsStore(t *testing.T) {
	remote := newFakeRemote(scored("alice", 72), scored("bob", 25))
	remote.pending = []models.PendingRegistration{{Username: "carol"}}
	d, st, _, _ := newDashboard(remote)

	require.NoError(t, d.adminCycle(context.Background()))

	assert.Len(t, st.Principals(), 2)
	assert.Len(t, st.Pending(), 1)
	assert.Equal(t, 1, st.AuditChain().Length)
	assert.Len(t, st.FileEvents(), 1)
	_, ok := st.RealtimeStats()
	assert.True(t, ok)
}

func TestAuxiliaryFailureDoesNotFailCycle(t *testing.T) {
	remote := newFakeRemote(scored("alice", 72))
	remote.auditErr = &client.Error{Kind: client.KindServer, Status: 500, Op: "fetch_audit_chain"}
	d, st, _, _ := newDashboard(remote)

	require.NoError(t, d.adminCycle(context.Background()))
	loaded, _ := st.Loaded()
	assert.True(t, loaded)
}

func TestRequiredFailureRecorded(t *testing.T) {
	remote := newFakeRemote()
	remote.principalsErr = &client.Error{Kind: client.KindNetwork, Op: "fetch_principals"}
	d, st, _, _ := newDashboard(remote)

	err := d.rosterCycle(context.Background())
	require.Error(t, err)
	loaded, lastErr := st.Loaded()
	assert.False(t, loaded)
	assert.Equal(t, client.KindNetwork, client.KindOf(lastErr))
}

func TestSelfCycleIsScoped(t *testing.T) {
	remote := newFakeRemote(scored("alice", 72), scored("bob", 25))
	d, st, _, _ := newDashboard(remote)
	require.NoError(t, d.rosterCycle(context.Background()))

	remote.mu.Lock()
	remote.principals = []models.Principal{scored("bob", 40)}
	remote.mu.Unlock()
	require.NoError(t, d.selfCycle("bob")(context.Background()))

	alice, ok := st.Principal("alice")
	require.True(t, ok, "principals outside the scope survive")
	assert.Equal(t, 72, alice.Score())
	bob, _ := st.Principal("bob")
	assert.Equal(t, 40, bob.Score())
	assert.Len(t, st.Sessions("bob"), 1)
}

func TestSOCCycleLoadsNetwork(t *testing.T) {
	remote := newFakeRemote(scored("bob", 25))
	d, st, _, _ := newDashboard(remote)
	require.NoError(t, d.socCycle(context.Background()))
	assert.Len(t, st.NetworkActivity(""), 1)
}

func TestMountUnknownRole(t *testing.T) {
	d, _, _, _ := newDashboard(newFakeRemote())
	err := d.Mount(models.AuthState{Username: "x", Role: "guest", Authenticated: true})
	assert.True(t, errors.Is(err, ErrUnknownRole))
	_, ok := d.Mounted()
	assert.False(t, ok)
}

func TestMountPollsAndUnmountStops(t *testing.T) {
	remote := newFakeRemote(scored("alice", 72))
	d, st, p, files := newDashboard(remote)
	defer p.Shutdown()

	require.NoError(t, d.Mount(models.AuthState{Username: "root", Role: models.RoleAdmin, Authenticated: true}))
	assert.Equal(t, 2, p.Active())

	require.Eventually(t, func() bool {
		loaded, _ := st.Loaded()
		return loaded && files.n.Load() > 0
	}, 2*time.Second, 5*time.Millisecond)

	handles := d.Handles()
	d.Unmount()
	for _, h := range handles {
		select {
		case <-h.Done():
		case <-time.After(2 * time.Second):
			t.Fatalf("subscription %s still running", h.Name())
		}
	}
	assert.Zero(t, p.Active())

	calls := remote.Calls("principals")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, remote.Calls("principals"))
}

func TestRemountReplacesSubscriptions(t *testing.T) {
	remote := newFakeRemote(scored("bob", 25))
	d, _, p, _ := newDashboard(remote)
	defer p.Shutdown()

	require.NoError(t, d.Mount(models.AuthState{Username: "root", Role: models.RoleAdmin, Authenticated: true}))
	first := d.Handles()
	require.NoError(t, d.Mount(models.AuthState{Username: "bob", Role: models.RoleEmployee, Authenticated: true}))

	for _, h := range first {
		<-h.Done()
	}
	state, ok := d.Mounted()
	require.True(t, ok)
	assert.Equal(t, "bob", state.Username)
	assert.Len(t, d.Handles(), 2)
}

func TestSnapshotOlderThanIntentIsNotAContradiction(t *testing.T) {
	remote := newFakeRemote(scored("bob", 25))
	d, st, _, _ := newDashboard(remote)
	require.NoError(t, d.rosterCycle(context.Background()))

	remote.onPrincipals = func() {
		time.Sleep(time.Millisecond)
		st.RecordIntent("bob", store.IntentRevoke)
	}
	require.NoError(t, d.rosterCycle(context.Background()))
	remote.onPrincipals = nil

	intents := st.LiveIntents()
	require.Len(t, intents, 1)
	assert.Zero(t, intents[0].Contradictions, "the roster was fetched before the revoke")

	require.NoError(t, d.rosterCycle(context.Background()))
	intents = st.LiveIntents()
	require.Len(t, intents, 1)
	assert.Equal(t, 1, intents[0].Contradictions)
}
