package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/metrics"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/store"
)

var (
	ErrInFlight      = errors.New("an action for this principal is already in flight")
	ErrInvalidAction = errors.New("invalid admin action")
)

type Remote interface {
	ApprovePrincipal(ctx context.Context, username, admin string, action models.ApprovalAction) error
	RevokePrincipal(ctx context.Context, username, admin string) error
}

type IntentRecorder interface {
	RecordIntent(username string, kind store.IntentKind) store.Intent
}

// Gateway issues admin mutations. A successful mutation records an
// optimistic intent in the store; a failed one changes nothing locally.
type Gateway struct {
	remote  Remote
	intents IntentRecorder
	logger  zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func New(remote Remote, intents IntentRecorder, logger zerolog.Logger) *Gateway {
	return &Gateway{
		remote:   remote,
		intents:  intents,
		logger:   logger.With().Str("component", "gateway").Logger(),
		inFlight: map[string]struct{}{},
	}
}

func (g *Gateway) Approve(ctx context.Context, username, admin string, action models.ApprovalAction) (store.Intent, error) {
	kind := store.IntentApprove
	switch action {
	case models.ApprovalApprove:
	case models.ApprovalReject:
		kind = store.IntentReject
	default:
		return store.Intent{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	return g.issue(ctx, username, admin, kind, func(ctx context.Context) error {
		return g.remote.ApprovePrincipal(ctx, username, admin, action)
	})
}

func (g *Gateway) Revoke(ctx context.Context, username, admin string) (store.Intent, error) {
	return g.issue(ctx, username, admin, store.IntentRevoke, func(ctx context.Context) error {
		return g.remote.RevokePrincipal(ctx, username, admin)
	})
}

// InFlight reports whether a mutation for username is awaiting a response,
// so callers can disable the triggering control.
func (g *Gateway) InFlight(username string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inFlight[username]
	return ok
}

func (g *Gateway) issue(ctx context.Context, username, admin string, kind store.IntentKind, call func(context.Context) error) (store.Intent, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(admin) == "" {
		return store.Intent{}, fmt.Errorf("%w: username and admin are required", ErrInvalidAction)
	}
	if !g.acquire(username) {
		metrics.AdminActions.WithLabelValues(string(kind), "in_flight").Inc()
		return store.Intent{}, ErrInFlight
	}
	defer g.release(username)

	if err := call(ctx); err != nil {
		metrics.AdminActions.WithLabelValues(string(kind), "error").Inc()
		g.logger.Error().
			Err(err).
			Str("username", username).
			Str("admin", admin).
			Str("action", string(kind)).
			Msg("admin action failed")
		return store.Intent{}, fmt.Errorf("%s %s: %w", kind, username, err)
	}

	intent := g.intents.RecordIntent(username, kind)
	metrics.AdminActions.WithLabelValues(string(kind), "ok").Inc()
	g.logger.Info().
		Str("username", username).
		Str("admin", admin).
		Str("action", string(kind)).
		Str("intent_id", intent.ID).
		Msg("admin action accepted")
	return intent, nil
}

func (g *Gateway) acquire(username string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[username]; busy {
		return false
	}
	g.inFlight[username] = struct{}{}
	return true
}

func (g *Gateway) release(username string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, username)
}
