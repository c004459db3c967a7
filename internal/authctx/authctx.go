package authctx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/security"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrUnsupportedRole  = errors.New("role has no dashboard")
)

// StateStore persists the login state between restarts. Load returns the
// zero state when nothing is stored.
type StateStore interface {
	Load(ctx context.Context) (models.AuthState, error)
	Save(ctx context.Context, state models.AuthState) error
	Clear(ctx context.Context) error
}

type Authenticator interface {
	Login(ctx context.Context, username, password string, geo *models.Geo) (models.LoginResult, error)
}

// Context is the explicit replacement for process-wide auth flags. It is
// initialised once at start-up and torn down on logout, which also runs the
// registered teardown hooks (stop pollers, drop cached state).
type Context struct {
	store  StateStore
	remote Authenticator
	logger zerolog.Logger
	now    func() time.Time

	initOnce sync.Once
	initErr  error

	mu         sync.RWMutex
	state      models.AuthState
	login      *models.LoginResult
	claims     *security.SessionClaims
	onLogin    []func(models.AuthState)
	onLogout   []func()
	hookMu     sync.Mutex
}

func New(store StateStore, remote Authenticator, logger zerolog.Logger) *Context {
	return &Context{
		store:  store,
		remote: remote,
		logger: logger.With().Str("component", "authctx").Logger(),
		now:    time.Now,
	}
}

// OnLogin registers a hook run after a login or a restored session.
func (c *Context) OnLogin(fn func(models.AuthState)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onLogin = append(c.onLogin, fn)
}

// OnLogout registers a teardown hook run on logout.
func (c *Context) OnLogout(fn func()) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onLogout = append(c.onLogout, fn)
}

// Init reads the persisted state. Only the first call does any work.
func (c *Context) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.restore(ctx)
	})
	return c.initErr
}

func (c *Context) restore(ctx context.Context) error {
	state, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load auth state: %w", err)
	}
	if !state.Authenticated {
		return nil
	}
	role, ok := models.ParseRole(string(state.Role))
	if !ok || state.Username == "" {
		c.logger.Warn().Str("username", state.Username).Str("role", string(state.Role)).Msg("discarding unusable persisted auth state")
		if err := c.store.Clear(ctx); err != nil {
			return fmt.Errorf("clear auth state: %w", err)
		}
		return nil
	}
	state.Role = role

	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	c.logger.Info().Str("username", state.Username).Str("role", string(role)).Msg("restored session")
	c.runLoginHooks(state)
	return nil
}

// Login authenticates against the service and persists who logged in.
func (c *Context) Login(ctx context.Context, username, password string, geo *models.Geo) (models.LoginResult, error) {
	res, err := c.remote.Login(ctx, username, password, geo)
	if err != nil {
		return models.LoginResult{}, err
	}
	if res.Role == "" {
		return models.LoginResult{}, ErrUnsupportedRole
	}

	state := models.AuthState{
		Username:      res.Username,
		Role:          res.Role,
		Authenticated: true,
		UpdatedAt:     c.now(),
	}
	if err := c.store.Save(ctx, state); err != nil {
		return models.LoginResult{}, fmt.Errorf("save auth state: %w", err)
	}

	var claims *security.SessionClaims
	if parsed, err := security.ParseSessionToken(res.Token); err == nil {
		claims = parsed
	} else {
		c.logger.Debug().Err(err).Msg("login token carries no readable claims")
	}

	c.mu.Lock()
	previous := c.state
	c.state = state
	c.login = &res
	c.claims = claims
	c.mu.Unlock()

	if previous.Authenticated && previous.Username != state.Username {
		c.runLogoutHooks()
	}

	c.logger.Info().
		Str("username", res.Username).
		Str("role", string(res.Role)).
		Str("decision", string(res.Decision)).
		Msg("logged in")
	c.runLoginHooks(state)
	return res, nil
}

// Logout clears the persisted state and runs every teardown hook. Hooks run
// even if clearing the store fails.
func (c *Context) Logout(ctx context.Context) error {
	c.mu.Lock()
	wasAuthenticated := c.state.Authenticated
	username := c.state.Username
	c.state = models.AuthState{}
	c.login = nil
	c.claims = nil
	c.mu.Unlock()

	clearErr := c.store.Clear(ctx)
	c.runLogoutHooks()

	if wasAuthenticated {
		c.logger.Info().Str("username", username).Msg("logged out")
	}
	if clearErr != nil {
		return fmt.Errorf("clear auth state: %w", clearErr)
	}
	return nil
}

func (c *Context) runLoginHooks(state models.AuthState) {
	c.hookMu.Lock()
	hooks := append([]func(models.AuthState){}, c.onLogin...)
	c.hookMu.Unlock()
	for _, fn := range hooks {
		fn(state)
	}
}

func (c *Context) runLogoutHooks() {
	c.hookMu.Lock()
	hooks := append([]func(){}, c.onLogout...)
	c.hookMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (c *Context) State() models.AuthState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Context) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.state.Authenticated {
		return ""
	}
	return c.state.Username
}

func (c *Context) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Authenticated
}

// Require returns the current state or ErrNotAuthenticated.
func (c *Context) Require() (models.AuthState, error) {
	state := c.State()
	if !state.Authenticated {
		return models.AuthState{}, ErrNotAuthenticated
	}
	return state, nil
}

// LastLogin is the login response of this process, absent after a restore.
func (c *Context) LastLogin() (models.LoginResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.login == nil {
		return models.LoginResult{}, false
	}
	return *c.login, true
}

// SessionExpiry is when the service's session token lapses, when known.
func (c *Context) SessionExpiry() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.claims.ExpiresAtTime()
}
