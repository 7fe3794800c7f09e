package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fanzlab/authcore/internal/domain"
)

// State names the session manager's lifecycle phase.
type State string

const (
	StateUninitialized   State = "uninitialized"
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// Session is the in-memory view of an authenticated session. AccessToken
// and User are always set together; no partial session is ever observable.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *domain.User
	ExpiresAt    time.Time
}

// IdentityClient is the slice of the SSO client the manager depends on.
type IdentityClient interface {
	GetAuthorizationURL(ctx context.Context) (string, error)
	Login(ctx context.Context, email, password string) (*domain.AuthResponse, error)
	ValidateToken(ctx context.Context, token string) domain.ValidationResult
	RefreshToken(ctx context.Context, refreshToken string) (*domain.RefreshResponse, error)
	Logout(ctx context.Context, token string)
	HandleCallback(ctx context.Context, code, state string) (*domain.AuthResponse, error)
}

// Manager owns client-side session state: it restores a persisted session
// at boot, refreshes it on a fixed cadence shorter than the token TTL, and
// tears it down on logout or unrecoverable refresh failure.
type Manager struct {
	client          IdentityClient
	store           TokenStore
	logger          *zap.Logger
	refreshInterval time.Duration

	mu      sync.RWMutex
	state   State
	session *Session

	// refreshGroup serializes refresh attempts: a manual RefreshAuth and
	// the background timer share one network call instead of burning the
	// single-use refresh token twice.
	refreshGroup singleflight.Group

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewManager constructs a session manager. Call Initialize before use and
// Start to enable background refresh.
func NewManager(client IdentityClient, store TokenStore, refreshInterval time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		client:          client,
		store:           store,
		logger:          logger,
		refreshInterval: refreshInterval,
		state:           StateUninitialized,
		stopCh:          make(chan struct{}),
	}
}

// Initialize restores a persisted session: validate the stored token, fall
// back to one refresh attempt, and clear everything on failure. Transport
// failures reaching the identity service leave persisted state intact —
// an outage must not destroy a valid session.
func (m *Manager) Initialize(ctx context.Context) error {
	m.setState(StateLoading)

	creds, err := m.store.Load()
	if err != nil {
		m.logger.Warn("failed to load persisted session", zap.Error(err))
		m.setState(StateUnauthenticated)
		return nil
	}
	if creds == nil {
		m.setState(StateUnauthenticated)
		return nil
	}

	result := m.client.ValidateToken(ctx, creds.AccessToken)
	switch result.Status {
	case domain.ValidationValid:
		m.setSession(&Session{
			AccessToken:  creds.AccessToken,
			RefreshToken: creds.RefreshToken,
			User:         result.User,
			ExpiresAt:    result.ExpiresAt,
		})
		return nil
	case domain.ValidationUnknown:
		m.logger.Warn("identity service unreachable at boot; keeping persisted session", zap.Error(result.Err))
		m.setState(StateUnauthenticated)
		return nil
	}

	// Stored token is stale. One refresh attempt, then give up.
	m.mu.Lock()
	m.session = &Session{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		User:         creds.User,
	}
	m.mu.Unlock()

	if _, err := m.RefreshAuth(ctx); err != nil {
		m.logger.Info("persisted session could not be refreshed", zap.Error(err))
		m.clearSession(ctx, false)
	}
	return nil
}

// Start launches the background refresh loop.
func (m *Manager) Start() {
	go m.run()
}

// Stop halts the background refresh loop. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Manager) run() {
	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if m.State() != StateAuthenticated {
				continue
			}
			if _, err := m.RefreshAuth(context.Background()); err != nil {
				m.logger.Warn("background refresh failed", zap.Error(err))
			}
		case <-m.stopCh:
			return
		}
	}
}

// Login authenticates with credentials. The auth response is persisted
// atomically; on any failure prior state is left untouched.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	auth, err := m.client.Login(ctx, email, password)
	if err != nil {
		return err
	}

	if err := m.adoptAuth(auth); err != nil {
		return err
	}
	m.logger.Info("session established", zap.String("user_id", auth.User.ID))
	return nil
}

// LoginWithSSO returns the federated authorization URL. The caller is
// expected to perform a full navigation redirect; no session state changes
// until the OAuth callback lands.
func (m *Manager) LoginWithSSO(ctx context.Context) (string, error) {
	return m.client.GetAuthorizationURL(ctx)
}

// HandleCallback completes the OAuth flow: exchanges the code, validates
// the resulting token and persists the session.
func (m *Manager) HandleCallback(ctx context.Context, code, state string) error {
	auth, err := m.client.HandleCallback(ctx, code, state)
	if err != nil {
		return err
	}
	return m.adoptAuth(auth)
}

// adoptAuth persists and installs a fresh auth response. Persist first:
// a storage failure must not leave memory and disk disagreeing.
func (m *Manager) adoptAuth(auth *domain.AuthResponse) error {
	if auth.Token == "" || auth.User == nil {
		return fmt.Errorf("identity service returned incomplete auth response")
	}

	creds := &Credentials{
		AccessToken:  auth.Token,
		RefreshToken: auth.RefreshToken,
		User:         auth.User,
	}
	if err := m.store.Save(creds); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	m.setSession(&Session{
		AccessToken:  auth.Token,
		RefreshToken: auth.RefreshToken,
		User:         auth.User,
		ExpiresAt:    expiryFrom(auth.ExpiresIn),
	})
	return nil
}

// RefreshAuth exchanges the refresh token for a new access token.
// Concurrent callers are coalesced into a single network call and observe
// the same resulting token. Rejection clears the session.
func (m *Manager) RefreshAuth(ctx context.Context) (string, error) {
	token, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return m.doRefresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (m *Manager) doRefresh(ctx context.Context) (string, error) {
	m.mu.RLock()
	sess := m.session
	m.mu.RUnlock()

	if sess == nil || sess.RefreshToken == "" {
		return "", fmt.Errorf("no refresh token available")
	}

	refreshed, err := m.client.RefreshToken(ctx, sess.RefreshToken)
	if err != nil {
		m.clearSession(ctx, false)
		return "", err
	}

	refreshToken := sess.RefreshToken
	if refreshed.RefreshToken != "" {
		refreshToken = refreshed.RefreshToken
	}

	next := &Session{
		AccessToken:  refreshed.Token,
		RefreshToken: refreshToken,
		User:         sess.User,
		ExpiresAt:    expiryFrom(refreshed.ExpiresIn),
	}
	if err := m.store.Save(&Credentials{
		AccessToken:  next.AccessToken,
		RefreshToken: next.RefreshToken,
		User:         next.User,
	}); err != nil {
		m.logger.Warn("failed to persist refreshed session", zap.Error(err))
	}

	m.setSession(next)
	return next.AccessToken, nil
}

// Logout invalidates the session remotely on a best-effort basis and then
// unconditionally clears local state. Calling it twice is harmless.
func (m *Manager) Logout(ctx context.Context) {
	m.clearSession(ctx, true)
}

func (m *Manager) clearSession(ctx context.Context, remote bool) {
	m.mu.Lock()
	sess := m.session
	m.session = nil
	m.state = StateUnauthenticated
	m.mu.Unlock()

	if remote && sess != nil && sess.AccessToken != "" {
		m.client.Logout(ctx, sess.AccessToken)
	}
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear persisted session", zap.Error(err))
	}
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Session returns a copy of the current session, if authenticated.
func (m *Manager) Session() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated || m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// CurrentUser returns the authenticated user, if any.
func (m *Manager) CurrentUser() (*domain.User, bool) {
	sess, ok := m.Session()
	if !ok {
		return nil, false
	}
	return sess.User, true
}

func (m *Manager) setSession(sess *Session) {
	m.mu.Lock()
	m.session = sess
	m.state = StateAuthenticated
	m.mu.Unlock()
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

func expiryFrom(expiresIn int) time.Time {
	if expiresIn <= 0 {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}
