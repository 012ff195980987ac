// ABOUTME: Session manager owning the access/refresh token pair and its expiry
// ABOUTME: Hands out tokens valid for the next call and refreshes them single-flight

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/venkateshthallam/habithive/internal/apperr"
)

// DefaultRefreshMargin is how long a token must remain valid for
// EnsureValid to return it without refreshing.
const DefaultRefreshMargin = 60 * time.Second

const refreshKey = "refresh"

// Tokens is an authentication result from login or refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	// ExpiresIn is the server-supplied TTL. Zero means derive expiry from the
	// access token's exp claim.
	ExpiresIn time.Duration
}

// Session is the installed token pair.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	UserID       string    `json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"` // zero when unknown
}

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (Tokens, error)
}

// Manager owns the session. It is safe for concurrent use.
type Manager struct {
	refresher Refresher
	store     TokenStore
	logger    *slog.Logger
	margin    time.Duration
	now       func() time.Time

	mu      sync.Mutex
	current *Session
	gen     uint64 // bumped whenever the session is installed or cleared
	hooks   []func()

	group singleflight.Group
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Nil means slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRefreshMargin overrides DefaultRefreshMargin.
func WithRefreshMargin(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.margin = d
		}
	}
}

// WithTokenStore persists installed sessions to store.
func WithTokenStore(store TokenStore) Option {
	return func(m *Manager) { m.store = store }
}

// NewManager creates a Manager that refreshes through refresher.
func NewManager(refresher Refresher, opts ...Option) *Manager {
	m := &Manager{
		refresher: refresher,
		logger:    slog.Default(),
		margin:    DefaultRefreshMargin,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session")
	return m
}

// OnLogout registers fn to run after the session is cleared, whether by
// Logout or by an unrecoverable refresh failure.
func (m *Manager) OnLogout(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Current returns a copy of the installed session.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// Authenticated reports whether a session is installed.
func (m *Manager) Authenticated() bool {
	_, ok := m.Current()
	return ok
}

// UserID returns the signed-in user's ID, or "" when logged out.
func (m *Manager) UserID() string {
	s, _ := m.Current()
	return s.UserID
}

// ApplyAuthResult installs a new token pair from a login or refresh. An
// empty refresh token keeps the previously installed one.
func (m *Manager) ApplyAuthResult(tokens Tokens) error {
	if tokens.AccessToken == "" {
		return apperr.Validationf("access_token", "must not be empty")
	}

	m.mu.Lock()
	sess := m.buildSession(tokens)
	m.installLocked(sess)
	m.mu.Unlock()

	m.persist(sess)
	m.logger.Debug("session installed", "user_id", sess.UserID, "expires_at", sess.ExpiresAt)
	return nil
}

// Restore installs a session saved by a previous process. It returns
// ErrNoSession when nothing was stored.
func (m *Manager) Restore() error {
	if m.store == nil {
		return ErrNoSession
	}
	sess, err := m.store.Load()
	if err != nil {
		return err
	}
	if sess.AccessToken == "" {
		return ErrNoSession
	}

	m.mu.Lock()
	m.installLocked(sess)
	m.mu.Unlock()

	m.logger.Debug("session restored", "user_id", sess.UserID)
	return nil
}

// Logout clears the session and any persisted tokens.
func (m *Manager) Logout() {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	m.expire(gen, "logout")
}

// EnsureValid returns an access token valid for at least the refresh
// margin, refreshing first when the cached one expires sooner.
func (m *Manager) EnsureValid(ctx context.Context) (string, error) {
	m.mu.Lock()
	sess := m.current
	m.mu.Unlock()

	if sess == nil {
		return "", apperr.ErrUnauthorized
	}
	if !m.expiringSoon(*sess) {
		return sess.AccessToken, nil
	}
	return m.refresh(ctx, sess.AccessToken)
}

// Do runs an authenticated call. If fn reports ErrUnauthorized the session
// is refreshed once and fn is retried exactly once.
func (m *Manager) Do(ctx context.Context, fn func(ctx context.Context, token string) error) error {
	token, err := m.EnsureValid(ctx)
	if err != nil {
		return err
	}

	err = fn(ctx, token)
	if !errors.Is(err, apperr.ErrUnauthorized) {
		return err
	}

	m.logger.Info("request rejected with 401, refreshing session")
	fresh, err := m.refresh(ctx, token)
	if err != nil {
		return err
	}

	err = fn(ctx, fresh)
	if errors.Is(err, apperr.ErrUnauthorized) {
		m.expireIfToken(fresh, "retry rejected after refresh")
	}
	return err
}

// refresh replaces the token stale with a fresh one. Concurrent callers
// share a single in-flight refresh; a caller whose ctx ends stops waiting
// without cancelling the shared call.
func (m *Manager) refresh(ctx context.Context, stale string) (string, error) {
	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(refreshKey, func() (any, error) {
		return m.doRefresh(shared, stale)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		token, _ := res.Val.(string)
		return token, nil
	case <-ctx.Done():
		return "", &apperr.NetworkError{Op: "refresh session", Err: ctx.Err()}
	}
}

func (m *Manager) doRefresh(ctx context.Context, stale string) (string, error) {
	m.mu.Lock()
	sess := m.current
	gen := m.gen
	m.mu.Unlock()

	if sess == nil {
		return "", apperr.ErrUnauthorized
	}
	if sess.AccessToken != stale {
		// Someone else already replaced the token we were asked to refresh.
		return sess.AccessToken, nil
	}
	if sess.RefreshToken == "" {
		m.expire(gen, "no refresh token")
		return "", fmt.Errorf("session expired: %w", apperr.ErrUnauthorized)
	}

	m.logger.Debug("refreshing session", "user_id", sess.UserID)
	tokens, err := m.refresher.RefreshToken(ctx, sess.RefreshToken)
	if err != nil {
		if refreshRejected(err) {
			m.logger.Warn("refresh token rejected, logging out", "error", err)
			m.expire(gen, "refresh rejected")
			return "", fmt.Errorf("refresh rejected: %w", apperr.ErrUnauthorized)
		}
		m.logger.Warn("session refresh failed", "error", err, "retryable", apperr.IsRetryable(err))
		return "", err
	}
	if tokens.AccessToken == "" {
		return "", &apperr.DecodingError{Op: "refresh", Err: errors.New("empty access token")}
	}

	m.mu.Lock()
	if m.gen != gen {
		// Logged out or re-authenticated while the refresh was in flight.
		current := m.current
		m.mu.Unlock()
		if current == nil {
			return "", apperr.ErrUnauthorized
		}
		return current.AccessToken, nil
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = sess.RefreshToken
	}
	if tokens.UserID == "" {
		tokens.UserID = sess.UserID
	}
	fresh := m.buildSession(tokens)
	m.installLocked(fresh)
	m.mu.Unlock()

	m.persist(fresh)
	m.logger.Info("session refreshed", "user_id", fresh.UserID, "expires_at", fresh.ExpiresAt)
	return fresh.AccessToken, nil
}

// refreshRejected reports whether a refresh failure means the refresh token
// itself is invalid, as opposed to a transient failure.
func refreshRejected(err error) bool {
	if errors.Is(err, apperr.ErrUnauthorized) {
		return true
	}
	var srvErr *apperr.ServerError
	if errors.As(err, &srvErr) {
		switch srvErr.Status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return true
		}
	}
	return false
}

func (m *Manager) expiringSoon(sess Session) bool {
	if sess.ExpiresAt.IsZero() {
		return false
	}
	return !m.now().Add(m.margin).Before(sess.ExpiresAt)
}

// buildSession must be called with mu held.
func (m *Manager) buildSession(tokens Tokens) Session {
	sess := Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		UserID:       tokens.UserID,
	}
	if sess.RefreshToken == "" && m.current != nil {
		sess.RefreshToken = m.current.RefreshToken
	}

	if tokens.ExpiresIn > 0 {
		sess.ExpiresAt = m.now().Add(tokens.ExpiresIn)
	} else if exp, err := ExpiryFromJWT(tokens.AccessToken); err == nil {
		sess.ExpiresAt = exp
	}

	if sess.UserID == "" {
		if sub, err := SubjectFromJWT(tokens.AccessToken); err == nil {
			sess.UserID = sub
		}
	}
	return sess
}

func (m *Manager) installLocked(sess Session) {
	m.current = &sess
	m.gen++
}

func (m *Manager) persist(sess Session) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(sess); err != nil {
		m.logger.Warn("failed to persist session", "error", err)
	}
}

func (m *Manager) expireIfToken(token, reason string) {
	m.mu.Lock()
	if m.current == nil || m.current.AccessToken != token {
		m.mu.Unlock()
		return
	}
	gen := m.gen
	m.mu.Unlock()
	m.expire(gen, reason)
}

// expire clears the session if it is still generation gen.
func (m *Manager) expire(gen uint64, reason string) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	hadSession := m.current != nil
	m.current = nil
	m.gen++
	hooks := make([]func(), len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Clear(); err != nil {
			m.logger.Warn("failed to clear stored session", "error", err)
		}
	}
	if !hadSession {
		return
	}

	m.logger.Info("session cleared", "reason", reason)
	for _, fn := range hooks {
		fn()
	}
}
