// Package session owns the shopper's auth token: it persists the token,
// attaches it to backend requests and tells listeners when the shopper logs
// in or out.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Claims are the fields the storefront reads from a backend-issued JWT. The
// signature is never verified here; the backend does that on every request.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID returns the user id claim, falling back to "sub".
func (c *Claims) SubjectID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}

// TokenSink receives the current bearer token. shopapi.Client implements it.
type TokenSink interface {
	SetAuthToken(token string)
}

// Listener is called after every login/logout transition.
type Listener func(ctx context.Context, loggedIn bool)

// Session is safe for concurrent use.
type Session struct {
	store  storage.Store
	sink   TokenSink
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	token  string
	claims *Claims

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// New restores the token persisted in store, if any, and attaches it to sink.
// An expired persisted token is discarded.
func New(ctx context.Context, store storage.Store, sink TokenSink, logger *slog.Logger) (*Session, error) {
	s := &Session{
		store:     store,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}

	raw, err := store.Get(ctx, storage.KeyAuthToken)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return s, nil
		}
		return nil, fmt.Errorf("load auth token: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	claims := parseClaims(token)
	if token == "" || s.expired(claims) {
		logger.InfoContext(ctx, "discarding expired auth token")
		if err := store.Delete(ctx, storage.KeyAuthToken); err != nil {
			logger.WarnContext(ctx, "failed to delete expired auth token", slog.String("error", err.Error()))
		}
		return s, nil
	}

	s.token, s.claims = token, claims
	sink.SetAuthToken(token)
	return s, nil
}

// Login stores token, attaches it to backend requests and notifies listeners
// when the shopper was previously logged out.
func (s *Session) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return apperrors.InvalidInput("token is required")
	}
	claims := parseClaims(token)
	if s.expired(claims) {
		return apperrors.Unauthorized("token expired")
	}

	if err := s.store.Set(ctx, storage.KeyAuthToken, []byte(token)); err != nil {
		return fmt.Errorf("persist auth token: %w", err)
	}

	s.mu.Lock()
	wasLoggedIn := s.loggedInLocked()
	s.token, s.claims = token, claims
	s.sink.SetAuthToken(token)
	s.mu.Unlock()

	attrs := []any{}
	if claims != nil {
		attrs = append(attrs, slog.String("user_id", claims.SubjectID()))
	}
	s.logger.InfoContext(ctx, "logged in", attrs...)

	if !wasLoggedIn {
		s.notify(ctx, true)
	}
	return nil
}

// Logout forgets the token and notifies listeners when the shopper was
// logged in.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx, storage.KeyAuthToken); err != nil {
		return fmt.Errorf("delete auth token: %w", err)
	}

	s.mu.Lock()
	wasLoggedIn := s.loggedInLocked()
	s.token, s.claims = "", nil
	s.sink.SetAuthToken("")
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "logged out")
	if wasLoggedIn {
		s.notify(ctx, false)
	}
	return nil
}

// LoggedIn reports whether a non-expired token is held. Opaque (non-JWT)
// tokens never expire from the storefront's point of view.
func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedInLocked()
}

// Claims returns the parsed claims of the current token. ok is false when
// logged out or when the token is not a JWT.
func (s *Session) Claims() (claims Claims, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loggedInLocked() || s.claims == nil {
		return Claims{}, false
	}
	return *s.claims, true
}

// UserID returns the subject of the current token, or "".
func (s *Session) UserID() string {
	c, ok := s.Claims()
	if !ok {
		return ""
	}
	return c.SubjectID()
}

// OnChange registers l and returns a function that removes it.
func (s *Session) OnChange(l Listener) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Session) notify(ctx context.Context, loggedIn bool) {
	s.lmu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if l, ok := s.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	s.lmu.Unlock()

	for _, l := range listeners {
		l(ctx, loggedIn)
	}
}

func (s *Session) loggedInLocked() bool {
	return s.token != "" && !s.expired(s.claims)
}

func (s *Session) expired(c *Claims) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return !s.now().Before(c.ExpiresAt.Time)
}

// parseClaims decodes a JWT payload without checking its signature. It
// returns nil for opaque tokens.
func parseClaims(token string) *Claims {
	if strings.Count(token, ".") != 2 {
		return nil
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}
