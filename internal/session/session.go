// Package session gives every browser its own ledger. Sessions are identified
// by a signed cookie and live in an LRU registry that expires idle entries.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"dailysales/internal/cache"
	"dailysales/internal/ledger"
	"dailysales/internal/log"
)

// CookieName holds the signed session token.
const CookieName = "dailysales_session"

// Session is one browser's context.
type Session struct {
	ID        string
	Ledger    *ledger.Ledger
	CreatedAt time.Time
}

// StoreFactory returns the backing store for a new session.
type StoreFactory func(sessionID string) ledger.Store

type Config struct {
	Secret      []byte
	IdleTTL     time.Duration
	MaxAge      time.Duration
	MaxSessions int
	// Secure marks the cookie HTTPS-only.
	Secure bool
}

// Stats are counters exposed on /metrics.
type Stats struct {
	Active  int
	Created int64
	Ended   int64
}

type Manager struct {
	registry   *cache.LRUCache[*Session]
	codec      *TokenCodec
	newStore   StoreFactory
	ledgerOpts []ledger.Option
	cfg        Config
	logger     *log.Logger
	now        func() time.Time

	created atomic.Int64
	ended   atomic.Int64
}

// NewManager builds a manager. ledgerOpts are applied to every new ledger.
func NewManager(cfg Config, newStore StoreFactory, logger *log.Logger, ledgerOpts ...ledger.Option) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if newStore == nil {
		return nil, errors.New("session store factory is required")
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 12 * time.Hour
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	if logger == nil {
		logger = log.NewNop()
	}

	m := &Manager{
		codec:      NewTokenCodec(cfg.Secret, cfg.MaxAge),
		newStore:   newStore,
		ledgerOpts: ledgerOpts,
		cfg:        cfg,
		logger:     logger.WithComponent(log.ComponentSession),
		now:        time.Now,
	}
	m.registry = cache.NewLRUCache[*Session](cfg.MaxSessions, cfg.IdleTTL).OnEvict(m.teardown)
	return m, nil
}

// Registry exposes the session cache so it can be swept on a schedule.
func (m *Manager) Registry() cache.Cleaner {
	return m.registry
}

// Get returns a live session and refreshes its idle timer.
func (m *Manager) Get(id string) (*Session, bool) {
	s, ok := m.registry.Get(id)
	if !ok {
		return nil, false
	}
	m.registry.Touch(id)
	return s, true
}

// Create starts a new, empty session.
func (m *Manager) Create(ctx context.Context) *Session {
	id := uuid.NewString()
	s := &Session{
		ID:        id,
		CreatedAt: m.now(),
		Ledger:    ledger.New(id, m.newStore(id), m.ledgerOpts...),
	}
	m.registry.Set(id, s)
	m.created.Add(1)
	m.logger.InfoContext(ctx, "Session started", log.FieldSessionID, id)
	return s
}

// End tears a session down immediately.
func (m *Manager) End(id string) {
	m.registry.Delete(id)
}

// Resolve finds the request's session or starts one, setting the cookie when needed.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		id, err := m.codec.Decode(c.Value)
		if err == nil {
			if s, ok := m.Get(id); ok {
				return s, nil
			}
			m.logger.DebugContext(r.Context(), "Session cookie refers to an ended session", log.FieldSessionID, id)
		} else {
			m.logger.DebugContext(r.Context(), "Ignoring invalid session cookie", log.FieldError, err)
		}
	}

	s := m.Create(r.Context())
	token, expires, err := m.codec.Encode(s.ID)
	if err != nil {
		m.End(s.ID)
		return nil, fmt.Errorf("issue session cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(m.cfg.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

// Middleware attaches the session to the request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Resolve(w, r)
		if err != nil {
			m.logger.ErrorContext(r.Context(), "Failed to resolve session", log.FieldError, err)
			http.Error(w, "session unavailable", http.StatusInternalServerError)
			return
		}
		logger := log.FromContext(r.Context()).With(log.FieldSessionID, s.ID)
		ctx := log.NewContext(NewContext(r.Context(), s), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Stats returns session counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Active:  m.registry.Size(),
		Created: m.created.Load(),
		Ended:   m.ended.Load(),
	}
}

// Close ends every session.
func (m *Manager) Close() {
	n := m.registry.Purge()
	m.logger.Info("All sessions ended", "sessions", n, log.FieldOperation, log.OpShutdown)
}

func (m *Manager) teardown(id string, s *Session) {
	m.ended.Add(1)
	if err := s.Ledger.Close(); err != nil {
		m.logger.Error("Failed to close session ledger", log.FieldSessionID, id, log.FieldError, err)
		return
	}
	m.logger.Info("Session ended", log.FieldSessionID, id)
}
