package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailysales/internal/ledger"
	"dailysales/internal/ledger/memory"
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.Secret == nil {
		cfg.Secret = []byte("test-secret")
	}
	m, err := NewManager(cfg, func(string) ledger.Store { return memory.New() }, nil)
	require.NoError(t, err)
	return m
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", CookieName)
	return nil
}

func TestResolveCreatesSessionAndCookie(t *testing.T) {
	m := newTestManager(t, Config{})
	rec := httptest.NewRecorder()

	s, err := m.Resolve(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotNil(t, s.Ledger)

	c := sessionCookie(t, rec)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)

	n, err := s.Ledger.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "new sessions start with an empty ledger")
	assert.Equal(t, 1, m.Stats().Active)
}

func TestResolveReusesSessionFromCookie(t *testing.T) {
	m := newTestManager(t, Config{})
	first := httptest.NewRecorder()
	s1, err := m.Resolve(first, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sessionCookie(t, first))
	second := httptest.NewRecorder()
	s2, err := m.Resolve(second, req)
	require.NoError(t, err)

	assert.Equal(t, s1.ID, s2.ID)
	assert.Empty(t, second.Result().Cookies(), "no new cookie for an existing session")
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{})
	a, _ := m.Resolve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	b, _ := m.Resolve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEqual(t, a.ID, b.ID)

	_, err := a.Ledger.AddSale(ctx, "Milk", 2, decimal.NewFromInt(50))
	require.NoError(t, err)

	nb, _ := b.Ledger.Len(ctx)
	assert.Zero(t, nb)
}

func TestTamperedCookieStartsNewSession(t *testing.T) {
	m := newTestManager(t, Config{})
	first := httptest.NewRecorder()
	s1, _ := m.Resolve(first, httptest.NewRequest(http.MethodGet, "/", nil))

	c := sessionCookie(t, first)
	c.Value += "x"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	second := httptest.NewRecorder()
	s2, err := m.Resolve(second, req)
	require.NoError(t, err)

	assert.NotEqual(t, s1.ID, s2.ID)
	sessionCookie(t, second)
}

func TestEndedSessionStartsFresh(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{})
	first := httptest.NewRecorder()
	s1, _ := m.Resolve(first, httptest.NewRequest(http.MethodGet, "/", nil))
	_, _ = s1.Ledger.AddSale(ctx, "Milk", 1, decimal.NewFromInt(50))

	m.End(s1.ID)
	_, err := s1.Ledger.Len(ctx)
	assert.ErrorIs(t, err, ledger.ErrClosed)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sessionCookie(t, first))
	s2, err := m.Resolve(httptest.NewRecorder(), req)
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID, s2.ID)
	n, _ := s2.Ledger.Len(ctx)
	assert.Zero(t, n)
	assert.Equal(t, int64(1), m.Stats().Ended)
}

func TestCapacityEvictsLeastRecentSession(t *testing.T) {
	m := newTestManager(t, Config{MaxSessions: 2})
	a := m.Create(context.Background())
	m.Create(context.Background())
	m.Create(context.Background())

	_, ok := m.Get(a.ID)
	assert.False(t, ok)
	assert.Equal(t, 2, m.Stats().Active)
	assert.Equal(t, int64(3), m.Stats().Created)
}

func TestMiddlewareAttachesSession(t *testing.T) {
	m := newTestManager(t, Config{})
	var got *Session
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := FromContext(r.Context())
		require.True(t, ok)
		got = s
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, got)
	sessionCookie(t, rec)

	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}

func TestCloseEndsAllSessions(t *testing.T) {
	m := newTestManager(t, Config{})
	s := m.Create(context.Background())
	m.Close()

	assert.Equal(t, 0, m.Stats().Active)
	_, err := s.Ledger.Records(context.Background())
	assert.ErrorIs(t, err, ledger.ErrClosed)
}

func TestNewManagerValidates(t *testing.T) {
	_, err := NewManager(Config{}, func(string) ledger.Store { return memory.New() }, nil)
	assert.Error(t, err)
	_, err = NewManager(Config{Secret: []byte("s")}, nil, nil)
	assert.Error(t, err)
}

func TestTokenCodec(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	codec := NewTokenCodec([]byte("secret"), time.Hour)
	codec.now = func() time.Time { return now }

	token, expires, err := codec.Encode("sid-1")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expires)

	id, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", id)

	other := NewTokenCodec([]byte("other"), time.Hour)
	other.now = codec.now
	_, err = other.Decode(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	codec.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired tokens are rejected")

	_, err = codec.Decode("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
