package google

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gsheet "google.golang.org/api/sheets/v4"
)

const testClientJSON = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestOAuthConfig(t *testing.T) {
	_, err := OAuthConfig(Config{})
	assert.ErrorIs(t, err, ErrMissingOAuthClient)

	_, err = OAuthConfig(Config{OAuthClientJSON: "invalid-json"})
	assert.Error(t, err)

	oc, err := OAuthConfig(Config{OAuthClientJSON: testClientJSON})
	require.NoError(t, err)
	assert.Equal(t, "test", oc.ClientID)
	assert.Equal(t, []string{gsheet.SpreadsheetsScope}, oc.Scopes)

	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(testClientJSON), 0o600))
	oc, err = OAuthConfig(Config{OAuthClientFile: path})
	require.NoError(t, err)
	assert.Equal(t, "test", oc.ClientID)
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}
	require.NoError(t, SaveToken(path, tok))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "refresh", got.RefreshToken)
}

func TestLoadTokenRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
	_, err := LoadToken(path)
	assert.Error(t, err)

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestNewRequiresOAuthToken(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "id", OAuthClientJSON: testClientJSON}, nil)
	assert.ErrorIs(t, err, ErrMissingOAuthToken)
}

func TestConfigEnabledWithOAuth(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{SpreadsheetID: "id", ServiceAccountJSON: "{}"}.Enabled())
	assert.False(t, Config{SpreadsheetID: "id", OAuthClientJSON: "{}"}.Enabled())
	assert.True(t, Config{SpreadsheetID: "id", OAuthClientJSON: "{}", OAuthTokenFile: "t.json"}.Enabled())
}

// signalWriter reports the first write, which is the consent URL.
type signalWriter struct{ ready chan struct{} }

func (w *signalWriter) Write(p []byte) (int, error) {
	select {
	case <-w.ready:
	default:
		close(w.ready)
	}
	return len(p), nil
}

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return strconv.Itoa(port)
}

func TestAuthorizeCallbackErrors(t *testing.T) {
	oc, err := OAuthConfig(Config{OAuthClientJSON: testClientJSON})
	require.NoError(t, err)

	tests := []struct {
		name    string
		query   string
		wantErr string
	}{
		{name: "state mismatch", query: "state=forged&code=abc", wantErr: "oauth state mismatch"},
		{name: "consent denied", query: "error=access_denied", wantErr: "authorization denied: access_denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := freePort(t)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			out := &signalWriter{ready: make(chan struct{})}
			errCh := make(chan error, 1)
			go func() {
				_, err := Authorize(ctx, oc, port, out)
				errCh <- err
			}()

			<-out.ready
			resp, err := http.Get("http://localhost:" + port + "/callback?" + tt.query)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			err = <-errCh
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAuthorizeHonoursContext(t *testing.T) {
	oc, err := OAuthConfig(Config{OAuthClientJSON: testClientJSON})
	require.NoError(t, err)

	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	out := &signalWriter{ready: make(chan struct{})}
	errCh := make(chan error, 1)
	go func() {
		_, err := Authorize(ctx, oc, port, out)
		errCh <- err
	}()
	<-out.ready
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}
