package login

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elgendy/vsts-agent/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newServiceServer serves connectionData for the given token.
func newServiceServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ConnectionDataPath {
			http.NotFound(w, r)
			return
		}
		_, pat, ok := r.BasicAuth()
		if !ok || pat != token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"authenticatedUser":{"providerDisplayName":"Ada Lovelace"},"instanceId":"c0ffee"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerify_Success(t *testing.T) {
	srv := newServiceServer(t, "good")

	id, err := Verify(context.Background(), srv.Client(), srv.URL+"/", "good")
	require.NoError(t, err)
	assert.Equal(t, &Identity{DisplayName: "Ada Lovelace", InstanceID: "c0ffee"}, id)
}

func TestVerify_Unauthorized(t *testing.T) {
	srv := newServiceServer(t, "good")

	_, err := Verify(context.Background(), srv.Client(), srv.URL, "bad")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAuth))
	assert.Contains(t, err.Error(), "Access denied")
}

func TestVerify_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := Verify(context.Background(), srv.Client(), srv.URL, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unexpected response")
}

func TestVerify_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>sign in</html>"))
	}))
	defer srv.Close()

	_, err := Verify(context.Background(), srv.Client(), srv.URL, "x")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrAuth))
}

func TestVerify_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Verify(context.Background(), NewHTTPClient(), url, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Couldn't connect")
}

func TestVerify_CancelledContext(t *testing.T) {
	srv := newServiceServer(t, "good")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Verify(ctx, srv.Client(), srv.URL, "good")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
