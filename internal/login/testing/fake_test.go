package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/elgendy/vsts-agent/internal/login"
	"github.com/elgendy/vsts-agent/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeService_Defaults(t *testing.T) {
	f := NewFakeService()

	code, err := f.Login(context.Background(), &settings.CommandSettings{Login: true})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	code, err = f.Logout()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	in, out := f.Calls()
	assert.Equal(t, 1, in)
	assert.Equal(t, 1, out)
}

func TestFakeService_ConfiguredResults(t *testing.T) {
	f := NewFakeService()
	f.LoginCode = 3
	f.LogoutErr = errors.New("boom")

	code, err := f.Login(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	_, err = f.Logout()
	assert.EqualError(t, err, "boom")
}

func TestFakeService_LoginFunc(t *testing.T) {
	f := NewFakeService()
	f.LoginFunc = func(ctx context.Context, s *settings.CommandSettings) (int, error) {
		return 7, nil
	}

	s := &settings.CommandSettings{URL: "https://dev.azure.com/org"}
	code, err := f.Login(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 7, code)
	require.Len(t, f.LoginCalls, 1)
	assert.Same(t, s, f.LoginCalls[0])
}

func TestFakeCredentials(t *testing.T) {
	f := NewFakeCredentials("https://dev.azure.com/org", "pat")

	c, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://dev.azure.com/org", c.URL)
	c.URL = "changed"

	again, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://dev.azure.com/org", again.URL)
	assert.Equal(t, 2, f.LoadCalls)
	assert.NotNil(t, f.Client())
}

func TestNotLoggedIn(t *testing.T) {
	_, err := NotLoggedIn().Load()
	assert.ErrorIs(t, err, login.ErrNotLoggedIn)
}
