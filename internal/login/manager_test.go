package login

import (
	"context"
	"testing"

	"github.com/elgendy/vsts-agent/internal/agent"
	"github.com/elgendy/vsts-agent/internal/errors"
	"github.com/elgendy/vsts-agent/internal/settings"
	termtesting "github.com/elgendy/vsts-agent/internal/terminal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

type scriptedPrompter struct {
	answers map[string]string
	asked   []string
}

func (p *scriptedPrompter) Input(title, _ string, _ bool) (string, error) {
	p.asked = append(p.asked, title)
	return p.answers[title], nil
}

func TestManager_LoginWithFlags(t *testing.T) {
	srv := newServiceServer(t, "good")
	store := newTestStore(t)
	term := termtesting.NewFakeTerminal()
	m := NewManager(term, store, WithHTTPClient(srv.Client()))

	code, err := m.Login(context.Background(), &settings.CommandSettings{
		Login: true, URL: srv.URL + "/", Auth: "pat", Token: "good",
	})

	require.NoError(t, err)
	assert.Equal(t, agent.ReturnCodeSuccess, code)
	assert.Equal(t, []string{"Connected as Ada Lovelace", "Saved credentials for " + srv.URL}, term.Lines)

	c, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, srv.URL, c.URL)
	assert.Equal(t, "good", c.Token)
}

func TestManager_LoginUsesEnvironmentDefaults(t *testing.T) {
	srv := newServiceServer(t, "from-env")
	m := NewManager(termtesting.NewFakeTerminal(), newTestStore(t),
		WithHTTPClient(srv.Client()),
		WithDefaults(srv.URL, "from-env"),
	)

	code, err := m.Login(context.Background(), &settings.CommandSettings{Login: true})

	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestManager_LoginPromptsForMissingValues(t *testing.T) {
	srv := newServiceServer(t, "typed")
	p := &scriptedPrompter{answers: map[string]string{
		"Server URL":            srv.URL,
		"Personal access token": "typed",
	}}
	m := NewManager(termtesting.NewFakeTerminal(), newTestStore(t),
		WithHTTPClient(srv.Client()),
		WithPrompter(p, func() bool { return true }),
	)

	code, err := m.Login(context.Background(), &settings.CommandSettings{Login: true})

	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"Server URL", "Personal access token"}, p.asked)
}

func TestManager_LoginUnattendedNeverPrompts(t *testing.T) {
	p := &scriptedPrompter{}
	m := NewManager(termtesting.NewFakeTerminal(), newTestStore(t),
		WithPrompter(p, func() bool { return true }),
	)

	code, err := m.Login(context.Background(), &settings.CommandSettings{Login: true, Unattended: true})

	require.Error(t, err)
	assert.Equal(t, agent.ReturnCodeTerminatedError, code)
	assert.True(t, errors.IsCode(err, errors.ErrAuth))
	assert.Empty(t, p.asked)
}

func TestManager_LoginRejectsUnsupportedAuth(t *testing.T) {
	m := NewManager(termtesting.NewFakeTerminal(), newTestStore(t))

	_, err := m.Login(context.Background(), &settings.CommandSettings{Login: true, Auth: "negotiate"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "negotiate")
}

func TestManager_LoginRejectsBadURL(t *testing.T) {
	m := NewManager(termtesting.NewFakeTerminal(), newTestStore(t))

	_, err := m.Login(context.Background(), &settings.CommandSettings{Login: true, URL: "dev.azure.com/org", Token: "x"})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestManager_LoginBadTokenNotSaved(t *testing.T) {
	srv := newServiceServer(t, "good")
	store := newTestStore(t)
	m := NewManager(termtesting.NewFakeTerminal(), store, WithHTTPClient(srv.Client()))

	_, err := m.Login(context.Background(), &settings.CommandSettings{Login: true, URL: srv.URL, Token: "bad"})

	require.Error(t, err)
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestManager_Logout(t *testing.T) {
	store := newTestStore(t)
	term := termtesting.NewFakeTerminal()
	m := NewManager(term, store)

	code, err := m.Logout()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	_, err = store.Save(Credentials{URL: "https://dev.azure.com/org", Auth: "pat", Token: "x"})
	require.NoError(t, err)
	code, err = m.Logout()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	assert.Equal(t, []string{"Not logged in", "Removed credentials"}, term.Lines)
}

func TestManager_Load(t *testing.T) {
	keyring.MockInit()
	store := newTestStore(t)
	_, err := store.Save(Credentials{URL: "https://dev.azure.com/stored", Auth: "pat", Token: "stored"})
	require.NoError(t, err)

	c, err := NewManager(termtesting.NewFakeTerminal(), store).Load()
	require.NoError(t, err)
	assert.Equal(t, "stored", c.Token)

	c, err = NewManager(termtesting.NewFakeTerminal(), store, WithDefaults("", "env-token")).Load()
	require.NoError(t, err)
	assert.Equal(t, "https://dev.azure.com/stored", c.URL)
	assert.Equal(t, "env-token", c.Token)

	c, err = NewManager(termtesting.NewFakeTerminal(), newTestStore(t), WithDefaults("https://env/", "env-token")).Load()
	require.NoError(t, err)
	assert.Equal(t, "https://env", c.URL)
}
