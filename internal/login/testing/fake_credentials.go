package testing

import (
	"net/http"
	"sync"

	"github.com/elgendy/vsts-agent/internal/login"
)

// FakeCredentials is a credential source with fixed results.
type FakeCredentials struct {
	mu sync.Mutex

	Creds      *login.Credentials
	Err        error
	HTTPClient *http.Client

	LoadCalls int
}

// NewFakeCredentials returns a source that is logged in to url with token.
func NewFakeCredentials(url, token string) *FakeCredentials {
	return &FakeCredentials{
		Creds:      &login.Credentials{URL: url, Auth: "pat", Token: token},
		HTTPClient: http.DefaultClient,
	}
}

// NotLoggedIn returns a source whose Load reports login.ErrNotLoggedIn.
func NotLoggedIn() *FakeCredentials {
	return &FakeCredentials{Err: login.ErrNotLoggedIn, HTTPClient: http.DefaultClient}
}

// Load returns a copy of the configured credentials.
func (f *FakeCredentials) Load() (*login.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoadCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	c := *f.Creds
	return &c, nil
}

// Client returns the configured HTTP client.
func (f *FakeCredentials) Client() *http.Client {
	return f.HTTPClient
}
