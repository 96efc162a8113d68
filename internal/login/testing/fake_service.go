// Package testing provides test doubles for the login package.
package testing

import (
	"context"
	"sync"

	"github.com/elgendy/vsts-agent/internal/settings"
)

// FakeService simulates the login service.
type FakeService struct {
	mu sync.Mutex

	// Configuration
	LoginCode  int
	LoginErr   error
	LogoutCode int
	LogoutErr  error
	LoginFunc  func(ctx context.Context, s *settings.CommandSettings) (int, error)

	// Call tracking
	LoginCalls  []*settings.CommandSettings
	LogoutCalls int
}

// NewFakeService creates a fake that succeeds with exit code 0.
func NewFakeService() *FakeService {
	return &FakeService{}
}

// Login records the call and returns the configured result.
func (f *FakeService) Login(ctx context.Context, s *settings.CommandSettings) (int, error) {
	f.mu.Lock()
	f.LoginCalls = append(f.LoginCalls, s)
	fn := f.LoginFunc
	code, err := f.LoginCode, f.LoginErr
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, s)
	}
	return code, err
}

// Logout records the call and returns the configured result.
func (f *FakeService) Logout() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogoutCalls++
	return f.LogoutCode, f.LogoutErr
}

// Calls returns the number of Login and Logout calls.
func (f *FakeService) Calls() (login, logout int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.LoginCalls), f.LogoutCalls
}
