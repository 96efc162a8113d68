package login

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elgendy/vsts-agent/internal/errors"
)

// ConnectionDataPath is the endpoint used to verify a token.
const ConnectionDataPath = "/_apis/connectionData"

// DefaultHTTPTimeout bounds a single request to the service.
const DefaultHTTPTimeout = 30 * time.Second

// Identity is the account a token authenticates as.
type Identity struct {
	DisplayName string
	InstanceID  string
}

type connectionData struct {
	AuthenticatedUser struct {
		ProviderDisplayName string `json:"providerDisplayName"`
	} `json:"authenticatedUser"`
	InstanceID string `json:"instanceId"`
}

// NewHTTPClient returns the client used for service calls. It honors
// HTTP_PROXY, HTTPS_PROXY, and NO_PROXY.
func NewHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyFromEnvironment
	return &http.Client{Transport: transport, Timeout: DefaultHTTPTimeout}
}

// NewRequest builds an authenticated request for a service API path.
func NewRequest(ctx context.Context, baseURL, path, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+path, nil)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			"Couldn't build a request for "+baseURL,
			"Check the service URL")
	}
	req.SetBasicAuth("", token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Verify checks that token is accepted by the service at baseURL.
func Verify(ctx context.Context, client *http.Client, baseURL, token string) (*Identity, error) {
	req, err := NewRequest(ctx, baseURL, ConnectionDataPath, token)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			"Couldn't connect to "+baseURL,
			"Check the URL and your network or proxy settings")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.New(errors.ErrAuth,
			fmt.Sprintf("Access denied by %s (%d)", baseURL, resp.StatusCode),
			"Check that the PAT is valid and has not expired")
	case resp.StatusCode >= 300:
		return nil, errors.New(errors.ErrAuth,
			fmt.Sprintf("Unexpected response from %s: %s", baseURL, resp.Status),
			"Check that the URL points at an Azure DevOps organization or TFS collection")
	}

	var data connectionData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			"Couldn't read the connection data from "+baseURL,
			"Check that the URL points at an Azure DevOps organization or TFS collection")
	}
	return &Identity{
		DisplayName: data.AuthenticatedUser.ProviderDisplayName,
		InstanceID:  data.InstanceID,
	}, nil
}
