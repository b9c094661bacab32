// Package auth provides the account credentials used to listen to
// authenticated topics and to call the REST API.
package auth

import (
	"fmt"
	"os"
	"strings"
)

// Credentials identify the logged-in account.
type Credentials struct {
	UserID    string // numeric id of the account
	Login     string // login name, informational
	ClientID  string // application client id for REST calls
	AuthToken string // OAuth access token without the "oauth:" prefix
}

// Valid reports whether the credentials can be used for authenticated topics.
func (c Credentials) Valid() bool {
	return c.UserID != "" && c.AuthToken != ""
}

// Provider supplies the current credentials. Implementations must be safe
// for concurrent use.
type Provider interface {
	Credentials() Credentials
}

// Static is a Provider that always returns the same credentials.
type Static Credentials

// Credentials implements Provider.
func (s Static) Credentials() Credentials {
	return Credentials(s)
}

// LoadCredentials builds credentials from a user id and either an inline
// token or a token file. The inline token wins when both are set.
func LoadCredentials(userID, login, clientID, token, tokenPath string) (*Credentials, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	if token == "" {
		if tokenPath == "" {
			return nil, fmt.Errorf("auth token or token path is required")
		}
		var err error
		token, err = LoadToken(tokenPath)
		if err != nil {
			return nil, fmt.Errorf("load token: %w", err)
		}
	}

	token = NormalizeToken(token)
	if token == "" {
		return nil, fmt.Errorf("auth token is empty")
	}

	return &Credentials{
		UserID:    userID,
		Login:     login,
		ClientID:  clientID,
		AuthToken: token,
	}, nil
}

// LoadToken reads a token from the first non-empty line of a file.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return NormalizeToken(line), nil
		}
	}
	return "", fmt.Errorf("token file %s is empty", path)
}

// NormalizeToken trims whitespace and the IRC-style "oauth:" prefix.
func NormalizeToken(token string) string {
	token = strings.TrimSpace(token)
	return strings.TrimPrefix(token, "oauth:")
}

// Headers returns the REST authentication headers.
func (c Credentials) Headers() map[string]string {
	headers := make(map[string]string, 2)
	if c.AuthToken != "" {
		headers["Authorization"] = "Bearer " + c.AuthToken
	}
	if c.ClientID != "" {
		headers["Client-Id"] = c.ClientID
	}
	return headers
}
