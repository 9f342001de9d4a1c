package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrClientAuth is returned when neither a token file nor a complete set of
// client credentials is configured.
var ErrClientAuth = errors.New("'--client-id' and '--client-secret-file' need to be set")

// Credentials selects how the bearer token is obtained. A token file wins over
// client credentials.
type Credentials struct {
	TokenFile        string
	ClientID         string
	ClientSecretFile string
}

// TokenSource returns the token source described by creds. Client credentials
// are exchanged at the ledger's app registration token endpoint.
func TokenSource(ctx context.Context, cfg Config, creds Credentials) (oauth2.TokenSource, error) {
	if creds.TokenFile != "" {
		token, err := readSecret(creds.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("read auth token: %w", err)
		}
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}), nil
	}

	if creds.ClientID == "" || creds.ClientSecretFile == "" {
		return nil, ErrClientAuth
	}
	secret, err := readSecret(creds.ClientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret: %w", err)
	}

	cc := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: secret,
		TokenURL:     cfg.Endpoint() + TokenPath,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return cc.TokenSource(ctx), nil
}

func readSecret(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	s := strings.Trim(string(b), "\n")
	if s == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return s, nil
}
