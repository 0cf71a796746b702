package acc

import (
	"context"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type AuthTokenSource string

const (
	AuthTokenSourceExplicit AuthTokenSource = "explicit"
	AuthTokenSourceEnv      AuthTokenSource = "env:ACC_TOKEN"
	AuthTokenSourceClient   AuthTokenSource = "client-credentials"
)

const defaultTokenURL = "https://developer.api.autodesk.com/authentication/v2/token"

// ResolveTokenSource resolves credentials for the ACC API.
//
// Precedence:
//  1. provided (if non-empty): used as a static bearer token
//  2. ACC_TOKEN env var: static bearer token
//  3. ACC_CLIENT_ID + ACC_CLIENT_SECRET: two-legged client-credentials flow
//
// It never prints the token. A nil source with nil error means no
// credentials were found; callers decide whether that is an error.
func ResolveTokenSource(provided string) (oauth2.TokenSource, AuthTokenSource, error) {
	if tok := strings.TrimSpace(provided); tok != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok}), AuthTokenSourceExplicit, nil
	}

	if env := strings.TrimSpace(os.Getenv("ACC_TOKEN")); env != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: env}), AuthTokenSourceEnv, nil
	}

	id := strings.TrimSpace(os.Getenv("ACC_CLIENT_ID"))
	secret := strings.TrimSpace(os.Getenv("ACC_CLIENT_SECRET"))
	if id != "" && secret != "" {
		cfg := &clientcredentials.Config{
			ClientID:     id,
			ClientSecret: secret,
			TokenURL:     tokenURL(),
			Scopes:       []string{"data:read", "data:write"},
		}
		return cfg.TokenSource(context.Background()), AuthTokenSourceClient, nil
	}

	return nil, "", nil
}

func tokenURL() string {
	if u := strings.TrimSpace(os.Getenv("ACC_TOKEN_URL")); u != "" {
		return u
	}
	return defaultTokenURL
}
