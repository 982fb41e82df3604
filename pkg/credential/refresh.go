package credential

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// oauthConfig builds the token endpoint configuration used to refresh a
// tenant's OAuth credential. The provider's refresh flow is a public client
// exchange (no client secret), matching the teacher's own OAuth2 client
// construction pattern of wiring endpoint + client id only.
func (s *Store) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID: s.oauthClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL: s.oauthTokenURL,
		},
	}
}

// refreshOAuth exchanges a refresh token for a new access token. It never
// mutates the passed-in credential; callers install the result themselves
// so a failed refresh cannot corrupt the in-memory copy.
func (s *Store) refreshOAuth(ctx context.Context, cred *Credential) (*OAuthSecret, error) {
	if cred.OAuth == nil || cred.OAuth.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token for tenant %s", ErrUpstreamAuth, cred.Tenant)
	}

	cfg := s.oauthConfig()
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.OAuth.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		// Some providers omit refresh_token in the response when it is
		// unchanged; keep using the previous one in that case.
		refreshToken = cred.OAuth.RefreshToken
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(1 * time.Hour)
	}

	return &OAuthSecret{
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		Scopes:       cred.OAuth.Scopes,
	}, nil
}
