// Package credential implements the tenant Credential Store: it answers
// "for this tenant, give me a currently valid upstream credential and the
// client-auth secret to compare against," refreshing OAuth tokens
// transparently and persisting refreshed tokens back to disk.
package credential

import "time"

// Type distinguishes the two upstream credential shapes a tenant file can
// declare.
type Type string

const (
	TypeAPIKey Type = "api_key"
	TypeOAuth  Type = "oauth"
)

// OAuthSecret holds the live OAuth token state for a tenant.
type OAuthSecret struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
}

// Credential is one tenant's resolved upstream credential plus the
// client-facing key callers must present to use it.
type Credential struct {
	Tenant        string
	Type          Type
	AccountID     string
	ClientAuthKey string

	// APIKey is set when Type == TypeAPIKey.
	APIKey string
	// OAuth is set when Type == TypeOAuth.
	OAuth *OAuthSecret
}

// Valid reports whether the credential can be used right now without a
// refresh, given refreshLead: an OAuth credential is valid only while
// now < ExpiresAt - refreshLead.
func (c *Credential) Valid(now time.Time, refreshLead time.Duration) bool {
	if c.Type != TypeOAuth {
		return c.APIKey != ""
	}
	if c.OAuth == nil {
		return false
	}
	return now.Before(c.OAuth.ExpiresAt.Add(-refreshLead))
}

// Expired reports whether the credential is already past its hard expiry,
// past which a failed refresh can no longer fall back to the old token.
func (c *Credential) Expired(now time.Time) bool {
	if c.Type != TypeOAuth || c.OAuth == nil {
		return false
	}
	return !now.Before(c.OAuth.ExpiresAt)
}

// fileRecord is the on-disk JSON shape of one tenant's credential file.
type fileRecord struct {
	Tenant        string   `json:"tenant"`
	Type          Type     `json:"type"`
	AccountID     string   `json:"account_id"`
	ClientAuthKey string   `json:"client_auth_key"`
	APIKey        string   `json:"api_key,omitempty"`
	AccessToken   string   `json:"access_token,omitempty"`
	RefreshToken  string   `json:"refresh_token,omitempty"`
	ExpiresAt     int64    `json:"expires_at,omitempty"` // unix seconds
	Scopes        []string `json:"scopes,omitempty"`
}

func (r *fileRecord) toCredential() *Credential {
	c := &Credential{
		Tenant:        r.Tenant,
		Type:          r.Type,
		AccountID:     r.AccountID,
		ClientAuthKey: r.ClientAuthKey,
		APIKey:        r.APIKey,
	}
	if r.Type == TypeOAuth {
		c.OAuth = &OAuthSecret{
			AccessToken:  r.AccessToken,
			RefreshToken: r.RefreshToken,
			ExpiresAt:    time.Unix(r.ExpiresAt, 0).UTC(),
			Scopes:       r.Scopes,
		}
	}
	return c
}

func fromCredential(c *Credential) *fileRecord {
	r := &fileRecord{
		Tenant:        c.Tenant,
		Type:          c.Type,
		AccountID:     c.AccountID,
		ClientAuthKey: c.ClientAuthKey,
		APIKey:        c.APIKey,
	}
	if c.Type == TypeOAuth && c.OAuth != nil {
		r.AccessToken = c.OAuth.AccessToken
		r.RefreshToken = c.OAuth.RefreshToken
		r.ExpiresAt = c.OAuth.ExpiresAt.Unix()
		r.Scopes = c.OAuth.Scopes
	}
	return r
}
