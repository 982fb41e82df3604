package proxy

import (
	"errors"
	"net/http"

	"github.com/tarsyio/llmproxy/pkg/credential"
)

// Kind is the error taxonomy of §7: a stable, client-facing classification
// independent of Go error types, stored verbatim on the Request row as
// error_kind.
type Kind string

const (
	KindInvalidRequest Kind = "invalid_request_error"
	KindAuthentication Kind = "authentication_error"
	KindPermission     Kind = "permission_error"
	KindNotFound       Kind = "not_found_error"
	KindRateLimit      Kind = "rate_limit_error"
	KindUpstreamError  Kind = "upstream_error"
	KindInternal       Kind = "internal_server_error"
	KindClientCancelled Kind = "client_cancelled"
	KindUpstreamAuth   Kind = "upstream_auth"
)

// statusForKind maps a taxonomy kind to its HTTP status, per §7.
func statusForKind(k Kind) int {
	switch k {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindUpstreamError, KindUpstreamAuth:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// envelope is the error body shape returned to proxy clients.
type envelope struct {
	Error envelopeBody `json:"error"`
}

type envelopeBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newEnvelope(k Kind, message string) envelope {
	return envelope{Error: envelopeBody{Type: string(k), Message: message}}
}

// classifyCredentialError maps a credential.Store error to a taxonomy kind,
// per the AUTHED/RESOLVED steps of §4.D and the tenant-selection rule of
// §6: unknown tenant is a 404 not_found_error, while a wrong client key on
// a known tenant is a 401 authentication_error.
func classifyCredentialError(err error) (Kind, string) {
	switch {
	case err == nil:
		return "", ""
	case errors.Is(err, credential.ErrUnknownTenant):
		return KindNotFound, "unknown tenant"
	case errors.Is(err, credential.ErrForbidden):
		return KindAuthentication, "invalid credentials"
	case errors.Is(err, credential.ErrUpstreamAuth):
		return KindUpstreamAuth, "upstream authentication failed"
	default:
		return KindInternal, "internal error"
	}
}
