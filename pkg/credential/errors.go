package credential

import "errors"

var (
	// ErrUnknownTenant indicates resolve was called for a tenant with no
	// credential file on disk.
	ErrUnknownTenant = errors.New("unknown tenant")

	// ErrForbidden indicates the presented client-auth key did not match
	// the tenant's stored key.
	ErrForbidden = errors.New("forbidden")

	// ErrUpstreamAuth indicates an OAuth refresh failed; the in-memory
	// credential is left untouched.
	ErrUpstreamAuth = errors.New("upstream authentication failed")

	// ErrInvalidTenantName indicates a tenant string cannot be used as a
	// filename (contains a path separator or is otherwise unsafe).
	ErrInvalidTenantName = errors.New("invalid tenant name")
)
