// Package api is a thin client for the HyphaeOS REST surface: the /api/auth
// endpoints used by the credential verifier and the read-only agent panel
// endpoints.
//
// Every request carries the client's cookie jar (the ambient transport
// credential) and, for authenticated calls, an Authorization: Bearer header.
// Failures are returned as [*Error] values that wrap one of the package
// sentinels so callers can branch with errors.Is.
package api
