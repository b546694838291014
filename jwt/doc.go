// Package jwt issues and verifies the bearer tokens minted by the local
// (offline) credential backend.
//
// Tokens produced here are opaque to every other package: the session store and
// the REST client only carry them. Only the local backend that signed a token
// parses it again, during startup restore.
package jwt
