// Package common defines shared constants and sentinel errors used across
// gophauth components. Callers should use errors.Is to match the errors.
package common

// ServiceName is the default issuer placed into every token.
const ServiceName = "Auth"

// Token type claim values.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Authorization schemes accepted by the HTTP surface.
const (
	AuthSchemeBasic  = "Basic"
	AuthSchemeBearer = "Bearer"
)
