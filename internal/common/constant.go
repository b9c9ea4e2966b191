// Package common contains shared constants and sentinel errors used across
// snapclient components.
package common

const (
	// AuthorizationHeader carries the bearer credential on REST calls.
	AuthorizationHeader = "Authorization"

	// CredentialKey is the local KV key holding the serialized Credential.
	CredentialKey = "auth"

	// UnknownUsername replaces usernames that could not be resolved.
	UnknownUsername = "Unknown"
)
