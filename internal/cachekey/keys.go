// Package cachekey builds namespaced store keys and centralizes TTL policy.
//
// Key shape is a wire contract other tooling depends on:
//
//	unifiedhq:<domain>:<scope>:<subkey...>
//
// colon-delimited with lowercase domain tokens. Generation is a pure
// function of its inputs: identical inputs always produce identical keys.
package cachekey

import "strings"

// Prefix is the application namespace shared by every key.
const Prefix = "unifiedhq"

const separator = ":"

// Domain tokens. Lowercase on the wire.
const (
	DomainUser          = "user"
	DomainSourceControl = "sourcecontrol"
	DomainChat          = "chat"
	DomainAISummary     = "aisummary"
	DomainAPI           = "api"
	DomainSession       = "session"
)

// Generate builds a namespaced key from a domain, a scope identifier and
// optional sub-key parts. Embedded separators inside any field are
// replaced so that distinct logical inputs cannot collide with the
// delimiter structure.
func Generate(domain, scope string, parts ...string) string {
	fields := make([]string, 0, 2+len(parts))
	fields = append(fields, sanitize(strings.ToLower(domain)), sanitize(scope))
	for _, p := range parts {
		fields = append(fields, sanitize(p))
	}
	return Prefix + separator + strings.Join(fields, separator)
}

// User builds a key in the user domain.
func User(userID string, parts ...string) string {
	return Generate(DomainUser, userID, parts...)
}

// SourceControl builds a key in the source-control activity domain.
func SourceControl(userID string, parts ...string) string {
	return Generate(DomainSourceControl, userID, parts...)
}

// Chat builds a key in the chat activity domain.
func Chat(userID string, parts ...string) string {
	return Generate(DomainChat, userID, parts...)
}

// AISummary builds a key in the AI-generated summary domain.
func AISummary(userID string, parts ...string) string {
	return Generate(DomainAISummary, userID, parts...)
}

// API builds a key in the generic API response domain.
func API(endpoint string, parts ...string) string {
	return Generate(DomainAPI, endpoint, parts...)
}

// Session builds a key in the session domain.
func Session(sessionID string, parts ...string) string {
	return Generate(DomainSession, sessionID, parts...)
}

// Pattern builds a wildcard pattern covering every key under a domain
// scope, for bulk invalidation.
func Pattern(domain, scope string) string {
	if scope == "" {
		return Prefix + separator + sanitize(strings.ToLower(domain)) + separator + "*"
	}
	return Prefix + separator + sanitize(strings.ToLower(domain)) + separator + sanitize(scope) + separator + "*"
}

// sanitize replaces the key separator inside a field so field boundaries
// stay unambiguous. Wildcards pass through untouched.
func sanitize(field string) string {
	return strings.ReplaceAll(field, separator, "-")
}
