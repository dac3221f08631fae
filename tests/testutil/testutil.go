// Package testutil holds fixtures shared by package tests: a fixed tenant
// and user, deterministic ids, in-memory repositories, an event recorder and
// helpers that drive the HTTP API.
package testutil

import "github.com/google/uuid"

// NewTestUUID derives a stable id from seed, so fixtures built twice match
func NewTestUUID(seed string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(seed))
}

// TestTenantID is the tenant every fixture belongs to unless stated otherwise
func TestTenantID() uuid.UUID {
	return NewTestUUID("test-tenant")
}

// TestUserID is the acting user of fixtures and API calls
func TestUserID() uuid.UUID {
	return NewTestUUID("test-user")
}
