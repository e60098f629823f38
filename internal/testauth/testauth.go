// Package testauth issues bearer tokens for tests. It signs with a fixed,
// well-known secret and must never be imported by production code.
package testauth

import (
	"net/http"
	"testing"
	"time"

	"github.com/prepsphere/server/internal/auth"
)

const (
	Secret = "prepsphere-test-secret-not-for-production"
	Issuer = "prepsphere-test"
)

// Manager returns a JWT manager using the test secret.
func Manager() *auth.JWTManager {
	return auth.NewJWTManager(Secret, time.Hour, Issuer)
}

// Bearer returns an Authorization header value for the given user and role.
func Bearer(t testing.TB, manager *auth.JWTManager, userID int64, role auth.Role) string {
	t.Helper()
	token, err := manager.Generate(userID, role, "user@college.test")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return "Bearer " + token
}

// Authorize sets the Authorization header on req and returns it.
func Authorize(t testing.TB, req *http.Request, manager *auth.JWTManager, userID int64, role auth.Role) *http.Request {
	t.Helper()
	req.Header.Set("Authorization", Bearer(t, manager, userID, role))
	return req
}
