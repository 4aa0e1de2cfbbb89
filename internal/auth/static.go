// Package auth provides admin authorization for back-office endpoints.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/google/uuid"

	"github.com/ostrem/kasse/internal/domain"
)

// adminActorNamespace derives a stable actor id from the configured token,
// so audit entries attribute back-office changes consistently.
var adminActorNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// StaticAuthorizer implements domain.AdminAuthorizer against a single
// configured token. An empty configured token fails closed.
type StaticAuthorizer struct {
	token string
	actor uuid.UUID
}

// Compile-time check that StaticAuthorizer implements domain.AdminAuthorizer.
var _ domain.AdminAuthorizer = (*StaticAuthorizer)(nil)

// NewStaticAuthorizer creates an authorizer for the configured admin token.
func NewStaticAuthorizer(token string) *StaticAuthorizer {
	return &StaticAuthorizer{
		token: token,
		actor: uuid.NewSHA1(adminActorNamespace, []byte("admin:"+token)),
	}
}

// Authorize validates the presented token and returns the admin actor id.
func (a *StaticAuthorizer) Authorize(ctx context.Context, token string) (uuid.UUID, error) {
	if a.token == "" || token == "" {
		return uuid.Nil, domain.Unauthorized("auth.admin", "admin access is not configured")
	}

	// Hash both sides so the comparison is constant-time regardless of length.
	want := sha256.Sum256([]byte(a.token))
	got := sha256.Sum256([]byte(token))
	if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
		return uuid.Nil, domain.Unauthorized("auth.admin", "invalid admin token")
	}

	return a.actor, nil
}
