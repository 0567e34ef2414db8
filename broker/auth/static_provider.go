package auth

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// StaticIdentityProvider resolves authorization codes against a fixed table.
// It backs tests and local development where no upstream provider is running.
type StaticIdentityProvider struct {
	jwtManager *JwtManager
	db         *gorm.DB
	auditLog   AuditLogger

	identities map[string]Identity
}

func NewStaticIdentityProvider(db *gorm.DB, jwtManager *JwtManager, auditLog AuditLogger, identities map[string]Identity) IdentityProvider {
	return &StaticIdentityProvider{
		jwtManager: jwtManager,
		db:         db,
		auditLog:   auditLog,
		identities: identities,
	}
}

func (auth *StaticIdentityProvider) AuthMiddleware() chi.Middlewares {
	return chi.Middlewares{
		auth.jwtManager.Verifier(),
		auth.jwtManager.Authenticator(),
		userContextMiddleware(auth.db),
		auth.auditLog.Middleware,
	}
}

func (auth *StaticIdentityProvider) ExchangeCode(ctx context.Context, code string) (Identity, error) {
	identity, ok := auth.identities[code]
	if !ok {
		return Identity{}, fmt.Errorf("%w: unknown authorization code", ErrCodeExchangeFailed)
	}
	return identity, nil
}
