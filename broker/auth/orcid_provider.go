package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// OrcidIdentityProvider exchanges ORCID authorization codes for identities.
// ORCID returns the user's iD and display name as extra fields on the token
// response, so no profile lookup is needed after the exchange.
type OrcidIdentityProvider struct {
	config     oauth2.Config
	jwtManager *JwtManager
	db         *gorm.DB
	auditLog   AuditLogger
}

type OrcidArgs struct {
	ServerUrl    string
	ClientId     string
	ClientSecret string
	RedirectUrl  string
}

func NewOrcidIdentityProvider(db *gorm.DB, jwtManager *JwtManager, auditLog AuditLogger, args OrcidArgs) IdentityProvider {
	return &OrcidIdentityProvider{
		config: oauth2.Config{
			ClientID:     args.ClientId,
			ClientSecret: args.ClientSecret,
			RedirectURL:  args.RedirectUrl,
			Endpoint: oauth2.Endpoint{
				AuthURL:  args.ServerUrl + "/oauth/authorize",
				TokenURL: args.ServerUrl + "/oauth/token",
			},
		},
		jwtManager: jwtManager,
		db:         db,
		auditLog:   auditLog,
	}
}

func (auth *OrcidIdentityProvider) AuthMiddleware() chi.Middlewares {
	return chi.Middlewares{
		auth.jwtManager.Verifier(),
		auth.jwtManager.Authenticator(),
		userContextMiddleware(auth.db),
		auth.auditLog.Middleware,
	}
}

func (auth *OrcidIdentityProvider) ExchangeCode(ctx context.Context, code string) (Identity, error) {
	token, err := auth.config.Exchange(ctx, code)
	if err != nil {
		slog.Error("orcid code exchange failed", "error", err)
		return Identity{}, fmt.Errorf("%w: %v", ErrCodeExchangeFailed, err)
	}

	orcid, ok := token.Extra("orcid").(string)
	if !ok || orcid == "" {
		return Identity{}, fmt.Errorf("%w: orcid id missing from token response", ErrCodeExchangeFailed)
	}
	name, _ := token.Extra("name").(string)

	return Identity{
		Subject:      orcid,
		Name:         name,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}, nil
}
