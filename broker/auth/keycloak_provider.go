package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Nerzal/gocloak/v13"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// KeycloakIdentityProvider exchanges authorization codes against a keycloak
// realm, for deployments that front ORCID (or another upstream) with their
// own keycloak instance.
type KeycloakIdentityProvider struct {
	keycloak   *gocloak.GoCloak
	jwtManager *JwtManager
	db         *gorm.DB
	auditLog   AuditLogger

	realm        string
	clientId     string
	clientSecret string
	redirectUrl  string
}

type KeycloakArgs struct {
	ServerUrl    string
	Realm        string
	ClientId     string
	ClientSecret string
	RedirectUrl  string
}

func strArg(value string) *string {
	p := new(string)
	*p = value
	return p
}

func NewKeycloakIdentityProvider(db *gorm.DB, jwtManager *JwtManager, auditLog AuditLogger, args KeycloakArgs) IdentityProvider {
	return &KeycloakIdentityProvider{
		keycloak:     gocloak.NewClient(args.ServerUrl),
		jwtManager:   jwtManager,
		db:           db,
		auditLog:     auditLog,
		realm:        args.Realm,
		clientId:     args.ClientId,
		clientSecret: args.ClientSecret,
		redirectUrl:  args.RedirectUrl,
	}
}

func (auth *KeycloakIdentityProvider) AuthMiddleware() chi.Middlewares {
	return chi.Middlewares{
		auth.jwtManager.Verifier(),
		auth.jwtManager.Authenticator(),
		userContextMiddleware(auth.db),
		auth.auditLog.Middleware,
	}
}

func (auth *KeycloakIdentityProvider) ExchangeCode(ctx context.Context, code string) (Identity, error) {
	token, err := auth.keycloak.GetToken(ctx, auth.realm, gocloak.TokenOptions{
		ClientID:     strArg(auth.clientId),
		ClientSecret: strArg(auth.clientSecret),
		GrantType:    strArg("authorization_code"),
		Code:         strArg(code),
		RedirectURI:  strArg(auth.redirectUrl),
	})
	if err != nil {
		slog.Error("keycloak code exchange failed", "error", err)
		return Identity{}, fmt.Errorf("%w: %v", ErrCodeExchangeFailed, err)
	}

	userInfo, err := auth.keycloak.GetUserInfo(ctx, token.AccessToken, auth.realm)
	if err != nil {
		slog.Error("failed to get user info from keycloak", "error", err)
		return Identity{}, fmt.Errorf("%w: %v", ErrCodeExchangeFailed, err)
	}
	if userInfo.Sub == nil {
		return Identity{}, fmt.Errorf("%w: user identifier missing in keycloak response", ErrCodeExchangeFailed)
	}

	identity := Identity{
		Subject:      *userInfo.Sub,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if userInfo.Name != nil {
		identity.Name = *userInfo.Name
	}
	if userInfo.Email != nil {
		identity.Email = *userInfo.Email
	}
	return identity, nil
}
