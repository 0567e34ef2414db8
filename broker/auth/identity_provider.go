package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"submithub/broker/schema"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrCodeExchangeFailed = errors.New("error exchanging authorization code")
	ErrGeneratingJwt      = errors.New("error generating jwt")
)

// Identity is the profile returned by an identity provider after a
// successful authorization code exchange. Subject is the provider's stable
// identifier for the user (the ORCID iD for the orcid provider).
type Identity struct {
	Subject string
	Name    string
	Email   string

	AccessToken  string
	RefreshToken string
}

type IdentityProvider interface {
	AuthMiddleware() chi.Middlewares

	ExchangeCode(ctx context.Context, code string) (Identity, error)
}

type requestContextKey string

const userRequestContextKey requestContextKey = "user"

func userContextMiddleware(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			userId, err := ValueFromContext(r, userIdKey)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			userUUID, err := uuid.Parse(userId)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid user uuid '%v': %v", userId, err), http.StatusUnauthorized)
				return
			}

			user, err := schema.GetUser(userUUID, db)
			if err != nil {
				if errors.Is(err, schema.ErrUserNotFound) {
					http.Error(w, err.Error(), http.StatusNotFound)
					return
				}
				http.Error(w, fmt.Sprintf("unable to find user %v: %v", userId, err), http.StatusInternalServerError)
				return
			}

			reqCtx := r.Context()
			reqCtx = context.WithValue(reqCtx, userRequestContextKey, user)
			next.ServeHTTP(w, r.WithContext(reqCtx))
		}

		return http.HandlerFunc(handler)
	}
}

func UserFromContext(r *http.Request) (schema.User, error) {
	userUntyped := r.Context().Value(userRequestContextKey)
	if userUntyped == nil {
		return schema.User{}, fmt.Errorf("user field not found in request context")
	}
	user, ok := userUntyped.(schema.User)
	if !ok {
		return schema.User{}, fmt.Errorf("invalid value for user field")
	}
	return user, nil
}

// AdminOnly rejects requests from non admin users. It must run after the
// identity provider's middleware has attached the user to the context.
func AdminOnly(next http.Handler) http.Handler {
	handler := func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if !user.IsAdmin {
			http.Error(w, "user must be an admin to access this endpoint", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(handler)
}
