package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"submithub/broker/auth"
	"submithub/broker/schema"
	"submithub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	db         *gorm.DB
	userAuth   auth.IdentityProvider
	jwtManager *auth.JwtManager

	// ORCID iDs that are granted admin on login.
	adminOrcids map[string]bool
}

func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/login", s.Login)

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/info", s.Info)
	})

	return r
}

type loginRequest struct {
	Code string `json:"code"`
}

type loginResponse struct {
	UserId      uuid.UUID `json:"user_id"`
	Orcid       string    `json:"orcid"`
	Name        string    `json:"name"`
	AccessToken string    `json:"access_token"`
}

// Login exchanges an authorization code from the identity provider for a
// session jwt. The first login creates the user record; later logins refresh
// the stored profile and identity tokens.
func (s *UserService) Login(w http.ResponseWriter, r *http.Request) {
	var params loginRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	identity, err := s.userAuth.ExchangeCode(r.Context(), params.Code)
	if err != nil {
		if errors.Is(err, auth.ErrCodeExchangeFailed) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		http.Error(w, fmt.Sprintf("login failed: %v", err), http.StatusInternalServerError)
		return
	}

	var user schema.User

	err = s.db.Transaction(func(txn *gorm.DB) error {
		findResult := txn.Limit(1).Find(&user, "orcid = ?", identity.Subject)
		if findResult.Error != nil {
			slog.Error("sql error checking for existing user", "orcid", identity.Subject, "error", findResult.Error)
			return schema.ErrDbAccessFailed
		}

		if findResult.RowsAffected == 0 {
			user = schema.User{
				Id:           uuid.New(),
				Orcid:        identity.Subject,
				Name:         identity.Name,
				Email:        identity.Email,
				AccessToken:  identity.AccessToken,
				RefreshToken: identity.RefreshToken,
				IsAdmin:      s.adminOrcids[identity.Subject],
			}
			createResult := txn.Create(&user)
			if createResult.Error != nil {
				slog.Error("sql error creating new user", "orcid", identity.Subject, "error", createResult.Error)
				return schema.ErrDbAccessFailed
			}
			slog.Info("created new user", "user_id", user.Id, "orcid", user.Orcid)
			return nil
		}

		updates := map[string]interface{}{
			"name":         identity.Name,
			"email":        identity.Email,
			"access_token": identity.AccessToken,
		}
		if identity.RefreshToken != "" {
			updates["refresh_token"] = identity.RefreshToken
		}
		updateResult := txn.Model(&user).Updates(updates)
		if updateResult.Error != nil {
			slog.Error("sql error updating user on login", "user_id", user.Id, "error", updateResult.Error)
			return schema.ErrDbAccessFailed
		}
		return nil
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("login failed: %v", err), http.StatusInternalServerError)
		return
	}

	jwt, err := s.jwtManager.CreateUserJwt(user.Id)
	if err != nil {
		http.Error(w, auth.ErrGeneratingJwt.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("user logged in", "user_id", user.Id, "orcid", user.Orcid)

	res := loginResponse{UserId: user.Id, Orcid: user.Orcid, Name: user.Name, AccessToken: jwt}
	utils.WriteJsonResponse(w, res)
}

type userInfoResponse struct {
	UserId  uuid.UUID `json:"user_id"`
	Orcid   string    `json:"orcid"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	IsAdmin bool      `json:"is_admin"`

	AuthorizedRepositories []string `json:"authorized_repositories"`
}

func (s *UserService) Info(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var repoTokens []schema.RepositoryToken
	result := s.db.Find(&repoTokens, "user_id = ?", user.Id)
	if result.Error != nil {
		slog.Error("sql error listing repository tokens for user info", "user_id", user.Id, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	authorized := make([]string, 0, len(repoTokens))
	now := time.Now()
	for _, token := range repoTokens {
		if token.ExpiresAt == nil || now.Before(*token.ExpiresAt) {
			authorized = append(authorized, token.RepositoryType)
		}
	}

	res := userInfoResponse{
		UserId:                 user.Id,
		Orcid:                  user.Orcid,
		Name:                   user.Name,
		Email:                  user.Email,
		IsAdmin:                user.IsAdmin,
		AuthorizedRepositories: authorized,
	}
	utils.WriteJsonResponse(w, res)
}
