package services

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"submithub/broker/auth"
	"submithub/broker/schema"
	"submithub/broker/tokens"
	"submithub/utils"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
)

// RepositoryService manages the per user access tokens for each remote
// repository. Authorization uses the standard code flow: the frontend sends
// the user through the repository's consent page and posts the resulting code
// here for exchange.
type RepositoryService struct {
	tokenStore   *tokens.Store
	oauthConfigs map[string]oauth2.Config
	userAuth     auth.IdentityProvider
	expiryBuffer time.Duration
}

func (s *RepositoryService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Post("/{repository}/authorize", s.Authorize)
		r.Get("/{repository}/token", s.GetToken)
		r.Delete("/{repository}/token", s.DeleteToken)
	})

	return r
}

func repositoryParam(r *http.Request) (string, error) {
	repositoryType, err := utils.URLParam(r, "repository")
	if err != nil {
		return "", err
	}
	if err := schema.CheckValidRepository(repositoryType); err != nil {
		return "", err
	}
	return repositoryType, nil
}

type authorizeRequest struct {
	Code string `json:"code"`
}

type tokenResponse struct {
	RepositoryType string     `json:"repository_type"`
	AccessToken    string     `json:"access_token"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Expired        bool       `json:"expired"`
}

func (s *RepositoryService) Authorize(w http.ResponseWriter, r *http.Request) {
	repositoryType, err := repositoryParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	config, ok := s.oauthConfigs[repositoryType]
	if !ok {
		http.Error(w, fmt.Sprintf("repository '%v' does not support authorization", repositoryType), http.StatusBadRequest)
		return
	}

	var params authorizeRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	exchanged, err := config.Exchange(r.Context(), params.Code)
	if err != nil {
		http.Error(w, fmt.Sprintf("error exchanging authorization code with repository '%v': %v", repositoryType, err), http.StatusUnauthorized)
		return
	}

	update := tokens.Update{
		AccessToken:  exchanged.AccessToken,
		RefreshToken: exchanged.RefreshToken,
	}
	if !exchanged.Expiry.IsZero() {
		expiresAt := exchanged.Expiry
		update.ExpiresAt = &expiresAt
		update.ExpiresIn = int64(time.Until(expiresAt).Seconds())
	}

	token, err := s.tokenStore.Upsert(user.Id, repositoryType, update)
	if err != nil {
		http.Error(w, fmt.Sprintf("error storing repository token: %v", err), http.StatusInternalServerError)
		return
	}

	res := tokenResponse{
		RepositoryType: repositoryType,
		AccessToken:    token.AccessToken,
		ExpiresAt:      token.ExpiresAt,
		Expired:        tokens.IsExpired(token, time.Now(), s.expiryBuffer),
	}
	utils.WriteJsonResponse(w, res)
}

func (s *RepositoryService) GetToken(w http.ResponseWriter, r *http.Request) {
	repositoryType, err := repositoryParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	token, err := s.tokenStore.Get(user.Id, repositoryType)
	if err != nil {
		if errors.Is(err, tokens.ErrNotAuthorized) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	res := tokenResponse{
		RepositoryType: repositoryType,
		AccessToken:    token.AccessToken,
		ExpiresAt:      token.ExpiresAt,
		Expired:        tokens.IsExpired(token, time.Now(), s.expiryBuffer),
	}
	utils.WriteJsonResponse(w, res)
}

func (s *RepositoryService) DeleteToken(w http.ResponseWriter, r *http.Request) {
	repositoryType, err := repositoryParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	if err := s.tokenStore.Delete(user.Id, repositoryType); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteSuccess(w)
}
