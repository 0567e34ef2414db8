package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"submithub/broker/auth"
	"submithub/broker/ledger"
	"submithub/broker/repository"
	"submithub/broker/schema"
	"submithub/broker/tokens"
	"submithub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// MetadataService fronts the repository apis: every create/update/delete is
// forwarded to the remote repository and, on success, mirrored into the
// submission ledger as the canonical record.
type MetadataService struct {
	ledger       *ledger.Ledger
	tokenStore   *tokens.Store
	registry     *repository.Registry
	userAuth     auth.IdentityProvider
	expiryBuffer time.Duration
}

func (s *MetadataService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Post("/{repository}", s.Create)
		r.Get("/{repository}/{identifier}", s.Get)
		r.Put("/{repository}/{identifier}", s.Update)
		r.Delete("/{repository}/{identifier}", s.Delete)
	})

	return r
}

// accessToken returns the bearer token to use against the given repository.
// External submissions have no remote api, so no token is required.
func (s *MetadataService) accessToken(userId uuid.UUID, repositoryType string) (string, error) {
	if repositoryType == schema.RepoExternal {
		return "", nil
	}

	token, err := s.tokenStore.Get(userId, repositoryType)
	if err != nil {
		if errors.Is(err, tokens.ErrNotAuthorized) {
			return "", CodedError(err, http.StatusUnauthorized)
		}
		return "", CodedError(err, http.StatusInternalServerError)
	}

	if tokens.IsExpired(token, time.Now(), s.expiryBuffer) {
		return "", CodedError(fmt.Errorf("%w '%v': token expired", tokens.ErrNotAuthorized, repositoryType), http.StatusUnauthorized)
	}

	return token.AccessToken, nil
}

// checkOwnership verifies the user holds the submission under the given
// repository and identifier. An identifier owned by another user is a
// conflict, an identifier owned by no one is not found.
func (s *MetadataService) checkOwnership(userId uuid.UUID, repositoryType, identifier string) error {
	owner, exists, err := s.ledger.Owner(repositoryType, identifier)
	if err != nil {
		return CodedError(err, http.StatusInternalServerError)
	}
	if !exists {
		return CodedError(fmt.Errorf("no submission found for identifier '%v' in repository '%v'", identifier, repositoryType), http.StatusNotFound)
	}
	if owner != userId {
		return CodedError(fmt.Errorf("identifier '%v' in repository '%v' is registered to another user", identifier, repositoryType), http.StatusForbidden)
	}
	return nil
}

func repositoryErrorCode(err error) int {
	var reqErr *repository.RequestError
	if errors.As(err, &reqErr) {
		return http.StatusBadGateway
	}
	if errors.Is(err, repository.ErrMappingFailed) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *MetadataService) Create(w http.ResponseWriter, r *http.Request) {
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

	var metadata repository.Record
	if !utils.ParseRequestBody(w, r, &metadata) {
		return
	}

	accessToken, err := s.accessToken(user.Id, repositoryType)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	adapter, err := s.registry.Adapter(repositoryType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	identifier, err := adapter.CreateRecord(r.Context(), accessToken, metadata)
	if err != nil {
		slog.Error("error creating repository record", "repository", repositoryType, "error", err)
		http.Error(w, fmt.Sprintf("error creating record in repository '%v': %v", repositoryType, err), repositoryErrorCode(err))
		return
	}

	record, err := adapter.UpdateRecord(r.Context(), accessToken, identifier, metadata)
	if err != nil {
		slog.Error("error writing metadata to new record", "repository", repositoryType, "identifier", identifier, "error", err)
		http.Error(w, fmt.Sprintf("error writing metadata to record '%v': %v", identifier, err), repositoryErrorCode(err))
		return
	}

	s.saveSubmission(w, user.Id, repositoryType, identifier, adapter, record)
}

func (s *MetadataService) Get(w http.ResponseWriter, r *http.Request) {
	repositoryType, identifier, user, ok := s.submissionRequest(w, r)
	if !ok {
		return
	}

	// External submissions have no remote record to fetch, the ledger copy
	// is authoritative.
	if repositoryType == schema.RepoExternal {
		submission, err := s.ledger.Get(user.Id, repositoryType, identifier)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var record repository.Record
		if err := json.Unmarshal([]byte(submission.MetadataJson), &record); err != nil {
			http.Error(w, fmt.Sprintf("error decoding stored metadata: %v", err), http.StatusInternalServerError)
			return
		}
		utils.WriteJsonResponse(w, record)
		return
	}

	accessToken, err := s.accessToken(user.Id, repositoryType)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	adapter, err := s.registry.Adapter(repositoryType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := adapter.GetRecord(r.Context(), accessToken, identifier)
	if err != nil {
		http.Error(w, fmt.Sprintf("error reading record '%v': %v", identifier, err), repositoryErrorCode(err))
		return
	}

	utils.WriteJsonResponse(w, record)
}

func (s *MetadataService) Update(w http.ResponseWriter, r *http.Request) {
	repositoryType, identifier, user, ok := s.submissionRequest(w, r)
	if !ok {
		return
	}

	var metadata repository.Record
	if !utils.ParseRequestBody(w, r, &metadata) {
		return
	}

	accessToken, err := s.accessToken(user.Id, repositoryType)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	adapter, err := s.registry.Adapter(repositoryType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := adapter.UpdateRecord(r.Context(), accessToken, identifier, metadata)
	if err != nil {
		slog.Error("error updating repository record", "repository", repositoryType, "identifier", identifier, "error", err)
		http.Error(w, fmt.Sprintf("error updating record '%v': %v", identifier, err), repositoryErrorCode(err))
		return
	}

	s.saveSubmission(w, user.Id, repositoryType, identifier, adapter, record)
}

func (s *MetadataService) Delete(w http.ResponseWriter, r *http.Request) {
	repositoryType, identifier, user, ok := s.submissionRequest(w, r)
	if !ok {
		return
	}

	accessToken, err := s.accessToken(user.Id, repositoryType)
	if err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return
	}

	adapter, err := s.registry.Adapter(repositoryType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := adapter.DeleteRecord(r.Context(), accessToken, identifier); err != nil {
		slog.Error("error deleting repository record", "repository", repositoryType, "identifier", identifier, "error", err)
		http.Error(w, fmt.Sprintf("error deleting record '%v': %v", identifier, err), repositoryErrorCode(err))
		return
	}

	if err := s.ledger.Delete(user.Id, repositoryType, identifier); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("deleted submission", "user_id", user.Id, "repository", repositoryType, "identifier", identifier)

	utils.WriteSuccess(w)
}

// submissionRequest parses and authorizes a request addressing an existing
// submission.
func (s *MetadataService) submissionRequest(w http.ResponseWriter, r *http.Request) (string, string, schema.User, bool) {
	repositoryType, err := repositoryParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", "", schema.User{}, false
	}

	identifier, err := utils.URLParam(r, "identifier")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", "", schema.User{}, false
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return "", "", schema.User{}, false
	}

	if err := s.checkOwnership(user.Id, repositoryType, identifier); err != nil {
		http.Error(w, err.Error(), GetResponseCode(err))
		return "", "", schema.User{}, false
	}

	return repositoryType, identifier, user, true
}

type submissionResponse struct {
	Submission schema.Submission `json:"submission"`
	Record     repository.Record `json:"record"`
}

func (s *MetadataService) saveSubmission(w http.ResponseWriter, userId uuid.UUID, repositoryType, identifier string, adapter repository.Adapter, record repository.Record) {
	submission, err := adapter.ToSubmission(record, identifier)
	if err != nil {
		http.Error(w, fmt.Sprintf("error mapping record '%v' to submission: %v", identifier, err), repositoryErrorCode(err))
		return
	}

	// A new identifier claimed by another user is rejected before it lands
	// in the ledger.
	owner, exists, err := s.ledger.Owner(repositoryType, submission.Identifier)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if exists && owner != userId {
		http.Error(w, fmt.Sprintf("identifier '%v' in repository '%v' is registered to another user", submission.Identifier, repositoryType), http.StatusForbidden)
		return
	}

	saved, err := s.ledger.CreateOrReplace(userId, submission)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("saved submission", "user_id", userId, "repository", repositoryType, "identifier", saved.Identifier)

	utils.WriteJsonResponse(w, submissionResponse{Submission: saved, Record: record})
}
