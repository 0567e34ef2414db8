package services

import (
	"errors"
	"fmt"
	"net/http"

	"submithub/broker/auth"
	"submithub/broker/ledger"
	"submithub/broker/schema"
	"submithub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubmissionService struct {
	db       *gorm.DB
	ledger   *ledger.Ledger
	userAuth auth.IdentityProvider
}

func (s *SubmissionService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/list", s.List)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)
		r.Use(auth.AdminOnly)

		r.Get("/report", s.Report)
		r.Post("/transfer", s.Transfer)
	})

	return r
}

func (s *SubmissionService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	submissions, err := s.ledger.List(user.Id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, submissions)
}

func (s *SubmissionService) Report(w http.ResponseWriter, r *http.Request) {
	report, err := s.ledger.Report()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, report)
}

type transferRequest struct {
	FromUserId uuid.UUID `json:"from_user_id"`
	ToUserId   uuid.UUID `json:"to_user_id"`
}

// Transfer reassigns all submissions from one user to another, used when a
// contributor leaves and an admin takes over their records.
func (s *SubmissionService) Transfer(w http.ResponseWriter, r *http.Request) {
	var params transferRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.FromUserId == params.ToUserId {
		http.Error(w, "cannot transfer submissions from a user to themselves", http.StatusUnprocessableEntity)
		return
	}

	for _, userId := range []uuid.UUID{params.FromUserId, params.ToUserId} {
		if _, err := schema.GetUser(userId, s.db); err != nil {
			if errors.Is(err, schema.ErrUserNotFound) {
				http.Error(w, fmt.Sprintf("user %v not found", userId), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	if err := s.ledger.Transfer(params.FromUserId, params.ToUserId); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteSuccess(w)
}
