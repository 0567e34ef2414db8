package services

import (
	"log"
	"net/http"
	"os"
	"time"

	"submithub/broker/auth"
	"submithub/broker/ledger"
	"submithub/broker/repository"
	"submithub/broker/tokens"
	"submithub/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type Variables struct {
	// How close to its expiry a repository token is still considered usable.
	TokenExpiryBuffer time.Duration

	// ORCID iDs granted admin on login.
	AdminOrcids []string
}

type Broker struct {
	user       UserService
	repository RepositoryService
	metadata   MetadataService
	submission SubmissionService

	db *gorm.DB
}

func NewBroker(
	db *gorm.DB, registry *repository.Registry, userAuth auth.IdentityProvider, jwtManager *auth.JwtManager, oauthConfigs map[string]oauth2.Config, variables Variables,
) Broker {
	tokenStore := tokens.NewStore(db)
	submissionLedger := ledger.New(db)

	adminOrcids := make(map[string]bool, len(variables.AdminOrcids))
	for _, orcid := range variables.AdminOrcids {
		adminOrcids[orcid] = true
	}

	return Broker{
		user: UserService{
			db:          db,
			userAuth:    userAuth,
			jwtManager:  jwtManager,
			adminOrcids: adminOrcids,
		},
		repository: RepositoryService{
			tokenStore:   tokenStore,
			oauthConfigs: oauthConfigs,
			userAuth:     userAuth,
			expiryBuffer: variables.TokenExpiryBuffer,
		},
		metadata: MetadataService{
			ledger:       submissionLedger,
			tokenStore:   tokenStore,
			registry:     registry,
			userAuth:     userAuth,
			expiryBuffer: variables.TokenExpiryBuffer,
		},
		submission: SubmissionService{
			db:       db,
			ledger:   submissionLedger,
			userAuth: userAuth,
		},
		db: db,
	}
}

func (b *Broker) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", b.user.Routes())
	r.Mount("/repository", b.repository.Routes())
	r.Mount("/metadata", b.metadata.Routes())
	r.Mount("/submission", b.submission.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})

	return r
}
