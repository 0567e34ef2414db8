package tests

import (
	"bytes"
	"testing"
	"time"

	"submithub/broker/auth"
	"submithub/broker/repository"
	"submithub/broker/schema"
	"submithub/broker/services"
	"submithub/broker/tokens"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	adminOrcid = "0000-0002-0000-0001"
	adminCode  = "admin-auth-code"
)

type testEnv struct {
	api        chi.Router
	db         *gorm.DB
	identities map[string]auth.Identity
	repos      *repoStub
}

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := db.AutoMigrate(schema.AllModels()...); err != nil {
		t.Fatal(err)
	}

	stub := newRepoStub()
	t.Cleanup(stub.server.Close)

	registry := repository.NewRegistry(repository.Endpoints{
		HydroShareApi:  stub.server.URL,
		HydroShareView: "https://www.hydroshare.org/resource/%v",
		EarthChemApi:   stub.server.URL,
		EarthChemView:  "https://ecl.earthchem.org/view.php?id=%v",
		ZenodoApi:      stub.server.URL,
		ZenodoView:     "https://zenodo.org/record/%v",
	})

	jwtManager := auth.NewJwtManager([]byte("290zcv02ai249"))

	identities := map[string]auth.Identity{
		adminCode: {Subject: adminOrcid, Name: "Admin User", Email: "admin@mail.com", AccessToken: "orcid-access-token"},
	}
	userAuth := auth.NewStaticIdentityProvider(db, jwtManager, auth.NewAuditLogger(new(bytes.Buffer)), identities)

	oauthConfigs := make(map[string]oauth2.Config)
	for _, repo := range []string{schema.RepoHydroShare, schema.RepoEarthChem, schema.RepoZenodo} {
		oauthConfigs[repo] = oauth2.Config{
			ClientID:     repo + "-client",
			ClientSecret: repo + "-secret",
			Endpoint:     oauth2.Endpoint{TokenURL: stub.server.URL + "/oauth/token"},
		}
	}

	broker := services.NewBroker(db, registry, userAuth, jwtManager, oauthConfigs, services.Variables{
		TokenExpiryBuffer: time.Minute,
		AdminOrcids:       []string{adminOrcid},
	})

	return &testEnv{api: broker.Routes(), db: db, identities: identities, repos: stub}
}

func (env *testEnv) newClient() client {
	return client{api: env.api}
}

// newUser registers an identity with the static provider and logs in as that
// user, the way the frontend would after the orcid consent redirect.
func (env *testEnv) newUser(t *testing.T, orcid string) client {
	code := "code-" + orcid
	env.identities[code] = auth.Identity{
		Subject:     orcid,
		Name:        "User " + orcid,
		Email:       orcid + "@mail.com",
		AccessToken: "orcid-access-token",
	}

	c := env.newClient()
	if err := c.login(code); err != nil {
		t.Fatal(err)
	}
	return c
}

func (env *testEnv) adminClient(t *testing.T) client {
	c := env.newClient()
	if err := c.login(adminCode); err != nil {
		t.Fatal(err)
	}
	return c
}

// expireToken backdates the stored repository token for the given user so
// requests against that repository are rejected until they reauthorize.
func (env *testEnv) expireToken(t *testing.T, c client, repositoryType string) {
	userId, err := uuid.Parse(c.userId)
	if err != nil {
		t.Fatal(err)
	}

	past := time.Now().Add(-time.Hour)
	store := tokens.NewStore(env.db)
	if _, err := store.Upsert(userId, repositoryType, tokens.Update{AccessToken: "stale-token", ExpiresAt: &past}); err != nil {
		t.Fatal(err)
	}
}
