package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"submithub/broker/auth"
	"submithub/broker/discovery"
	"submithub/broker/jobs"
	"submithub/broker/ledger"
	"submithub/broker/repository"
	"submithub/broker/schema"
	"submithub/broker/services"
	"submithub/utils/logging"

	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/oauth2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type repositoryOauthEnv struct {
	ClientId     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	AuthUrl      string `env:"AUTH_URL"`
	TokenUrl     string `env:"TOKEN_URL"`
	RedirectUrl  string `env:"REDIRECT_URL"`
}

type brokerEnv struct {
	DatabaseUri string `env:"DATABASE_URI,required"`
	MongoUri    string `env:"MONGO_URI"`
	MongoDbName string `env:"MONGO_DB_NAME" envDefault:"submithub"`

	JwtSecret string `env:"JWT_SECRET,required"`

	PublicOrigin string `env:"PUBLIC_ORIGIN,required"`
	LogDir       string `env:"LOG_DIR" envDefault:"logs"`

	IdentityProvider string `env:"IDENTITY_PROVIDER" envDefault:"orcid"`

	OrcidServerUrl    string `env:"ORCID_SERVER_URL" envDefault:"https://orcid.org"`
	OrcidClientId     string `env:"ORCID_CLIENT_ID"`
	OrcidClientSecret string `env:"ORCID_CLIENT_SECRET"`
	OrcidRedirectUrl  string `env:"ORCID_REDIRECT_URL"`

	KeycloakServerUrl    string `env:"KEYCLOAK_SERVER_URL"`
	KeycloakRealm        string `env:"KEYCLOAK_REALM"`
	KeycloakClientId     string `env:"KEYCLOAK_CLIENT_ID"`
	KeycloakClientSecret string `env:"KEYCLOAK_CLIENT_SECRET"`
	KeycloakRedirectUrl  string `env:"KEYCLOAK_REDIRECT_URL"`

	AdminOrcids []string `env:"ADMIN_ORCIDS" envSeparator:","`

	HydroShare repositoryOauthEnv `envPrefix:"HYDROSHARE_"`
	EarthChem  repositoryOauthEnv `envPrefix:"EARTHCHEM_"`
	Zenodo     repositoryOauthEnv `envPrefix:"ZENODO_"`

	TokenExpiryBuffer time.Duration `env:"TOKEN_EXPIRY_BUFFER" envDefault:"5m"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"24h"`
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

func loadEnv() brokerEnv {
	cfg := brokerEnv{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error loading environment variables: %v", err)
	}
	return cfg
}

func postgresDsn(uri string) string {
	parts, err := url.Parse(uri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	if err := db.AutoMigrate(schema.AllModels()...); err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

// initDiscoveryStore connects to mongo when a uri is configured, otherwise
// the discovery index lives in process and is rebuilt on restart by the
// reconciliation job.
func initDiscoveryStore(cfg brokerEnv) discovery.Store {
	if cfg.MongoUri == "" {
		slog.Info("no MONGO_URI configured, using in memory discovery store")
		return discovery.NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoUri))
	if err != nil {
		log.Fatalf("error connecting to mongo: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Fatalf("error pinging mongo: %v", err)
	}

	return discovery.NewMongoStore(client.Database(cfg.MongoDbName))
}

func oauthConfig(repo repositoryOauthEnv) (oauth2.Config, bool) {
	if repo.ClientId == "" {
		return oauth2.Config{}, false
	}
	return oauth2.Config{
		ClientID:     repo.ClientId,
		ClientSecret: repo.ClientSecret,
		RedirectURL:  repo.RedirectUrl,
		Endpoint: oauth2.Endpoint{
			AuthURL:  repo.AuthUrl,
			TokenURL: repo.TokenUrl,
		},
	}, true
}

func repositoryOauthConfigs(cfg brokerEnv) map[string]oauth2.Config {
	configs := map[string]oauth2.Config{}
	for repositoryType, repo := range map[string]repositoryOauthEnv{
		schema.RepoHydroShare: cfg.HydroShare,
		schema.RepoEarthChem:  cfg.EarthChem,
		schema.RepoZenodo:     cfg.Zenodo,
	} {
		if config, ok := oauthConfig(repo); ok {
			configs[repositoryType] = config
		} else {
			slog.Info("repository has no oauth credentials configured, authorization disabled", "repository", repositoryType)
		}
	}
	return configs
}

func identityProvider(cfg brokerEnv, db *gorm.DB, jwtManager *auth.JwtManager, auditLog auth.AuditLogger) auth.IdentityProvider {
	switch cfg.IdentityProvider {
	case "orcid":
		return auth.NewOrcidIdentityProvider(db, jwtManager, auditLog, auth.OrcidArgs{
			ServerUrl:    cfg.OrcidServerUrl,
			ClientId:     cfg.OrcidClientId,
			ClientSecret: cfg.OrcidClientSecret,
			RedirectUrl:  cfg.OrcidRedirectUrl,
		})
	case "keycloak":
		return auth.NewKeycloakIdentityProvider(db, jwtManager, auditLog, auth.KeycloakArgs{
			ServerUrl:    cfg.KeycloakServerUrl,
			Realm:        cfg.KeycloakRealm,
			ClientId:     cfg.KeycloakClientId,
			ClientSecret: cfg.KeycloakClientSecret,
			RedirectUrl:  cfg.KeycloakRedirectUrl,
		})
	default:
		log.Fatalf("unknown identity provider '%v', must be 'orcid' or 'keycloak'", cfg.IdentityProvider)
		return nil
	}
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 8000, "Port to run server on")
	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}
	cfg := loadEnv()

	if err := os.MkdirAll(cfg.LogDir, 0777); err != nil {
		log.Fatalf("error creating log dir: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.LogDir, "submithub.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer logFile.Close()

	auditLogFile, err := os.OpenFile(filepath.Join(cfg.LogDir, "audit.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening audit log file: %v", err)
	}
	defer auditLogFile.Close()

	logging.InitLogging(logFile)

	db := initDb(postgresDsn(cfg.DatabaseUri))

	discoveryStore := initDiscoveryStore(cfg)

	jwtManager := auth.NewJwtManager([]byte(cfg.JwtSecret))
	userAuth := identityProvider(cfg, db, jwtManager, auth.NewAuditLogger(auditLogFile))

	registry := repository.NewRegistry(repository.DefaultEndpoints())

	broker := services.NewBroker(db, registry, userAuth, jwtManager, repositoryOauthConfigs(cfg), services.Variables{
		TokenExpiryBuffer: cfg.TokenExpiryBuffer,
		AdminOrcids:       cfg.AdminOrcids,
	})

	scraper := discovery.NewScraper(discovery.DefaultClusterTable())
	reconciler := jobs.NewReconciler(ledger.New(db), discoveryStore, scraper)
	go reconciler.Run(cfg.ReconcileInterval)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.PublicOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api", broker.Routes())
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: r,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutdown signal received")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("HTTP server Shutdown", "err", err)
		}
		close(idleConnsClosed)
	}()

	slog.Info("starting server", "port", *port)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatalf("listen and serve returned error: %v", err)
	}

	<-idleConnsClosed
	reconciler.Stop()
}
