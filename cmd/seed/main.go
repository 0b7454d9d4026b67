// seed bootstraps a development owner with one app and prints a usable API key and session token.
// Idempotent: the owner is upserted; when the owner already has the dev app its key is regenerated.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	apprepo "web-analytics/backend/internal/app/repository"
	apikeyrepo "web-analytics/backend/internal/apikey/repository"
	apikeyservice "web-analytics/backend/internal/apikey/service"
	"web-analytics/backend/internal/audit"
	auditrepo "web-analytics/backend/internal/audit/repository"
	"web-analytics/backend/internal/config"
	"web-analytics/backend/internal/db"
	"web-analytics/backend/internal/logging"
	"web-analytics/backend/internal/platform/principal"
	"web-analytics/backend/internal/policy/engine"
	"web-analytics/backend/internal/security"
	"web-analytics/backend/internal/user/domain"
	userrepo "web-analytics/backend/internal/user/repository"
)

const (
	devExternalID = "dev-google-sub-001"
	devEmail      = "dev@example.com"
	devName       = "Dev User"
	devAppName    = "Dev App"
	devAppDomain  = "http://localhost:3001"
	seedIP        = "127.0.0.1"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: "console", Service: "web-analytics-seed"})
	if cfg.DatabaseURL == "" {
		logging.Fatal().Msg("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("db")
	}
	defer conn.Close()
	ctx := context.Background()

	tokens, err := security.NewSessionProvider(security.SessionSettings{
		Secret:     cfg.JWTSecret,
		PrivateKey: cfg.JWTPrivateKey,
		PublicKey:  cfg.JWTPublicKey,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		TTL:        cfg.SessionTTL(),
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("seed: session signing key (set JWT_SECRET or a key pair)")
	}
	authz, err := engine.NewOPAEvaluator(ctx)
	if err != nil {
		logging.Fatal().Err(err).Msg("seed: policy")
	}

	now := time.Now().UTC()
	user, err := userrepo.NewPostgresRepository(conn).Upsert(ctx, &domain.User{
		ID:         uuid.New().String(),
		ExternalID: devExternalID,
		Provider:   domain.ProviderGoogle,
		Email:      devEmail,
		Name:       devName,
		CreatedAt:  now,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("seed: upsert dev user")
	}
	owner := principal.Owner{UserID: user.ID, Email: user.Email}

	apps := apprepo.NewPostgresRepository(conn)
	svc := apikeyservice.NewService(apps, apikeyrepo.NewPostgresRepository(conn), authz,
		audit.NewLogger(auditrepo.NewPostgresRepository(conn)), cfg.APIKeyTTL())

	existing, err := apps.ListByOwner(ctx, user.ID)
	if err != nil {
		logging.Fatal().Err(err).Msg("seed: list apps")
	}
	var appID, key string
	for _, a := range existing {
		if a.Name == devAppName {
			issued, err := svc.Regenerate(ctx, owner, a.ID, seedIP)
			if err != nil {
				logging.Fatal().Err(err).Msg("seed: regenerate dev key")
			}
			appID, key = a.ID, issued.Plaintext
			break
		}
	}
	if appID == "" {
		reg, err := svc.Register(ctx, owner, apikeyservice.RegisterInput{
			Name:        devAppName,
			Domain:      devAppDomain,
			Description: "Seeded for local development",
		}, seedIP)
		if err != nil {
			logging.Fatal().Err(err).Msg("seed: register dev app")
		}
		appID, key = reg.App.ID, reg.Issued.Plaintext
	}

	token, expiresAt, err := tokens.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		logging.Fatal().Err(err).Msg("seed: issue session token")
	}

	fmt.Printf("owner:    %s (%s)\n", user.ID, user.Email)
	fmt.Printf("app:      %s (%s)\n", appID, devAppName)
	fmt.Printf("api key:  %s\n", key)
	fmt.Printf("session:  %s\n", token)
	fmt.Printf("expires:  %s\n", expiresAt.Format(time.RFC3339))
}
