package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/gnap-auth/internal/clientdirectory"
	"github.com/smallbiznis/gnap-auth/internal/config"
	httptransport "github.com/smallbiznis/gnap-auth/internal/http"
	"github.com/smallbiznis/gnap-auth/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/gnap-auth/internal/http/middleware"
	"github.com/smallbiznis/gnap-auth/internal/repository"
	"github.com/smallbiznis/gnap-auth/internal/server"
	"github.com/smallbiznis/gnap-auth/internal/service/access"
	"github.com/smallbiznis/gnap-auth/internal/service/grant"
	"github.com/smallbiznis/gnap-auth/internal/service/interaction"
	"github.com/smallbiznis/gnap-auth/internal/service/token"
	"github.com/smallbiznis/gnap-auth/internal/service/webhook"
	"github.com/smallbiznis/gnap-auth/internal/telemetry"
	"github.com/smallbiznis/gnap-auth/internal/tenant"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newPGXPool,
			newDB,
			newGrantRepository,
			newAccessRepository,
			newSubjectRepository,
			newInteractionRepository,
			newAccessTokenRepository,
			newWebhookEventRepository,
			newTenantRepository,
			tenant.NewResolver,
			newClientDirectory,
			newRegistrar,
			newInteractionCoordinator,
			newTokenIssuer,
			newGrantService,
			newWebhookNotifier,
			newGrantHandler,
			newTokenHandler,
			newInteractionHandler,
			newSignatureMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startWebhookWorkers, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func useTelemetry(provider *telemetry.Provider) {}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newDB(pool *pgxpool.Pool) repository.DB {
	return pool
}

func newGrantRepository(pool *pgxpool.Pool) repository.GrantRepository {
	return repository.NewPostgresGrantRepo(pool)
}

func newAccessRepository(pool *pgxpool.Pool) repository.AccessRepository {
	return repository.NewPostgresAccessRepo(pool)
}

func newSubjectRepository(pool *pgxpool.Pool) repository.SubjectRepository {
	return repository.NewPostgresSubjectRepo(pool)
}

func newInteractionRepository(pool *pgxpool.Pool) repository.InteractionRepository {
	return repository.NewPostgresInteractionRepo(pool)
}

func newAccessTokenRepository(pool *pgxpool.Pool) repository.AccessTokenRepository {
	return repository.NewPostgresAccessTokenRepo(pool)
}

func newWebhookEventRepository(pool *pgxpool.Pool) repository.WebhookEventRepository {
	return repository.NewPostgresWebhookEventRepo(pool)
}

func newTenantRepository(pool *pgxpool.Pool) repository.TenantRepository {
	return repository.NewPostgresTenantRepo(pool)
}

func newClientDirectory(cfg config.Config) clientdirectory.Directory {
	return clientdirectory.NewHTTPDirectory(10 * time.Second)
}

func newRegistrar(accesses repository.AccessRepository, subjects repository.SubjectRepository) *access.Registrar {
	return access.NewRegistrar(accesses, subjects)
}

func newInteractionCoordinator(interactions repository.InteractionRepository, cfg config.Config) *interaction.Coordinator {
	return interaction.NewCoordinator(interactions, cfg.InteractionExpiry, cfg.AuthServerURL)
}

func newTokenIssuer(
	db repository.DB,
	tokens repository.AccessTokenRepository,
	accesses repository.AccessRepository,
	grants repository.GrantRepository,
	webhooks repository.WebhookEventRepository,
	cfg config.Config,
) *token.Issuer {
	return token.NewIssuer(db, tokens, accesses, grants, webhooks, cfg.AccessTokenExpiry, cfg.AccessTokenBytes)
}

func newGrantService(
	db repository.DB,
	grants repository.GrantRepository,
	tokens repository.AccessTokenRepository,
	webhooks repository.WebhookEventRepository,
	registrar *access.Registrar,
	coordinator *interaction.Coordinator,
	issuer *token.Issuer,
	cfg config.Config,
) *grant.Service {
	return grant.NewService(db, grants, tokens, webhooks, registrar, coordinator, issuer, cfg.ContinueWait)
}

func newWebhookNotifier(db repository.DB, events repository.WebhookEventRepository, cfg config.Config) *webhook.Notifier {
	return webhook.NewNotifier(db, events,
		cfg.WebhookURL, cfg.WebhookSecret,
		cfg.WebhookTimeout, cfg.WebhookMaxRetry,
		cfg.WebhookBackoff, cfg.WebhookPollInterval,
		cfg.WebhookWorkers,
	)
}

func newGrantHandler(grants *grant.Service, cfg config.Config) *handler.GrantHandler {
	return handler.NewGrantHandler(grants, cfg.AuthServerURL, cfg.WaitSeconds())
}

func newTokenHandler(issuer *token.Issuer, directory clientdirectory.Directory, cfg config.Config) *handler.TokenHandler {
	return handler.NewTokenHandler(issuer, directory, cfg.AuthServerURL)
}

func newInteractionHandler(grants *grant.Service, coordinator *interaction.Coordinator, registrar *access.Registrar, directory clientdirectory.Directory) *handler.InteractionHandler {
	return handler.NewInteractionHandler(grants, coordinator, registrar, directory)
}

func newSignatureMiddleware(directory clientdirectory.Directory, grants *grant.Service, issuer *token.Issuer) *httpmiddleware.Signature {
	return httpmiddleware.NewSignature(directory, grants, issuer)
}

func startWebhookWorkers(lc fx.Lifecycle, notifier *webhook.Notifier) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				notifier.Run(runCtx)
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
