package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	nats "github.com/nats-io/nats.go"

	"github.com/trendyx/identity-service/config"
	httpadapter "github.com/trendyx/identity-service/internal/adapters/http"
	apiv1 "github.com/trendyx/identity-service/internal/adapters/http/api/v1"
	handlers "github.com/trendyx/identity-service/internal/adapters/http/api/v1/handlers"
	mw "github.com/trendyx/identity-service/internal/adapters/http/middleware"
	natsadapter "github.com/trendyx/identity-service/internal/adapters/nats"
	"github.com/trendyx/identity-service/internal/adapters/store"
	"github.com/trendyx/identity-service/internal/usecase"
	pkglog "github.com/trendyx/identity-service/pkg/log"
)

type App struct {
	cfg         *config.Config
	logger      pkglog.Logger
	store       *store.Store
	integration usecase.IntegrationService
	natsConn    *nats.Conn
	echo        *echo.Echo
}

func New(ctx context.Context) (*App, error) {
	cfg := config.MustLoad()
	logger := pkglog.New(cfg.AppEnv, cfg.LogLevel, cfg.AppName)

	st := store.New(cfg.DataDir, cfg.BackupRetention)
	if err := st.Load(); err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		conn, err := natsadapter.Connect(ctx, cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, events disabled")
		} else {
			nc = conn
		}
	}

	userRepo := store.NewUserRepository(st)
	profileRepo := store.NewProfileRepository(st)
	sessionRepo := store.NewSessionRepository(st)
	refreshRepo := store.NewRefreshTokenRepository(st)
	tokenRepo := store.NewIntegrationTokenRepository(st)
	pendingRepo := store.NewPendingSignupRepository(st)

	signer, err := usecase.NewJWTSigner(cfg)
	if err != nil {
		return nil, err
	}
	hasher := usecase.NewBcryptHasher(cfg.BcryptCost)
	lockout := usecase.NewLockoutTracker(cfg.LockoutAttempts, cfg.LockoutWindow)

	var events usecase.EventPublisher
	if nc != nil {
		events = natsadapter.NewEventPublisher(nc, cfg.NATSUserEventSubject)
	}

	authService := usecase.NewAuthService(cfg, pkglog.With(logger, pkglog.Fields{"component": "auth"}), userRepo, profileRepo, sessionRepo, refreshRepo, hasher, lockout, signer, st, events)
	integrationService := usecase.NewIntegrationService(cfg, pkglog.With(logger, pkglog.Fields{"component": "integration"}), authService, userRepo, profileRepo, tokenRepo, pendingRepo, hasher, st, events, st)

	authHandler := handlers.NewAuthHandler(authService)
	integrationHandler := handlers.NewIntegrationHandler(integrationService)
	authMW := mw.NewAuthMiddleware(signer)
	apiKeyMW := mw.NewAPIKeyMiddleware(cfg.IntegrationAPIKey)
	router := httpadapter.NewRouter(cfg, apiv1.NewRouter(authHandler, integrationHandler, authMW, apiKeyMW))

	if nc != nil {
		verifyHandler := natsadapter.NewVerifyHandler(signer)
		if err := verifyHandler.Subscribe(nc, cfg.NATSVerifySubject, cfg.AppName); err != nil {
			logger.Warn().Err(err).Msg("verify subscription failed")
		}
	}

	e := echo.New()
	router.Setup(e)

	return &App{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		integration: integrationService,
		natsConn:    nc,
		echo:        e,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	go a.autosaveLoop(ctx)
	go a.sweepLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.echo.Shutdown(shutdownCtx)
	}()
	go func() {
		errCh <- a.echo.Start(fmt.Sprintf("%s:%s", a.cfg.HTTPHost, a.cfg.HTTPPort))
	}()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// autosaveLoop persists the store on an interval. A failed autosave is
// logged and retried next tick; the synchronous saves on critical paths
// remain the durability guarantee.
func (a *App) autosaveLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.AutosaveEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.store.Save(); err != nil {
				a.logger.Error().Err(err).Msg("autosave failed")
			}
		}
	}
}

func (a *App) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.store.SweepSessions(a.cfg.SessionMaxIdle); n > 0 {
				a.logger.Info().Int("sessions", n).Msg("idle sessions swept")
			}
			a.integration.Cleanup(ctx)
		}
	}
}

func (a *App) Close() {
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
	}
	if err := a.store.Save(); err != nil {
		a.logger.Error().Err(err).Msg("final save failed")
	}
}
