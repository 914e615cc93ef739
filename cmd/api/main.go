package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"civicconnect.org/internal/auth"
	"civicconnect.org/internal/config"
	"civicconnect.org/internal/httpapi"
	"civicconnect.org/internal/media"
	"civicconnect.org/internal/obs"
	"civicconnect.org/internal/report"
	"civicconnect.org/internal/store/pg"
	"civicconnect.org/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := obs.Logger()
		l.Fatal().Err(err).Msg("load config")
	}

	// Observability: logger, metric registration, build info.
	obs.Configure(cfg.Debug)
	obs.Init()
	obs.InitBuildInfo(version, commit)
	stream.Register()
	auth.Register()
	log := obs.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := stream.New()
	var (
		reports  report.Store
		accounts auth.Store
		ready    httpapi.ReadyProbe
		store    *pg.Store
	)
	if cfg.PGDSN != "" {
		store, err = pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("open db")
		}
		defer store.Close()
		reports, accounts, ready = store, store, httpapi.ReadyProbe{DB: store.DB()}

		// Row changes come back through LISTEN/NOTIFY so that writes from
		// other instances reach our subscribers too.
		listener := pg.NewListener(cfg.PGDSN, hub.Publish, store.Get, log.With().Str("component", "listener").Logger())
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("change listener stopped")
			}
		}()
	} else {
		log.Warn().Msg("CIVIC_PG_DSN not set, using in-memory stores")
		reports = report.NewInMemory(report.WithChangeHook(hub.Publish))
		accounts = auth.NewMemoryStore()
	}

	tokens, err := auth.NewTokens(cfg.AuthSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("token issuer")
	}
	policy := auth.FailOpen
	if cfg.RoleFailClosed {
		policy = auth.FailClosed
	}
	opts := []auth.ServiceOption{auth.WithLogger(log)}
	if cfg.GoogleClientID != "" {
		opts = append(opts, auth.WithFederated(auth.NewGoogleVerifier(cfg.GoogleClientID)))
	}
	svc := auth.NewService(accounts, tokens, auth.NewRoleResolver(accounts, policy, log), opts...)

	var (
		storage    media.Storage
		mediaFiles *media.Memory
	)
	if cfg.GCSBucket != "" {
		gcs, err := media.NewGCS(ctx, cfg.GCSBucket, log)
		if err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.GCSBucket).Msg("open media bucket")
		}
		defer gcs.Close()
		storage = gcs
	} else {
		mediaFiles = media.NewMemory(cfg.MediaBaseURL)
		storage = mediaFiles
	}

	api := httpapi.New(httpapi.Deps{
		Reports:    reports,
		Auth:       svc,
		Hub:        hub,
		Media:      storage,
		MediaFiles: mediaFiles,
		Ready:      ready,
		Version:    version,
		Logger:     log,
		RateBurst:  cfg.RateBurst,
		RatePerSec: cfg.RatePerSec,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: realtime streams stay open until shutdown.
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("grpc listen")
		}
		grpcSrv = grpc.NewServer()
		health := httpapi.NewGRPCHealth(grpcSrv, ready)
		go health.Watch(ctx)
		go func() {
			log.Info().Str("addr", cfg.GRPCAddr).Msg("grpc health listening")
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				log.Error().Err(err).Msg("grpc serve")
			}
		}()
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Bool("postgres", store != nil).
			Str("role_policy", policy.String()).Msg("starting civicconnect-api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("stopped")
}
