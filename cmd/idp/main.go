package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campuskit/idp/internal/app"
	"github.com/campuskit/idp/internal/cache"
	"github.com/campuskit/idp/internal/clients"
	"github.com/campuskit/idp/internal/codes"
	"github.com/campuskit/idp/internal/config"
	httpserver "github.com/campuskit/idp/internal/http"
	"github.com/campuskit/idp/internal/http/handlers"
	"github.com/campuskit/idp/internal/keys"
	"github.com/campuskit/idp/internal/observability/logger"
	"github.com/campuskit/idp/internal/rate"
	"github.com/campuskit/idp/internal/refresh"
	"github.com/campuskit/idp/internal/store/core"
	"github.com/campuskit/idp/internal/store/memory"
	"github.com/campuskit/idp/internal/store/pg"
	"github.com/campuskit/idp/internal/token"
	"github.com/campuskit/idp/internal/util"
)

func main() {
	var (
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (opcional)")
		flagConfigPath = flag.String("config", "", "ruta a config.yaml; sin flag usa env/defaults")
		flagMigrate    = flag.Bool("migrate", true, "aplicar migraciones embebidas al arrancar (postgres)")
	)
	flag.Parse()

	if *flagEnvFile != "" {
		_ = godotenv.Load(*flagEnvFile)
	}

	var cfg *config.Config
	var err error
	if *flagConfigPath != "" {
		cfg, err = config.Load(*flagConfigPath)
	} else {
		cfg = config.Default()
	}
	if err != nil {
		// logger aún no inicializado
		panic("config: " + err.Error())
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "idp",
		Version:     os.Getenv("SERVICE_VERSION"),
	})
	defer logger.Sync()
	log := logger.Named("main")

	if err := cfg.Validate(); err != nil {
		log.Fatal("config inválida", zap.Error(err))
	}

	// Clave de firma: fail-fast, sin clave no hay IdP
	kp, err := keys.Load(cfg.Keys.PrivateKeyPath, cfg.Keys.PrivateKeyPEM)
	if err != nil {
		log.Fatal("no se pudo cargar la clave de firma", zap.Error(err))
	}
	log.Info("clave de firma cargada", zap.String("kid", kp.KID()), zap.String("alg", keys.Alg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	var repo core.Repository
	switch cfg.Storage.Driver {
	case "postgres":
		log.Info("conectando a postgres", zap.String("dsn", util.MaskDSN(cfg.Storage.DSN)))
		pgStore, err := pg.New(ctx, cfg.Storage.DSN, pg.Tuning{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			log.Fatal("postgres", zap.Error(err))
		}
		if *flagMigrate {
			if err := pgStore.Migrate(ctx); err != nil {
				log.Fatal("migraciones", zap.Error(err))
			}
		}
		repo = pgStore
	default:
		repo = memory.New()
	}
	defer repo.Close()

	// Cache (codes + material efímero)
	cacheClient, err := cache.New(cache.Config{
		Kind:     cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		log.Fatal("cache", zap.Error(err))
	}
	defer cacheClient.Close()

	c := &app.Container{
		Store:    repo,
		Cache:    cacheClient,
		Issuer:   token.NewIssuer(cfg.OAuth.Issuer, kp, cfg.AccessTTL()),
		Registry: clients.NewRegistry(repo),
		Codes:    codes.New(cacheClient, cfg.CodeTTL()),
		Refresh:  refresh.NewEngine(repo, cfg.RefreshTTL()),
	}

	// Throttling del endpoint de tokens (opcional)
	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		if cfg.Cache.Kind == "redis" {
			limiter = rate.NewRedisLimiter(rdb.NewClient(&rdb.Options{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
			}), cfg.Cache.Redis.Prefix+":rl:", cfg.Rate.Max, cfg.RateWindow())
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.Max, cfg.RateWindow())
		}
	}

	router, err := httpserver.NewRouter(httpserver.Handlers{
		Readyz:     handlers.NewReadyzHandler(c),
		Discovery:  handlers.NewOIDCDiscoveryHandler(c),
		JWKS:       handlers.NewJWKSHandler(kp.JWKSJSON()),
		Token:      handlers.NewOAuthTokenHandler(c),
		Introspect: handlers.NewOAuthIntrospectHandler(c),
		Revoke:     handlers.NewOAuthRevokeHandler(c),
		UserInfo:   handlers.NewUserInfoHandler(c),
	}, limiter, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("router", zap.Error(err))
	}

	srv := httpserver.NewServer(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("idp escuchando",
			zap.String("addr", cfg.Server.Addr),
			zap.String("issuer", cfg.OAuth.Issuer),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("cache", cfg.Cache.Kind),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("apagando, drenando conexiones")
		return httpserver.Shutdown(srv, 15*time.Second)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server", zap.Error(err))
	}
	log.Info("fin")
}
