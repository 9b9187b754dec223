package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/craftfolio/backend/api/bus"
	_redis "github.com/craftfolio/backend/api/cache/redis"
	"github.com/craftfolio/backend/api/config"
	handler "github.com/craftfolio/backend/api/handler"
	auth "github.com/craftfolio/backend/api/handler/auth"
	"github.com/craftfolio/backend/api/notify"
	"github.com/craftfolio/backend/api/repository"
	_pg "github.com/craftfolio/backend/api/repository/pg"
	storepg "github.com/craftfolio/backend/api/store/pg"
	util "github.com/craftfolio/backend/api/util"
)

func initDatabase(cfg *config.Config) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL())
	if err != nil {
		log.Fatalln("Unable to parse database url. error:", err)
	}

	poolConfig.ConnConfig.Logger = &util.DatabaseLogger{}
	poolConfig.ConnConfig.LogLevel = pgx.LogLevelDebug

	ctx, cancel := util.GetContextWithTimeout(context.Background())
	defer cancel()
	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		log.Fatalln("Unable to create connection pool. error:", err)
	}

	queries := []string{
		storepg.CreateUserTable(),
		storepg.CreateProjectTable(),
		storepg.CreateContactTable(),
		storepg.CreateFinancialsTable(),
		storepg.CreateStatusHistoryTable(),
		storepg.CreateFinancialReportTable(),
	}

	for _, q := range queries {
		ctx, cancel := util.GetContextWithTimeout(context.Background())
		defer cancel()
		if _, err := pool.Exec(ctx, q); err != nil {
			log.Fatalln(err)
		}
	}

	return pool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalln(err)
	}

	pool := initDatabase(cfg)
	defer pool.Close()

	userRepo := _pg.NewUserPostgresRepository(pool)
	recordStore := storepg.NewPostgresRecordStore(pool)

	reportCache := _redis.NewReportRedisCache(
		_redis.NewClient(cfg.Redis.Addr, _redis.REDIS_DATABASE_REPORTS, "Reports"),
	)
	authCache := _redis.NewAuthRedisCache(
		_redis.NewClient(cfg.Redis.Addr, _redis.REDIS_DATABASE_AUTH, "Auth"),
		cfg.Auth.TokenExpiry,
	)

	invalidationBus := bus.New()
	if cfg.FCM.CredentialsFile != "" {
		ctx, cancel := util.GetContextWithTimeout(context.Background())
		notifier, err := notify.NewFCMNotifier(ctx, cfg.FCM.CredentialsFile)
		cancel()
		if err != nil {
			log.Fatalln("Unable to init FCM. error:", err)
		}
		invalidationBus.SubscribeAll(notifier.Notify)
	}

	coordinator := repository.NewCoordinator(recordStore, reportCache, invalidationBus)
	projectRepo := repository.NewProjectAggregateRepository(recordStore, coordinator)

	r := mux.NewRouter()

	authHandler := auth.NewGithubOAuth2Handler(
		r,
		userRepo,
		authCache,
		cfg.Auth.ClientSecret,
		cfg.Auth.ClientID,
		cfg.Auth.SessionKey,
		cfg.Auth.AdminEmail,
		cfg.Auth.Private,
		cfg.Server.APIPath,
		"/oauth2",
	)

	handler.NewProjectHandler(
		r,
		authHandler.Middleware,
		projectRepo,
		userRepo,
	)

	handler.NewUserHandler(
		r,
		authHandler.Middleware,
		userRepo,
	)

	handler.NewReportHandler(
		r,
		authHandler.Middleware,
		projectRepo,
		reportCache,
	)

	h := handlers.CORS(
		handlers.AllowedOrigins(cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(r)
	h = handlers.LoggingHandler(os.Stdout, h)

	log.Fatal(http.ListenAndServe(cfg.Server.ListenAddr, h))
}
