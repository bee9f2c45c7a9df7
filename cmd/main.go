package main

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/dialecticlabs/dialectic-backend/internal/app"
	"github.com/dialecticlabs/dialectic-backend/internal/assembler"
	"github.com/dialecticlabs/dialectic-backend/internal/db"
	"github.com/dialecticlabs/dialectic-backend/internal/handlers"
	"github.com/dialecticlabs/dialectic-backend/internal/logger"
	"github.com/dialecticlabs/dialectic-backend/internal/observability"
	"github.com/dialecticlabs/dialectic-backend/internal/repos"
	"github.com/dialecticlabs/dialectic-backend/internal/server"
	"github.com/dialecticlabs/dialectic-backend/internal/services"
)

func main() {
	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := app.Load(log)
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err.Error())
	}

	ctx := context.Background()
	shutdownTracing, err := observability.Setup(ctx, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err.Error())
	}
	defer func() { _ = shutdownTracing(ctx) }()

	dbSvc, err := db.NewService(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err.Error())
	}
	defer dbSvc.Close()
	if err := dbSvc.AutoMigrateAll(); err != nil {
		log.Fatal("Failed to run migrations", "error", err.Error())
	}

	bucket, err := services.NewBucketService(ctx, cfg.GCPCredentialsFile, log)
	if err != nil {
		log.Fatal("Failed to create bucket service", "error", err.Error())
	}
	defer bucket.Close()

	var objects services.BucketService = bucket
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		objects = services.NewCachedBucketService(bucket, rdb, cfg.BlobCacheTTL(), log)
	}

	contributionRepo := repos.NewContributionRepo(dbSvc.DB, log)
	feedbackRepo := repos.NewFeedbackRepo(dbSvc.DB, log)
	stageRepo := repos.NewStageRepo(dbSvc.DB, log)
	stepRepo := repos.NewRecipeStepRepo(dbSvc.DB, log)
	templateRepo := repos.NewTemplateRepo(dbSvc.DB, log)
	providerRepo := repos.NewModelProviderRepo(dbSvc.DB, log)
	sessionRepo := repos.NewSessionRepo(dbSvc.DB, log)
	resourceRepo := repos.NewProjectResourceRepo(dbSvc.DB, log)

	fileSvc := services.NewFileService(cfg.StorageBucket, objects, resourceRepo, log)
	asm := assembler.New(log, assembler.Deps{
		Contributions: contributionRepo,
		Feedback:      feedbackRepo,
		Stages:        stageRepo,
		Templates:     templateRepo,
		Models:        providerRepo,
		Objects:       objects,
		Artifacts:     fileSvc,
	})
	assemblySvc := services.NewAssemblyService(sessionRepo, stageRepo, stepRepo, templateRepo, asm, log)

	router := server.NewRouter(handlers.NewAssemblyHandler(assemblySvc, log), cfg.JWTSecret, cfg.AllowedOrigins, log)
	log.Info("Starting server", "addr", cfg.ServerAddr)
	if err := router.Run(cfg.ServerAddr); err != nil {
		log.Fatal("Server exited", "error", err.Error())
	}
}
