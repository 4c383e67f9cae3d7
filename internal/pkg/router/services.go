package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CreatorStudio/app/controllers"
	"github.com/ManuelReschke/CreatorStudio/app/repository"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/billing"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/cache"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/credits"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/database"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/entitlements"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/env"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/generation"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/hcaptcha"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/imageprocessor"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/jobqueue"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/s3backup"
	"github.com/ManuelReschke/CreatorStudio/internal/pkg/statistics"
)

const DefaultPricingConfig = "config/pricing.yml"

// initializeControllers builds the services on top of the global database,
// Redis client and job queue, registers the job handlers and hands the
// controllers to the adapter functions.
func initializeControllers() {
	db := database.GetDB()
	rdb := cache.GetClient()

	tables, err := entitlements.LoadTables(env.GetEnv("PRICING_CONFIG", DefaultPricingConfig))
	if err != nil {
		log.Fatalf("Failed to load pricing config: %v", err)
	}

	repos := repository.NewRepositories(db)
	ledger := credits.NewLedgerFromDB(db, tables)
	billingService := billing.NewServiceFromDB(db, tables)

	manager := jobqueue.GetManager()
	queue := manager.GetQueue()

	gateway := generation.NewGateway(ledger, generation.NewFalClientFromEnv(), repos.Generation, generation.NewPoller())
	if archiver := newArchiver(queue, repos.Generation); archiver != nil {
		gateway.SetArchiver(archiver)
		manager.RegisterHandler(jobqueue.JobTypeAssetArchive, archiver.HandleArchiveJob)
	}

	videos := generation.NewVideoService(
		ledger,
		generation.NewWorkflowClientFromEnv(),
		repos.Generation,
		generation.NewRedisVideoStatusStore(rdb),
		queue,
		generation.VideoConfigFromEnv(),
	)
	manager.RegisterHandler(jobqueue.JobTypeVideoPoll, videos.HandlePollJob)

	stats := statistics.NewService(repos.User, repos.Generation, rdb)

	auth := controllers.NewAuthController(repos.User, repos.ProviderAccount, tables)
	if captcha := hcaptcha.NewVerifierFromEnv(); captcha != nil {
		auth.SetCaptcha(captcha)
		log.Info("Registration requires hCaptcha")
	}

	controllers.InitializeControllers(&controllers.Controllers{
		Auth:       auth,
		Credits:    controllers.NewCreditsController(ledger),
		Generation: controllers.NewGenerationController(gateway, repos.Generation),
		Video:      controllers.NewVideoController(videos, repos.Generation),
		User:       controllers.NewUserController(repos.User),
		Admin:      controllers.NewAdminController(repos.User, ledger, billingService, stats),
		Billing: controllers.NewBillingController(
			billingService,
			billing.NewPolarClientFromEnv(),
			repos.User,
			env.GetEnv("POLAR_WEBHOOK_SECRET", ""),
		),
	})
}

// newArchiver returns nil unless S3 archiving is enabled and reachable.
func newArchiver(queue *jobqueue.Queue, repo generation.ArchiveRepository) *generation.Archiver {
	cfg, err := s3backup.LoadConfig()
	if err != nil {
		log.Errorf("[Archive] Invalid S3 configuration, archiving disabled: %v", err)
		return nil
	}
	if !cfg.IsEnabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := s3backup.NewClient(ctx, cfg)
	if err != nil {
		log.Errorf("[Archive] Failed to create S3 client, archiving disabled: %v", err)
		return nil
	}
	log.Infof("[Archive] Archiving generations to bucket %s", cfg.GetBucketName())
	archiver := generation.NewArchiver(queue, repo, client)
	if thumbs := imageprocessor.NewThumbnailerFromEnv(); thumbs != nil {
		archiver.SetThumbnailer(thumbs)
	}
	return archiver
}
