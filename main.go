package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/parallax/reboot-hackathon-2025/internal/api"
	"github.com/parallax/reboot-hackathon-2025/internal/cache"
	"github.com/parallax/reboot-hackathon-2025/internal/config"
	"github.com/parallax/reboot-hackathon-2025/internal/db"
	"github.com/parallax/reboot-hackathon-2025/internal/email"
	"github.com/parallax/reboot-hackathon-2025/internal/events"
	"github.com/parallax/reboot-hackathon-2025/internal/logging"
	"github.com/parallax/reboot-hackathon-2025/internal/services"
	"github.com/parallax/reboot-hackathon-2025/internal/storage"
	"github.com/parallax/reboot-hackathon-2025/internal/tasks"
	"github.com/parallax/reboot-hackathon-2025/internal/telemetry"
)

const serviceName = "swapable"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var runMode string

	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Swapable marketplace API and workers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), runMode)
		},
	}
	cmd.Flags().StringVarP(&runMode, "mode", "m", "all", "Run mode: 'api', 'bg' (background tasks), 'img' (image processing), 'all'")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newSeedTagsCommand())
	cmd.AddCommand(newSeedTemplatesCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	var runMode string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API and/or background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), runMode)
		},
	}
	cmd.Flags().StringVarP(&runMode, "mode", "m", "all", "Run mode: 'api', 'bg' (background tasks), 'img' (image processing), 'all'")
	return cmd
}

func newSeedTagsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-tags [name...]",
		Short: "Insert the default tags (or the given names) if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = services.DefaultTagNames
			}
			return withDatabase(cmd.Context(), func(ctx context.Context, cfg *config.Config, database *mongo.Database) error {
				inserted, err := services.NewTagService(database, nil, cfg).SeedTags(ctx, names)
				if err != nil {
					return err
				}
				log.Info().Int("inserted", inserted).Int("requested", len(names)).Msg("Tags seeded")
				return nil
			})
		},
	}
}

func newSeedTemplatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-templates",
		Short: "Write the built-in email templates to MongoDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, cfg *config.Config, database *mongo.Database) error {
				templateService := services.NewEmailTemplateService(database)
				templates := services.DefaultTemplates()
				for i := range templates {
					if err := templateService.SaveTemplate(ctx, &templates[i]); err != nil {
						return err
					}
				}
				log.Info().Int("templates", len(templates)).Msg("Email templates seeded")
				return nil
			})
		},
	}
}

// withDatabase runs fn against a connected database for one-off commands.
func withDatabase(ctx context.Context, fn func(context.Context, *config.Config, *mongo.Database) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(ctx, "cli")
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, os.Stderr)

	client, database, err := db.ConnectDB(ctx, cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.DisconnectDB(client); err != nil {
			log.Error().Err(err).Msg("Error disconnecting from MongoDB")
		}
	}()

	if err := db.EnsureIndexes(ctx, database); err != nil {
		return err
	}
	return fn(ctx, cfg, database)
}

// newEmailSender picks the primary sender from MOCK_SERVICES and adds the
// file logger when LOG_EMAILS is set.
func newEmailSender(cfg *config.Config, redisClient redis.Cmdable) email.Sender {
	var primaryEmailSender email.Sender
	if cfg.MockServices {
		log.Info().Msg("MOCK_SERVICES enabled: using Redis email sender")
		primaryEmailSender = email.NewRedisSender(redisClient, cfg)
	} else {
		primaryEmailSender = email.NewSMTPSender(cfg)
	}

	compositeSender := email.NewCompositeEmailSender(primaryEmailSender)
	if cfg.LogEmails != "" {
		fileSender, err := email.NewFileEmailSender(cfg.LogEmails)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.LogEmails).Msg("Failed to initialize file email sender, continuing without it")
		} else {
			compositeSender.AddSender(fileSender)
			log.Info().Str("path", cfg.LogEmails).Msg("File email logger enabled")
		}
	}
	return compositeSender
}

func newPublisher(cfg *config.Config) (events.Publisher, func()) {
	if cfg.NatsURL == "" {
		return events.Noop{}, func() {}
	}
	bus, err := events.New(cfg.NatsURL)
	if err != nil {
		log.Warn().Err(err).Msg("NATS unavailable, offer events will not be published")
		return events.Noop{}, func() {}
	}
	return bus, bus.Close
}

func serve(ctx context.Context, runMode string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var runAPI, runBg, runImages bool
	switch runMode {
	case "api":
		runAPI = true
	case "bg":
		runBg = true
	case "img":
		runImages = true
	case "all":
		runAPI, runBg, runImages = true, true, true
	default:
		return fmt.Errorf("invalid run mode %q", runMode)
	}

	cfg, err := config.Load(ctx, runMode)
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error().Err(err).Msg("Tracer shutdown failed")
		}
	}()

	mongoClient, mongoDb, err := db.ConnectDB(ctx, cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Error().Err(err).Msg("Error disconnecting from MongoDB")
		}
	}()
	if err := db.EnsureIndexes(ctx, mongoDb); err != nil {
		return err
	}

	redisClient, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Error().Err(err).Msg("Error disconnecting from Redis")
		}
	}()

	s3Client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		return err
	}
	s3StorageService := storage.NewS3Storage(cfg, s3Client)

	publisher, closePublisher := newPublisher(cfg)
	defer closePublisher()

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()

	tagService := services.NewTagService(mongoDb, redisClient, cfg)
	userService := services.NewUserService(mongoDb, redisClient, cfg)
	itemService := services.NewItemService(mongoDb, cfg, tagService, userService)
	offerService := services.NewOfferService(
		cfg,
		services.NewOfferRepository(mongoDb),
		itemService,
		userService,
		tasks.NewOfferNotifier(taskClient, cfg),
		publisher,
	)
	emailTemplateService := services.NewEmailTemplateService(mongoDb)
	taskProcessor := tasks.NewTaskProcessor(cfg, newEmailSender(cfg, redisClient), emailTemplateService, itemService, s3Client)

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(cfg, redisClient, shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("port", cfg.ServiceApiPort).Msg("Service API listening")
		if err := serviceSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Service API stopped unexpectedly")
			stop()
		}
	}()

	var mainApiSrv *http.Server
	if runAPI {
		router := api.SetupRouter(ctx, cfg, api.Dependencies{
			TaskClient: taskClient,
			Users:      userService,
			Items:      itemService,
			Offers:     offerService,
			Tags:       tagService,
			Storage:    s3StorageService,
		})
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: telemetry.WrapHandler(router, serviceName),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Str("port", cfg.ApiPort).Msg("Main API listening")
			if err := mainApiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Main API stopped unexpectedly")
				stop()
			}
		}()
	}

	var taskSrv *asynq.Server
	var startErr error
	if srv, mux := tasks.SetupServer(redisClient, taskProcessor, runImages, runBg); srv != nil {
		if err := srv.Start(mux); err != nil {
			startErr = fmt.Errorf("failed to start task server: %w", err)
		} else {
			taskSrv = srv
			log.Info().Bool("background", runBg).Bool("images", runImages).Msg("Task server started")
		}
	}

	if startErr == nil {
		log.Info().Str("mode", runMode).Msg("Application started")

		select {
		case <-ctx.Done():
			log.Info().Msg("Received signal, shutting down gracefully")
		case <-shutdownChan:
			log.Info().Msg("Shutdown requested via service API")
		}
	} else {
		log.Error().Err(startErr).Msg("Startup failed, stopping servers")
	}

	stopServers(15*time.Second, taskSrv, serviceSrv, mainApiSrv)
	wg.Wait()
	if startErr != nil {
		return startErr
	}
	log.Info().Msg("Server gracefully stopped")
	return nil
}

// stopServers gracefully shuts down the HTTP servers (nil entries are skipped)
// and then the task server.
func stopServers(timeout time.Duration, taskSrv *asynq.Server, servers ...*http.Server) {
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), timeout)
	defer cancelShutdown()

	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Str("addr", srv.Addr).Msg("HTTP server shutdown error")
		}
	}
	if taskSrv != nil {
		taskSrv.Shutdown()
	}
}
