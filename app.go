package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/hibiken/asynq"
	"google.golang.org/api/option"

	"line-comicbot/config"
	"line-comicbot/dispatch"
	"line-comicbot/gemini"
	"line-comicbot/linebot"
	"line-comicbot/pipeline"
	"line-comicbot/pkg/gallery"
	"line-comicbot/server"
	"line-comicbot/storage"
)

const (
	defaultDrainTimeout      = 5 * time.Minute
	galleryRequestsPerMinute = 60
)

// app holds the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *storage.Store
	pipeline *pipeline.Pipeline
	filesDir string
	closers  []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	bucket, err := a.openBucket(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = storage.New(bucket, logger)

	var messenger pipeline.Messenger
	if cfg.MockLINE {
		logger.Info("Mock LINE mode enabled, messages are logged only")
		messenger = linebot.NewMockClient(filepath.Join(cfg.LocalStorage, "mock-content"), logger)
	} else {
		client, err := linebot.New(cfg.LineAccessToken, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		messenger = client
	}

	ai := gemini.New(gemini.Config{
		APIKey:         cfg.GeminiAPIKey,
		BaseURL:        cfg.GeminiBaseURL,
		TransformModel: cfg.GeminiTransformModel,
		AnalysisModel:  cfg.GeminiAnalysisModel,
		Timeout:        cfg.GeminiTimeout,
	}, logger)

	a.pipeline = pipeline.New(&pipeline.Config{
		Messenger:           messenger,
		AI:                  ai,
		Store:               a.store,
		Logger:              logger,
		Links:               gallery.Links{BaseURL: cfg.LIFFBaseURL, LIFFID: cfg.LIFFID},
		IsNotFound:          storage.IsNotFound,
		GateOnPoseDetection: cfg.GateOnPoseDetection,
		EchoText:            cfg.EchoText,
		LoadingSeconds:      linebot.ClampLoadingSeconds(cfg.LoadingSeconds),
		MaxImageEdge:        cfg.MaxImageEdge,
		Timeout:             cfg.WorkflowTimeout,
	})
	return a, nil
}

// openBucket selects S3, GCS or the local directory, in that order.
func (a *app) openBucket(ctx context.Context) (storage.Bucket, error) {
	cfg := a.cfg
	switch cfg.Backend() {
	case config.BackendS3:
		b, err := storage.NewS3Bucket(storage.S3Config{
			Endpoint:   cfg.S3Endpoint,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Region:     cfg.S3Region,
			Bucket:     cfg.StorageBucket,
			PublicBase: cfg.PublicBaseURL,
			UseSSL:     cfg.S3UseSSL,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		if err := b.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
		a.logger.Info("Using S3 storage", "endpoint", cfg.S3Endpoint, "bucket", cfg.StorageBucket)
		return b, nil

	case config.BackendGCS:
		var opts []option.ClientOption
		if cfg.GoogleCredentialsJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GoogleCredentialsJSON)))
		}
		client, err := gcs.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("init storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.logger.Info("Using Cloud Storage", "bucket", cfg.StorageBucket)
		return storage.NewGCSBucket(client, cfg.StorageBucket, cfg.PublicBaseURL, a.logger), nil

	default:
		baseURL := cfg.PublicBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:" + cfg.Port
		}
		b, err := storage.NewLocalBucket(cfg.LocalStorage, baseURL, a.logger)
		if err != nil {
			return nil, err
		}
		a.filesDir = b.Dir()
		a.logger.Info("Running with local storage", "storage_path", b.Dir())
		return b, nil
	}
}

func (a *app) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}
}

// serve runs the HTTP server until ctx is cancelled, then drains in-process jobs.
func (a *app) serve(ctx context.Context) error {
	var dispatcher server.Dispatcher
	var local *dispatch.Local
	if a.cfg.UseQueue() {
		client := asynq.NewClient(a.redisOpt())
		a.closers = append(a.closers, client.Close)
		dispatcher = dispatch.NewQueue(client, a.cfg.WorkflowTimeout, a.logger)
		a.logger.Info("Dispatching jobs to Redis queue", "addr", a.cfg.RedisAddr)
	} else {
		local = dispatch.NewLocal(a.pipeline, a.logger)
		dispatcher = local
	}

	srv := server.New(&server.Config{
		Dispatcher:    dispatcher,
		Gallery:       a.store,
		Logger:        a.logger,
		ChannelSecret: a.cfg.LineChannelSecret,
		FilesDir:      a.filesDir,
		GalleryLimit:  galleryRequestsPerMinute,
	})
	err := srv.Run(ctx, a.cfg.Port)

	if local != nil {
		drain := a.cfg.WorkflowTimeout
		if drain <= 0 {
			drain = defaultDrainTimeout
		}
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drain)
		defer cancel()
		if werr := local.Wait(drainCtx); werr != nil {
			err = errors.Join(err, fmt.Errorf("drain jobs: %w", werr))
		}
	}
	return err
}

// work consumes the Redis queue until ctx is cancelled.
func (a *app) work(ctx context.Context) error {
	if !a.cfg.UseQueue() {
		return errors.New("worker requires REDIS_ADDR")
	}
	srv := asynq.NewServer(a.redisOpt(), asynq.Config{
		Concurrency: a.cfg.WorkerConcurrency,
	})
	worker := dispatch.NewWorker(a.pipeline, a.logger)

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	a.logger.Info("Starting queue worker", "addr", a.cfg.RedisAddr, "concurrency", a.cfg.WorkerConcurrency)
	if err := srv.Run(worker.Handler()); err != nil {
		return fmt.Errorf("run worker: %w", err)
	}
	return nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil && a.logger != nil {
			a.logger.Warn("Failed to close resource", "error", err)
		}
	}
}
