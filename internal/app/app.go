package app

import (
	"context"
	"fmt"
	"log/slog"

	httpapp "github.com/lebowvsky/atelier-kaisla-sub001/internal/app/http"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/config"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/locker"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/logger/sl"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/repository"
	articles "github.com/lebowvsky/atelier-kaisla-sub001/internal/services/article_service"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/collection"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/coordinator"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/ingestion"
	listings "github.com/lebowvsky/atelier-kaisla-sub001/internal/services/listing_service"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/upsert"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/storage"
	filestorage "github.com/lebowvsky/atelier-kaisla-sub001/internal/storage/filestorage"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/storage/gcsstorage"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/storage/memstorage"
	redisstore "github.com/lebowvsky/atelier-kaisla-sub001/internal/storage/redis"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/storage/s3storage"
	httprouters "github.com/lebowvsky/atelier-kaisla-sub001/internal/transport/http"
)

type App struct {
	HTTPServer *httpapp.Server

	log     *slog.Logger
	repo    *repository.Repository
	closers []func() error
}

func New(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.New"

	repo, err := repository.NewRepository(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{log: log, repo: repo}

	backend, uploadsDir, err := a.newBackend(ctx, cfg.FileStorage)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	validator := ingestion.New(log, ingestion.Rules{
		MaxFileSize:       cfg.Ingestion.MaxFileSize,
		MaxFilesCreate:    cfg.Ingestion.MaxFilesCreate,
		MaxFilesPerEntity: cfg.Ingestion.MaxFilesPerEntity,
		AllowedTypes:      cfg.Ingestion.AllowedTypes,
		SniffContent:      !cfg.Ingestion.SkipContentSniff,
	})

	manager := collection.New(log, repo.Media, a.newLocker(ctx, cfg.Redis),
		cfg.Ingestion.DefaultCover(), cfg.Ingestion.MaxFilesPerEntity)
	coord := coordinator.New(log, backend, manager)
	core := upsert.New(log, validator, coord)

	routers := httprouters.NewRouter(log,
		listings.NewListingService(log, repo.Listings, core),
		articles.NewArticleService(log, repo.Articles, core),
		core,
	)

	a.HTTPServer = httpapp.New(log, httpapp.Options{
		Host:       cfg.HTTP.Host,
		Port:       cfg.HTTP.Port,
		BodyLimit:  cfg.HTTP.BodyLimit,
		Timeout:    cfg.HTTP.Timeout,
		UploadsDir: uploadsDir,
	}, routers)

	return a, nil
}

// newBackend возвращает хранилище и каталог для раздачи файлов (только для local)
func (a *App) newBackend(ctx context.Context, cfg config.FileStorageConfig) (storage.Backend, string, error) {
	const op = "app.newBackend"

	a.log.Info("initializing file storage", slog.String("backend", cfg.Backend))

	switch cfg.Backend {
	case config.BackendLocal:
		fs, err := filestorage.NewLocalFileStorage(cfg.BaseDir, cfg.BaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
		return fs, fs.GetBaseDir(), nil
	case config.BackendS3:
		s3, err := s3storage.NewFromOptions(ctx, s3storage.Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			Prefix:    cfg.S3.Prefix,
			PublicURL: cfg.S3.PublicURL,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
		return s3, "", nil
	case config.BackendGCS:
		gcs, err := gcsstorage.New(ctx, gcsstorage.Options{
			Bucket:          cfg.GCS.Bucket,
			Prefix:          cfg.GCS.Prefix,
			PublicURL:       cfg.GCS.PublicURL,
			CredentialsFile: cfg.GCS.CredentialsFile,
		})
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, gcs.Close)
		return gcs, "", nil
	case config.BackendMemory:
		a.log.Warn("memory file storage selected, files are lost on restart")
		return memstorage.New(cfg.BaseURL), "", nil
	default:
		return nil, "", fmt.Errorf("%s: unknown backend %q", op, cfg.Backend)
	}
}

func (a *App) newLocker(ctx context.Context, cfg config.RedisConf) locker.Locker {
	if cfg.RedisAddr == "" {
		a.log.Info("using in-process parent locks")
		return locker.New()
	}

	client := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := client.HealthCheck(ctx); err != nil {
		a.log.Warn("redis is not reachable yet", sl.Err(err))
	}
	a.closers = append(a.closers, client.Close)

	a.log.Info("using redis parent locks", slog.String("addr", cfg.RedisAddr))

	return redisstore.NewLocker(a.log, client, cfg.LockTTL)
}

func (a *App) Stop() {
	const op = "app.Stop"

	if err := a.HTTPServer.Stop(); err != nil {
		a.log.Error("failed to stop http server", slog.String("op", op), sl.Err(err))
	}

	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.log.Error("failed to close resource", slog.String("op", op), sl.Err(err))
		}
	}

	a.repo.Close()
}
