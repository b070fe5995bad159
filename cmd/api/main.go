package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/packhouse/api/internal/di"
	"github.com/packhouse/api/internal/handlers"
	"github.com/packhouse/api/internal/labels"
	"github.com/packhouse/api/internal/platform/auth"
	"github.com/packhouse/api/internal/platform/config"
	pfirestore "github.com/packhouse/api/internal/platform/firestore"
	"github.com/packhouse/api/internal/platform/idempotency"
	"github.com/packhouse/api/internal/platform/jobs"
	"github.com/packhouse/api/internal/platform/observability"
	"github.com/packhouse/api/internal/platform/secrets"
	platformstorage "github.com/packhouse/api/internal/platform/storage"
	"github.com/packhouse/api/internal/platform/textutil"
	"github.com/packhouse/api/internal/repositories"
	firestoreRepo "github.com/packhouse/api/internal/repositories/firestore"
	"github.com/packhouse/api/internal/repositories/sheets"
	"github.com/packhouse/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()
	issueTopic := pubsubClient.Topic(cfg.PubSub.IssueTopic)
	defer issueTopic.Stop()

	issuePublisher, err := jobs.NewPubSubIssuePublisher(issueTopic)
	if err != nil {
		logger.Fatal("failed to initialise issue publisher", zap.Error(err))
	}

	exportStore, storageClose := newExportStore(ctx, logger, cfg)
	if storageClose != nil {
		defer storageClose()
	}

	catalogSource, err := newCatalogSource(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise catalog source", zap.Error(err))
	}

	snapshotRepo, err := firestoreRepo.NewCatalogSnapshotRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise catalog snapshot repository", zap.Error(err))
	}
	planRepo, err := firestoreRepo.NewPlanRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise plan repository", zap.Error(err))
	}
	healthRepo, err := newHealthRepository(firestoreClient, issueTopic, catalogSource)
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}

	registry, err := repositories.NewRegistry(repositories.RegistryDeps{
		CatalogSource:    catalogSource,
		CatalogSnapshots: snapshotRepo,
		Plans:            planRepo,
		Health:           healthRepo,
		Closers: []func(ctx context.Context) error{
			firestoreProvider.Close,
		},
	})
	if err != nil {
		logger.Fatal("failed to assemble repository registry", zap.Error(err))
	}

	serviceLogger := logger.Named("services")
	container, err := di.NewContainer(ctx, cfg, di.Dependencies{
		Registry: registry,
		Issues:   issuePublisher,
		Store:    exportStore,
		Renderer: labels.NewRenderer(),
		Build:    buildInfo,
		Logger: func(_ context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields)+1)
			zFields = append(zFields, zap.String("event", event))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			serviceLogger.Debug("service log", zFields...)
		},
	})
	if err != nil {
		logger.Fatal("failed to assemble service container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
		handlers.RateLimitMiddleware(cfg.RateLimits.DefaultPerMinute, cfg.RateLimits.AuthenticatedPerMinute, time.Now),
		idempotencyMiddleware,
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(container.Services.System),
	)
	catalogHandlers := handlers.NewCatalogHandlers(authenticator, container.Services.Catalog)
	planHandlers := handlers.NewPlanHandlers(authenticator, container.Services.Plans, container.Services.Exports, container.Services.Labels)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithPlanRoutes(planHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("packhouse api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newCatalogSource(ctx context.Context, cfg config.Config) (*sheets.CatalogSource, error) {
	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.Sheets.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	return sheets.NewCatalogSource(ctx, sheets.Config{
		SpreadsheetID: cfg.Sheets.SpreadsheetID,
		ReadRange:     cfg.Sheets.ReadRange,
	}, opts...)
}

// newExportStore builds the CSV export store when a bucket is configured.
// Without a bucket the export endpoints stay disabled, which keeps local
// development free of GCS credentials.
func newExportStore(ctx context.Context, logger *zap.Logger, cfg config.Config) (services.ExportStore, func()) {
	bucket := strings.TrimSpace(cfg.Export.Bucket)
	if bucket == "" {
		logger.Warn("export bucket not configured; plan export disabled")
		return nil, nil
	}

	signerKey, err := exportSignerKey(cfg)
	if err != nil {
		logger.Fatal("failed to load export signer credentials", zap.Error(err))
	}
	signer, err := platformstorage.NewServiceAccountSignerFromJSON(signerKey)
	if err != nil {
		logger.Fatal("failed to parse export signer credentials", zap.Error(err))
	}

	client, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	store, err := platformstorage.NewExportStore(client, signer, bucket)
	if err != nil {
		logger.Fatal("failed to initialise export store", zap.Error(err))
	}

	return store, func() {
		if err := client.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}
}

func exportSignerKey(cfg config.Config) ([]byte, error) {
	if raw := strings.TrimSpace(cfg.Export.SignerCredentialsJSON); raw != "" {
		return []byte(raw), nil
	}
	file := strings.TrimSpace(cfg.Export.SignerCredentialsFile)
	if file == "" {
		return nil, errors.New("export signer credentials are required when an export bucket is set")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read signer credentials file: %w", err)
	}
	return data, nil
}

func newHealthRepository(client *firestore.Client, topic *pubsub.Topic, source repositories.CatalogSourceRepository) (repositories.HealthRepository, error) {
	checks := make([]repositories.DependencyCheck, 0, 3)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if topic != nil {
		t := topic
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				exists, err := t.Exists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("topic %s does not exist", t.ID())
				}
				return nil
			},
		})
	}
	if source != nil {
		s := source
		checks = append(checks, repositories.DependencyCheck{
			Name:    "catalogSource",
			Timeout: 3 * time.Second,
			Check: func(ctx context.Context) error {
				_, err := s.FetchProducts(ctx)
				return err
			},
		})
	}
	return repositories.NewDependencyHealthRepository(checks)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	envLabel := strings.ToLower(lookup("API_SECURITY_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	projectMap := secretProjectMapFromEnv(env)
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	versionPins := secretVersionPinsFromEnv(env)
	credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if len(projectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(projectMap))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if len(versionPins) > 0 {
		opts = append(opts, secrets.WithVersionPins(versionPins))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists the config fields whose env values may carry
// secret references and must resolve for the process to start.
func requiredSecretNames(env map[string]string) []string {
	required := []string{"Sheets.SpreadsheetID"}
	if env != nil && strings.TrimSpace(env["API_EXPORT_SIGNER_CREDENTIALS_JSON"]) != "" {
		required = append(required, "Export.SignerCredentialsJSON")
	}
	return required
}

func secretProjectMapFromEnv(env map[string]string) map[string]string {
	raw := ""
	if env != nil {
		raw = env["API_SECRET_PROJECT_IDS"]
	}
	raw = strings.TrimSpace(raw)
	projects := make(map[string]string)
	if raw == "" {
		return projects
	}
	entries := strings.Split(raw, ",")
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		envLabel := strings.ToLower(strings.TrimSpace(parts[0]))
		project := strings.TrimSpace(parts[1])
		if envLabel == "" || project == "" {
			continue
		}
		projects[envLabel] = project
	}
	return textutil.NormalizeStringMap(projects)
}

func secretVersionPinsFromEnv(env map[string]string) map[string]string {
	raw := ""
	if env != nil {
		raw = env["API_SECRET_VERSION_PINS"]
	}
	raw = strings.TrimSpace(raw)
	pins := make(map[string]string)
	if raw == "" {
		return pins
	}
	entries := strings.Split(raw, ",")
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		ref := strings.TrimSpace(parts[0])
		version := strings.TrimSpace(parts[1])
		if ref == "" || version == "" {
			continue
		}
		var prefix string
		if idx := strings.Index(ref, ":"); idx > 0 {
			schemeSplit := strings.Index(ref, "://")
			if schemeSplit == -1 || idx < schemeSplit {
				prefix = strings.ToLower(strings.TrimSpace(ref[:idx])) + ":"
				ref = strings.TrimSpace(ref[idx+1:])
			}
		}
		if strings.HasPrefix(ref, "sm://") {
			ref = "secret://" + strings.TrimPrefix(ref, "sm://")
		} else if !strings.HasPrefix(ref, "secret://") {
			ref = "secret://" + ref
		}
		ref = prefix + ref
		pins[ref] = version
	}
	return textutil.NormalizeStringMap(pins)
}
