package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"github.com/shelfwise/acquisitions/internal/handlers"
	"github.com/shelfwise/acquisitions/internal/platform/config"
	pfirestore "github.com/shelfwise/acquisitions/internal/platform/firestore"
	"github.com/shelfwise/acquisitions/internal/platform/jobs"
	"github.com/shelfwise/acquisitions/internal/platform/observability"
	firestoreRepo "github.com/shelfwise/acquisitions/internal/repositories/firestore"
	"github.com/shelfwise/acquisitions/internal/services"
)

func main() {
	ctx := context.Background()

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

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	orderStatusTopic := pubsubClient.Topic(cfg.Events.OrderStatusTopic)
	defer orderStatusTopic.Stop()

	orderStatusPublisher, err := jobs.NewPubSubOrderStatusPublisher(orderStatusTopic)
	if err != nil {
		logger.Fatal("failed to initialise order status publisher", zap.Error(err))
	}

	resolver, err := services.NewInventoryResolver(services.InventoryResolverDeps{
		Catalog: registry.Catalog(),
		Clock:   time.Now,
		Logger:  zapEventLogger(logger.Named("inventory")),
	})
	if err != nil {
		logger.Fatal("failed to initialise inventory resolver", zap.Error(err))
	}

	receivingService, err := services.NewReceivingService(services.ReceivingServiceDeps{
		Pieces:          registry.Pieces(),
		OrderLines:      registry.OrderLines(),
		Catalog:         registry.Catalog(),
		History:         registry.ReceivingHistory(),
		Resolver:        resolver,
		Events:          orderStatusPublisher,
		MaxBatchPieces:  cfg.Receiving.MaxBatchPieces,
		HistoryLimit:    cfg.Receiving.HistoryLimit,
		HistoryMaxLimit: cfg.Receiving.HistoryMaxLimit,
		Clock:           time.Now,
		Logger:          zapEventLogger(logger.Named("receiving")),
	})
	if err != nil {
		logger.Fatal("failed to initialise receiving service", zap.Error(err))
	}
	receivingHandlers := handlers.NewReceivingHandlers(receivingService)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadinessProbe("firestore", firestoreProbe(firestoreClient)),
		handlers.WithReadinessProbe("pubsub", pubsubProbe(orderStatusTopic)),
	)

	projectID := cfg.Firestore.ProjectID
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithReceivingRoutes(receivingHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		serverLogger.Info("acquisitions api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown signal received; draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server terminated", zap.Error(err))
	}
}

func zapEventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Info("service event", zFields...)
	}
}

func firestoreProbe(client *firestore.Client) handlers.ReadinessProbe {
	return func(ctx context.Context) error {
		probeCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
		defer cancel()
		iter := client.Collections(probeCtx)
		_, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		return err
	}
}

func pubsubProbe(topic *pubsub.Topic) handlers.ReadinessProbe {
	return func(ctx context.Context) error {
		probeCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
		defer cancel()
		exists, err := topic.Exists(probeCtx)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("pubsub: topic %s not found", topic.ID())
		}
		return nil
	}
}
