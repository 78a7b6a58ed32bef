package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/cart"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/cart/cache"
	cartrepo "github.com/Hacktool254/flashtrendy-ecommerce-store/internal/cart/repository"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/config"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/health"
	h "github.com/Hacktool254/flashtrendy-ecommerce-store/internal/http"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/intake"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/notify"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/outbox"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/payment"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/settlement"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/pkg/circuitbreaker"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/pkg/logger"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/pkg/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, outbox workers, settlement sweeper and health server",
	RunE:  runServe,
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newProcessor(cfg *config.Config, lg *slog.Logger) *payment.StripeProcessor {
	return payment.NewStripeProcessor(payment.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		APIURL:        cfg.StripeAPIURL,
		Timeout:       cfg.ProcessorTimeout,
		MaxRetries:    2,
		Breaker:       circuitbreaker.DefaultConfig(),
	}, lg)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lg := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(lg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, health.ServiceName, Version, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(tctx)
	}()

	// Postgres
	repo, err := openRepository(cfg, true)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()
	log.Printf("Connected to Postgres at %s:%d", cfg.DB.Host, cfg.DB.Port)

	// MongoDB
	mongoDB, err := cartrepo.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Client().Disconnect(context.Background())
	cartStore := cartrepo.NewMongoRepository(mongoDB)
	if err := cartStore.CreateIndexes(ctx); err != nil {
		log.Fatalf("Failed to create cart indexes: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", cfg.Mongo.URI)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	cartCache := cache.NewRedisCache(redisClient,
		cache.WithTTL(cfg.Redis.CartCacheTTL),
		cache.WithKeyPrefix(cfg.Redis.CartCachePrefix),
	)
	cartSvc := cart.NewService(cartStore, cartCache, repo, lg)
	intakeSvc := intake.NewService(repo, cfg.PricePolicy, lg)
	processor := newProcessor(cfg, lg)
	broker, err := payment.NewBroker(processor, repo, cfg.PublicBaseURL, lg)
	if err != nil {
		return err
	}
	reconciler := settlement.NewReconciler(repo, lg)
	sweeper := settlement.NewSweeper(reconciler, processor, repo, cfg.SweepInterval, cfg.SweepAge, lg)

	handlers := []outbox.Handler{
		notify.NewHandler(repo, lg),
		cart.NewCleanupHandler(cartSvc),
	}

	var wg sync.WaitGroup
	goRun := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	var publisher outbox.Publisher
	switch cfg.OutboxPublisher {
	case "kafka":
		publisher = outbox.NewKafkaPublisher(cfg.KafkaTopic, cfg.Brokers()...)
		for _, hd := range handlers {
			consumer := outbox.NewConsumer(cfg.KafkaTopic, hd, lg, cfg.Brokers()...)
			defer consumer.Close()
			goRun(consumer.Run)
		}
		log.Printf("Publishing order events to Kafka topic %s", cfg.KafkaTopic)
	default:
		publisher = outbox.NewDirectPublisher(handlers...)
	}
	defer publisher.Close()

	goRun(outbox.NewPoller(repo, publisher, cfg.OutboxTick, cfg.OutboxTimeout, lg).Run)
	goRun(sweeper.Run)

	limiter := h.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	goRun(func(ctx context.Context) {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				limiter.Prune(now)
			}
		}
	})

	router := h.NewRouter(h.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		RateLimiter:    limiter,
		Health:         repo,
		Log:            lg,
	},
		h.NewCartHandler(cartSvc, cfg.RequestTimeout, lg),
		h.NewCheckoutHandler(intakeSvc, broker, reconciler, processor, cfg.RequestTimeout, lg),
		h.NewOrdersHandler(repo, cfg.RequestTimeout, lg),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	healthSrv := health.NewServer(lg)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	goRun(func(ctx context.Context) {
		healthSrv.Watch(ctx, 10*time.Second, map[string]health.Pinger{
			"postgres": repo,
			"mongodb":  pingFunc(func(ctx context.Context) error { return mongoDB.Client().Ping(ctx, nil) }),
			"redis":    pingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		})
	})

	go func() {
		log.Printf("Health service listening on port %s", cfg.GRPCPort)
		if err := healthSrv.Serve(lis); err != nil {
			log.Fatalf("Failed to serve health: %v", err)
		}
	}()
	go func() {
		log.Printf("Storefront API starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("shutting down storefront...")
	healthSrv.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	wg.Wait()
	log.Println("Storefront stopped")
	return nil
}
