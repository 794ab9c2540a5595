package main // Entry point package

import (
	"context"   // root context cancelled on shutdown
	"errors"    // errors.Is for the server close error
	"net/http"  // http.ErrServerClosed
	"os"        // process signals
	"os/signal" // signal.NotifyContext
	"syscall"   // SIGTERM
	"time"      // shutdown timeout

	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // panic recovery
	"go.uber.org/zap"                               // structured logging

	"github.com/iliyamo/event-seat-reservation/internal/config"     // environment config
	"github.com/iliyamo/event-seat-reservation/internal/database"   // MySQL and MongoDB connections
	"github.com/iliyamo/event-seat-reservation/internal/feed"       // availability feed
	"github.com/iliyamo/event-seat-reservation/internal/handler"    // HTTP handlers
	"github.com/iliyamo/event-seat-reservation/internal/logger"     // zap construction
	"github.com/iliyamo/event-seat-reservation/internal/middleware" // auth, rate limit, cache
	"github.com/iliyamo/event-seat-reservation/internal/queue"      // confirmation notifications
	"github.com/iliyamo/event-seat-reservation/internal/repository" // store implementations
	"github.com/iliyamo/event-seat-reservation/internal/router"     // route registration
	"github.com/iliyamo/event-seat-reservation/internal/service"    // business operations
)

func main() {
	config.LoadEnvFile()  // .env in development
	cfg := config.Load()  // Load environment config
	log := logger.Must(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(cctx); err != nil {
			log.Warn("close store", zap.Error(err))
		}
	}()

	rdb := config.NewRedisClient(config.LoadRedisConfig(), log)
	if rdb != nil {
		defer rdb.Close()
	}

	// Availability snapshots go through Redis pub/sub when it is reachable so
	// that every replica's websocket clients see every commit.  Without Redis
	// the local hub is the only subscriber.
	hub := feed.NewHub(store.Availability, log)
	var snapshots feed.Publisher = hub
	if rdb != nil {
		snapshots = feed.NewRedisPublisher(rdb, cfg.FeedChannel)
		go func() {
			_ = feed.Relay(ctx, feed.NewRedisSource(rdb, cfg.FeedChannel, log), hub, feed.DefaultBackoff, log)
		}()
	}

	var notifier service.Notifier
	if cfg.RabbitURL != "" {
		notifier = queue.NewPublisher(cfg.RabbitURL, cfg.NotifyQueue, log)
	}
	if cfg.ConsumerEnabled {
		go runConsumer(ctx, cfg, log)
	}

	rl := config.LoadRateLimitConfig()
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log)

	seats := service.NewSeatService(store, snapshots, cache, log)
	reservations := service.NewReservationService(store, snapshots, notifier, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, func(ctx context.Context) error {
		_, err := store.Availability(ctx)
		return err
	})
	router.RegisterAuth(e,
		handler.NewAuthHandler(service.NewAuthService(store, cfg.JWTSecret, cfg.TokenTTL), log),
		middleware.NewTokenBucket(rl, rl.Login, "login", middleware.ByIP, rdb, log))
	router.RegisterSeats(e, handler.NewSeatHandler(seats, hub, log), cache)
	router.RegisterCustomer(e,
		handler.NewCustomerHandler(reservations, service.NewProfileService(store), log),
		cfg.JWTSecret,
		middleware.NewTokenBucket(rl, rl.Reserve, "reserve", middleware.BySubject, rdb, log))
	router.RegisterAdmin(e,
		handler.NewAdminHandler(
			service.NewCustomerService(store, cfg.Location(), log),
			service.NewCheckInService(store, log),
			seats, log),
		cfg.JWTSecret)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

// openStore connects the store selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	case config.DriverMongo:
		client, db, err := database.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB, log)
		if err != nil {
			return nil, err
		}
		store := repository.NewMongoStore(client, db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		return store, nil
	default:
		db, err := database.OpenMySQL(ctx, database.MySQLOptions{
			User:     cfg.DBUser,
			Password: cfg.DBPass,
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			Name:     cfg.DBName,
		})
		if err != nil {
			return nil, err
		}
		return repository.NewSQLStore(db), nil
	}
}

// runConsumer drains the confirmation queue until ctx is done.  Every event
// is appended to the local confirmation log and, when a mail endpoint is
// configured, forwarded to it.
func runConsumer(ctx context.Context, cfg config.Config, log *zap.Logger) {
	handlers := queue.Handlers{&queue.LogHandler{Dir: "logs"}}
	if cfg.MailAPIURL != "" {
		handlers = append(handlers, &queue.MailHandler{
			URL:         cfg.MailAPIURL,
			Credentials: cfg.MailAPICredentials,
			Client:      &http.Client{Timeout: 10 * time.Second},
		})
	}
	c := queue.NewConsumer(cfg.RabbitURL, cfg.NotifyQueue, handlers, log)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("confirmation consumer stopped", zap.Error(err))
	}
}
