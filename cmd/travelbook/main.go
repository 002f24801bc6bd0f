package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gin "github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	availabilityapp "travelbook/internal/app/availability"
	bookingapp "travelbook/internal/app/booking"
	"travelbook/internal/app/commands"
	"travelbook/internal/app/dto"
	"travelbook/internal/app/middleware"
	"travelbook/internal/app/mutation"
	"travelbook/internal/app/outbox"
	"travelbook/internal/app/policies"
	pricingapp "travelbook/internal/app/pricing"
	"travelbook/internal/app/queries"
	domainavailability "travelbook/internal/domain/availability"
	domainbooking "travelbook/internal/domain/booking"
	domainpricing "travelbook/internal/domain/pricing"
	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/money"
	"travelbook/internal/infra/broker/kafka"
	"travelbook/internal/infra/config"
	mongostore "travelbook/internal/infra/db/mongo"
	ginserver "travelbook/internal/infra/http/gin"
	"travelbook/internal/infra/inbox"
	redislock "travelbook/internal/infra/lock/redis"
	"travelbook/internal/infra/obs"
	infraoutbox "travelbook/internal/infra/outbox"
	"travelbook/internal/infra/payments"
	"travelbook/internal/infra/schedule"
	"travelbook/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger := obs.NewLogger(cfg.Env)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	metrics := obs.NewMetrics()

	app, err := buildApplication(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	if cfg.FixturesEnabled {
		path := getenv("RESOURCE_FIXTURES", defaultFixturesPath())
		if err := loadResourceFixtures(ctx, app.resources, path, cfg.Currency, logger); err != nil {
			logger.Warn("resource fixtures load failed", "error", err, "path", path)
		}
	}

	var limit gin.HandlerFunc
	if cfg.WriteRateLimit > 0 {
		limit = ginserver.NewClientLimiter(cfg.WriteRateLimit, cfg.WriteRateBurst).Middleware()
	}
	app.handlers.WriteLimit = limit
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger, Metrics: metrics}, app.health, app.handlers)
	metricsServer := metrics.Serve(cfg.MetricsAddr)

	if err := app.scheduleMaintenance(cfg); err != nil {
		logger.Error("scheduler setup failed", "error", err)
		os.Exit(1)
	}
	app.scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("metrics server starting", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	if app.worker != nil {
		g.Go(func() error { return ignoreCanceled(app.worker.Run(gctx)) })
	}
	if app.consumer != nil {
		topic := cfg.KafkaTopicPrefix + "payment.events.v1"
		g.Go(func() error { return ignoreCanceled(app.consumer.Run(gctx, []string{topic})) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		app.scheduler.Stop(shutdownCtx)
		app.debouncer.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("engine stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("engine stopped")
}

type application struct {
	handlers  ginserver.Handlers
	health    obs.HealthHandlers
	resources domainresources.Repository
	workflow  *bookingapp.Workflow
	debouncer *mutation.Debouncer
	scheduler *schedule.Scheduler
	worker    *infraoutbox.Worker
	consumer  *kafka.Consumer
	closers   []func(context.Context) error
}

type stores struct {
	resources    domainresources.Repository
	availability domainavailability.Store
	bookings     domainbooking.Repository
	outbox       outbox.Outbox
	queue        infraoutbox.Queue
	idempotency  middleware.IdempotencyStore
	inbox        payments.Inbox
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *obs.Metrics) (*application, error) {
	app := &application{health: obs.HealthHandlers{Checks: map[string]obs.Check{}}}

	st, err := app.buildStores(cfg)
	if err != nil {
		return nil, err
	}
	app.resources = st.resources

	var locker mutation.Locker = mutation.NewLocalLocker()
	if cfg.LockMode == config.LockRedis {
		rl := redislock.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LockTTL, logger)
		locker = rl
		app.health.Checks["redis"] = rl.Ping
		app.closers = append(app.closers, func(context.Context) error { return rl.Close() })
	}

	currency := cfg.Currency
	calc := domainpricing.NewCalculator(domainpricing.FixedFees{
		Cleaning: money.Money{Amount: cfg.CleaningFeeMinor, Currency: currency},
		Service:  money.Money{Amount: cfg.ServiceFeeMinor, Currency: currency},
	})
	encoder := outbox.JSONEventEncoder{}

	availability := availabilityapp.NewService(st.resources, st.availability)
	pricing := pricingapp.NewService(st.resources, st.availability, calc)
	coordinator := mutation.NewCoordinator(st.availability, locker, st.outbox, logger)
	coordinator.Encoder = encoder
	coordinator.Metrics = metrics
	app.debouncer = mutation.NewDebouncer(coordinator, cfg.DebounceWindow, mutation.WithBaseContext(context.WithoutCancel(ctx)))

	app.workflow = &bookingapp.Workflow{
		Resources:        st.resources,
		Bookings:         st.bookings,
		Availability:     availability,
		Pricing:          pricing,
		Reserver:         coordinator,
		Outbox:           st.outbox,
		Encoder:          encoder,
		Logger:           logger,
		Metrics:          metrics,
		Timeout:          cfg.BookingTimeout,
		RollbackAttempts: cfg.RollbackAttempts,
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.RequestBookingCommand, *dto.Booking](commandBus, &bookingapp.RequestBookingHandler{Workflow: app.workflow})
	commands.RegisterHandler[bookingapp.CancelBookingCommand, *dto.Booking](commandBus, &bookingapp.CancelBookingHandler{Workflow: app.workflow})
	commands.RegisterHandler[bookingapp.ConfirmPaymentCommand, *dto.Booking](commandBus, &bookingapp.ConfirmPaymentHandler{Workflow: app.workflow})
	commands.RegisterHandler[mutation.SetAvailabilityCommand, dto.MutationResult](commandBus, &mutation.SetAvailabilityHandler{
		Resources:   st.resources,
		Coordinator: coordinator,
		Debouncer:   app.debouncer,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[bookingapp.GetBookingQuery, *dto.Booking](queryBus, &bookingapp.GetBookingHandler{Workflow: app.workflow})
	queries.RegisterHandler[availabilityapp.CheckAvailabilityQuery, dto.AvailabilityCheck](queryBus, &availabilityapp.CheckAvailabilityHandler{Service: availability})
	queries.RegisterHandler[availabilityapp.GetCalendarQuery, dto.Calendar](queryBus, &availabilityapp.GetCalendarHandler{Service: availability})
	queries.RegisterHandler[pricingapp.QuoteQuery, dto.Quote](queryBus, &pricingapp.QuoteHandler{Service: pricing})

	logger.Info("buses wired", "commands", commandBus.Keys(), "queries", queryBus.Keys())

	validator := middleware.NewStructValidator()
	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Validation(validator),
		middleware.Authorization(middleware.AccessAuthorizer{Access: policies.AllowAll{}}),
		middleware.Idempotency(st.idempotency, nil),
	)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus, middleware.QueryValidation(validator))

	app.handlers = ginserver.Handlers{
		Booking:      ginserver.BookingHandler{Commands: commandBusWithMiddleware, Queries: queryBusWithMiddleware},
		Availability: ginserver.AvailabilityHandler{Commands: commandBusWithMiddleware, Queries: queryBusWithMiddleware},
	}
	app.scheduler = schedule.New(ctx, logger)

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func(context.Context) error { return producer.Close() })
		app.worker = &infraoutbox.Worker{
			Store:       st.queue,
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Backoff:     cfg.RetryBackoff,
			Logger:      logger,
			Metrics:     metrics,
		}
		listener := &payments.Listener{Bus: commandBusWithMiddleware, Inbox: st.inbox, Logger: logger}
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, "travelbook-payments", nil, listener, logger)
		if err != nil {
			return nil, err
		}
		app.consumer = consumer
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
	}
	return app, nil
}

func (a *application) buildStores(cfg config.Config) (stores, error) {
	if cfg.StorageMode == config.StorageMongo {
		client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return stores{}, err
		}
		a.health.Checks["mongo"] = client.Ping
		a.closers = append(a.closers, client.Close)
		box := infraoutbox.NewStore(client.DB)
		return stores{
			resources:    mongostore.NewResourceRepository(client.DB),
			availability: mongostore.NewAvailabilityStore(client.DB),
			bookings:     mongostore.NewBookingRepository(client.DB),
			outbox:       box,
			queue:        box,
			idempotency:  mongostore.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL),
			inbox:        inbox.NewStore(client.DB, "travelbook-payments", cfg.IdempotencyTTL),
		}, nil
	}
	var opts []memory.OutboxOption
	if len(cfg.KafkaBrokers) > 0 {
		opts = append(opts, memory.WithQueue())
	}
	box := memory.NewOutbox(opts...)
	return stores{
		resources:    memory.NewResourceRepository(),
		availability: memory.NewAvailabilityStore(),
		bookings:     memory.NewBookingRepository(),
		outbox:       box,
		queue:        box,
		idempotency:  memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		inbox:        memory.NewInbox(),
	}, nil
}

func (a *application) scheduleMaintenance(cfg config.Config) error {
	if err := a.scheduler.Add(schedule.Job{
		Name:    "expire_pending",
		Spec:    cfg.ExpirySchedule,
		Timeout: time.Minute,
		Run: func(ctx context.Context) (int, error) {
			return a.workflow.ExpirePending(ctx, cfg.PendingBookingTTL)
		},
	}); err != nil {
		return err
	}
	return a.scheduler.Add(schedule.Job{
		Name:    "reconcile",
		Spec:    cfg.ReconcileSchedule,
		Timeout: 5 * time.Minute,
		Run: func(ctx context.Context) (int, error) {
			return a.workflow.Reconcile(ctx, cfg.ReconcileGrace)
		},
	})
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
