package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"gorm.io/gorm"

	"barback/internal/api"
	"barback/internal/config"
	"barback/internal/database"
	"barback/internal/logger"
	"barback/internal/services"
	"barback/internal/storage"
	"barback/internal/storage/memory"
	"barback/internal/storage/postgres"
	"barback/internal/utils"
)

func main() {
	app := &cli.App{
		Name:  "barback",
		Usage: "склад и выполнение заказов бара",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "запустить HTTP, WebSocket и gRPC health",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "memory", Usage: "хранилище в памяти с демо-каталогом вместо PostgreSQL"},
				},
				Action: serveCommand,
			},
			{
				Name:  "migrate",
				Usage: "миграции схемы",
				Subcommands: []*cli.Command{
					{Name: "up", Usage: "применить все миграции", Action: migrateUpCommand},
					{
						Name:   "down",
						Usage:  "откатить миграции",
						Flags:  []cli.Flag{&cli.IntFlag{Name: "steps", Value: 1, Usage: "сколько миграций откатить"}},
						Action: migrateDownCommand,
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "заполнить пустую БД демо-каталогом",
				Action: seedCommand,
			},
			{
				Name:  "suggest",
				Usage: "показать рекомендации закупки",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "xlsx", Usage: "сохранить рекомендации в файл Excel"},
				},
				Action: suggestCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// setup читает конфигурацию и создает логгер
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// openPostgres подключается к БД и при AUTO_MIGRATE накатывает миграции
func openPostgres(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*gorm.DB, error) {
	dbLog := logger.Component(log, "database")
	if cfg.AutoMigrate {
		if err := database.MigrateUp(cfg.DatabaseURL, dbLog); err != nil {
			return nil, err
		}
	}
	return database.ConnectPostgres(ctx, cfg.DatabaseURL, database.DefaultPool, dbLog)
}

func serveCommand(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	if c.Bool("memory") {
		mem := memory.New()
		if err := database.SeedMemory(ctx, mem, database.DemoCatalog(), logger.Component(log, "seed")); err != nil {
			return err
		}
		store = mem
		log.Warn("⚠️ Запуск с хранилищем в памяти, данные не сохраняются")
	} else {
		db, err := openPostgres(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer database.ClosePostgres(db)
		store = postgres.New(db)
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return errors.Wrapf(err, "failed to listen gRPC on %s", cfg.GRPCPort)
	}
	defer lis.Close()

	g, ctx := errgroup.WithContext(ctx)
	base := logrus.NewEntry(log)

	catalog := services.NewRecipeCatalog(store)
	catalog.SetLogger(base)
	if cfg.RedisURL != "" || cfg.UsesRedisSentinel() {
		rdb, err := database.ConnectRedis(ctx, database.RedisConfig{
			URL:           cfg.RedisURL,
			SentinelAddrs: cfg.RedisSentinelAddrs,
			MasterName:    cfg.RedisMasterName,
			Password:      cfg.RedisPassword,
		}, logger.Component(log, "redis"))
		if err != nil {
			// Без кэша рецепты читаются из БД, это не повод падать
			log.WithError(err).Warn("⚠️ Redis недоступен, кэш рецептов отключен")
		} else {
			defer database.CloseRedis(rdb)
			cache := services.NewRedisRecipeCache(utils.NewRedisClient(rdb), cfg.RecipeCacheTTL, base)
			catalog.SetCache(cache)
			updates, closeSub := cache.Invalidations(ctx)
			g.Go(func() error {
				catalog.ListenInvalidations(ctx, updates)
				return nil
			})
			defer closeSub()
		}
	}

	checker := services.NewAvailabilityChecker(store, catalog)
	ledger := services.NewStockLedger(store)
	ledger.SetLogger(base)
	pricing := services.NewCostCalculator(store, catalog)
	orders := services.NewOrderCoordinator(store, checker, ledger, pricing)
	orders.SetLogger(base)
	advisor := services.NewReplenishmentAdvisor(store)
	advisor.SetLogger(base)

	hub := api.NewHub(logger.Component(log, "ws_hub"))
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	// С Kafka события идут через топик, и табло получает их из consumer-а.
	// Без Kafka события сразу уходят в хаб.
	brokers := api.ParseKafkaBrokers(cfg.KafkaBrokers)
	if len(brokers) > 0 {
		auth := api.KafkaAuth{Username: cfg.KafkaUsername, Password: cfg.KafkaPassword, CACert: cfg.KafkaCACert}
		publisher := api.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrdersTopic, auth, logger.Component(log, "kafka_publisher"))
		defer publisher.Close()
		orders.SetPublisher(publisher)

		consumer := api.NewKafkaWSConsumer(cfg.KafkaBrokers, cfg.KafkaOrdersTopic, cfg.KafkaGroupID, auth, hub, logger.Component(log, "kafka_consumer"))
		g.Go(func() error {
			return consumer.Run(ctx)
		})
	} else {
		orders.SetPublisher(api.NewHubPublisher(hub))
		log.Info("ℹ️ KAFKA_BROKERS не задан, события идут напрямую в WebSocket")
	}

	router := api.NewRouter(api.RouterDeps{
		Orders:      api.NewOrderController(orders, pricing),
		Stock:       api.NewStockController(ledger),
		Procurement: api.NewProcurementPlanningController(advisor),
		Recipes:     api.NewRecipeController(catalog, pricing),
		WS:          api.NewWSController(hub, logger.Component(log, "ws")),
		Store:       store,
		Hub:         hub,
		Log:         logger.Component(log, "http"),
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.WithField("port", cfg.ServerPort).Info("🚀 HTTP сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server failed")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("🛑 Останавливаем HTTP сервер")
		return srv.Shutdown(shutdownCtx)
	})

	grpcServer := grpc.NewServer()
	health := api.NewHealthServer(store, logger.Component(log, "grpc_health"))
	health.Register(grpcServer)
	g.Go(func() error {
		health.Watch(ctx, cfg.HealthCheckInterval)
		return nil
	})
	g.Go(func() error {
		log.WithField("port", cfg.GRPCPort).Info("📡 gRPC health запущен")
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return errors.Wrap(err, "grpc server failed")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("👋 Сервер остановлен")
	return nil
}

func migrateUpCommand(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	return database.MigrateUp(cfg.DatabaseURL, logger.Component(log, "migrate"))
}

func migrateDownCommand(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	return database.MigrateDown(cfg.DatabaseURL, c.Int("steps"), logger.Component(log, "migrate"))
}

func seedCommand(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	db, err := openPostgres(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer database.ClosePostgres(db)
	return database.SeedPostgres(c.Context, db, database.DemoCatalog(), logger.Component(log, "seed"))
}

func suggestCommand(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	db, err := openPostgres(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer database.ClosePostgres(db)

	advisor := services.NewReplenishmentAdvisor(postgres.New(db))
	advisor.SetLogger(logrus.NewEntry(log))
	suggestions, err := advisor.Suggest(c.Context)
	if err != nil {
		return err
	}

	if len(suggestions) == 0 {
		fmt.Println("✅ Все ингредиенты выше минимального остатка")
	}
	for _, s := range suggestions {
		fmt.Printf("%-24s остаток %s %s, заказать %s у %s, ~%s\n",
			s.Ingredient.Name,
			s.Ingredient.CurrentStock.String(), s.Ingredient.Unit,
			s.RecommendedQuantity.String(), s.BestOffer.SupplierID,
			s.EstimatedCost.StringFixed(2))
	}

	path := c.String("xlsx")
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()
	if err := advisor.ExportXLSX(f, suggestions); err != nil {
		return err
	}
	log.WithField("path", path).Info("📄 Рекомендации сохранены")
	return nil
}
