package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/stockledger-api/internal/application/audit"
	"github.com/jhoicas/stockledger-api/internal/application/auth"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/timeline"
	"github.com/jhoicas/stockledger-api/internal/application/usecase"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/memory"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/notify"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/observability"
	infrapdf "github.com/jhoicas/stockledger-api/internal/infrastructure/pdf"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/stockledger-api/internal/interfaces/http"
	"github.com/jhoicas/stockledger-api/pkg/config"
	"github.com/jhoicas/stockledger-api/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

// storage repositorios del backend elegido por DB_DRIVER.
type storage struct {
	tx        inventory.TxRunner
	repos     inventory.TxRepos
	users     repository.UserRepository
	roles     repository.RoleRepository
	auditLogs repository.AuditLogRepository
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("db_driver", cfg.DB.Driver).
		Msg("iniciando aplicación")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("trazas OTLP deshabilitadas")
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar almacenamiento")
	}
	defer store.close()

	if err := auth.SeedDefaults(ctx, store.roles, store.users, auth.AdminSeed{
		Email:    cfg.Seed.AdminEmail,
		Password: cfg.Seed.AdminPassword,
		Name:     "Administrador",
	}); err != nil {
		log.Fatal().Err(err).Msg("seed de roles y permisos")
	}

	gate := auth.NewPermissionGate(store.users, store.roles, time.Duration(cfg.Auth.PermissionCacheTTLSeconds)*time.Second)
	recorder := audit.NewRecorder(store.auditLogs, audit.Config{
		QueueSize:  cfg.Audit.QueueSize,
		MaxRetries: cfg.Audit.MaxRetries,
	}, log)

	hub := notify.NewHub(log)
	go hub.Run(ctx)
	notifiers := notify.Multi{hub}
	var kafkaPublisher *notify.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher = notify.NewKafkaPublisher(notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		notifiers = append(notifiers, kafkaPublisher)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publicación Kafka habilitada")
	}

	ledger := inventory.NewLedger(store.repos.Events)
	availability := inventory.NewAvailabilityCalculator(ledger)
	pipeline := inventory.NewPipeline(inventory.PipelineDeps{
		TxRunner:     store.tx,
		Gate:         gate,
		Ledger:       ledger,
		Availability: availability,
		Audit:        recorder,
		Notifier:     notifiers,
		Logger:       log,
	})

	reconstructor := timeline.NewReconstructor(timeline.Sources{
		Events:     store.repos.Events,
		Dispatches: store.repos.Dispatches,
		Returns:    store.repos.Returns,
		Damages:    store.repos.Damages,
		Recoveries: store.repos.Recoveries,
		Transfers:  store.repos.Transfers,
	})
	exporter := timeline.NewExporter(reconstructor, store.repos.Products,
		infrapdf.NewMarotoTimelineGenerator(cfg.App.Name), gate, recorder)

	authUC := auth.NewAuthUseCase(store.users, store.roles, gate, recorder, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	app.Use(httpRouter.RequestLogger(log))

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Stock Ledger API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":         "ok",
			"service":        cfg.App.Name,
			"audit_failures": recorder.Failures(),
			"ws_clients":     hub.Clients(),
		})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:       authUC,
		RoleUC:       auth.NewRoleUseCase(store.roles, store.users, gate, recorder),
		Gate:         gate,
		Pipeline:     pipeline,
		Availability: availability,
		Ledger:       ledger,
		Timeline:     reconstructor,
		Exporter:     exporter,
		AuditUC:      audit.NewAuditUseCase(store.auditLogs, gate),
		ProductUC:    usecase.NewProductUseCase(store.repos.Products, gate, recorder),
		WarehouseUC:  usecase.NewWarehouseUseCase(store.repos.Warehouses, gate, recorder),
		UserUC:       usecase.NewUserUseCase(store.users, store.roles, gate, recorder),
		WebSocket:    hub.Handler(),
		Upgrade:      notify.Upgrade,
		JWTSecret:    cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	stop()
	// La auditoría pendiente se drena antes de cerrar el almacenamiento.
	if err := recorder.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Int64("audit_failures", recorder.Failures()).Msg("drenado de auditoría incompleto")
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			log.Error().Err(err).Msg("cierre del productor Kafka")
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("cierre de trazas")
	}

	log.Info().Msg("aplicación detenida")
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	lockTimeout := time.Duration(cfg.DB.LockTimeoutMs) * time.Millisecond
	if cfg.DB.Driver == "memory" {
		s := memory.NewStore(memory.WithLockTimeout(lockTimeout))
		return &storage{
			tx: s,
			repos: inventory.TxRepos{
				Events:     s.StockEvents(),
				Dispatches: s.Dispatches(),
				Returns:    s.Returns(),
				Damages:    s.Damages(),
				Recoveries: s.Recoveries(),
				Transfers:  s.SelfTransfers(),
				Openings:   s.OpeningStocks(),
				Products:   s.Products(),
				Warehouses: s.Warehouses(),
			},
			users:     s.Users(),
			roles:     s.Roles(),
			auditLogs: s.AuditLogs(),
			close:     func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	repos := postgres.NewRepositories(pool)
	return &storage{
		tx:        postgres.NewTxRunner(pool, lockTimeout),
		repos:     repos.TxRepos,
		users:     repos.Users,
		roles:     repos.Roles,
		auditLogs: repos.AuditLogs,
		close:     pool.Close,
	}, nil
}
