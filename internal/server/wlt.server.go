package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"wallet-service/internal/config"
	"wallet-service/internal/domain"
	hrest "wallet-service/internal/handler/rest"
	publisher "wallet-service/internal/pub"
	"wallet-service/internal/repository"
	"wallet-service/internal/router"
	"wallet-service/internal/service"
	"wallet-service/internal/usecase"
	"wallet-service/internal/worker"
	"wallet-service/pkg/utils"
)

// Server bundles the HTTP server with the background workers so main
// can start and stop everything in order.
type Server struct {
	HTTP         *http.Server
	DB           *pgxpool.Pool
	Redis        *redis.Client
	KafkaWriter  *kafka.Writer
	CommissionUC *usecase.CommissionUsecase
	Dispatcher   *worker.OutboxDispatcher
	Scheduler    *worker.PayoutScheduler
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	// --- DB connection ---
	dbpool, err := config.ConnectDB()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	// pool is closed in main during shutdown, not here

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})

	kafkaWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// --- Init repos ---
	walletRepo := repository.NewWalletRepo(dbpool)
	ledgerRepo := repository.NewLedgerRepo(dbpool)
	outboxRepo := repository.NewOutboxRepo(dbpool)
	investmentRepo := repository.NewInvestmentRepo(dbpool)
	commissionRepo := repository.NewCommissionRepo(dbpool)
	sponsorRepo := repository.NewSponsorRepo(dbpool)
	orderRepo := repository.NewOrderRepo(dbpool)

	refGen := utils.NewReferenceGenerator()
	eventPub := publisher.NewWalletEventPublisher(rdb, logger)

	// --- Usecases ---
	walletUC := usecase.NewWalletUsecase(
		walletRepo, ledgerRepo, refGen, eventPub, rdb,
		cfg.WithdrawalFeePercent, logger,
	)
	commissionUC := usecase.NewCommissionUsecase(
		commissionRepo, sponsorRepo, walletUC, cfg.CommissionRates, logger,
	)
	payoutUC := usecase.NewPayoutUsecase(investmentRepo, walletUC, logger)
	orderUC := usecase.NewOrderUsecase(orderRepo, investmentRepo, outboxRepo, walletUC, logger)

	// --- Schema and plan seed on startup ---
	func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		seeder := service.NewPlanSeeder(dbpool, logger)
		if err := seeder.Seed(ctx, cfg.MigrationsDir); err != nil {
			log.Fatalf("failed to seed database: %v", err)
		}
	}()

	// --- Workers ---
	dispatcher := worker.NewOutboxDispatcher(
		outboxRepo, kafkaWriter,
		cfg.OutboxBatchSize, cfg.OutboxPollInterval, cfg.OutboxMaxAttempts,
		logger,
	)
	dispatcher.RegisterHandler(domain.EventOrderPaid, worker.OrderPaidHandler(commissionUC))

	scheduler := worker.NewPayoutScheduler(
		payoutUC, cfg.HourlyPayoutInterval, cfg.DailyPayoutInterval, logger,
	)

	// --- HTTP routes ---
	walletHandler := hrest.NewWalletRestHandler(walletUC, orderUC, commissionUC, outboxRepo)
	r := chi.NewRouter()
	r = router.SetupRoutes(r, walletHandler).(*chi.Mux)

	return &Server{
		HTTP: &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: r,
		},
		DB:           dbpool,
		Redis:        rdb,
		KafkaWriter:  kafkaWriter,
		CommissionUC: commissionUC,
		Dispatcher:   dispatcher,
		Scheduler:    scheduler,
	}
}

// StartWorkers launches the commission pool, outbox dispatcher and
// payout scheduler. They run until StopWorkers or ctx cancellation.
func (s *Server) StartWorkers(ctx context.Context) {
	s.CommissionUC.Start()
	go s.Dispatcher.Start(ctx)
	go s.Scheduler.Start(ctx)
}

// StopWorkers drains the workers in reverse dependency order.
func (s *Server) StopWorkers() {
	s.Scheduler.Stop()
	s.Dispatcher.Stop()
	s.CommissionUC.Stop()
}
