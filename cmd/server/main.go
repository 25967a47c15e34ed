package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"splitbase-backend/config"
	"splitbase-backend/database"
	"splitbase-backend/handlers"
	authmiddleware "splitbase-backend/middleware"
	"splitbase-backend/repository"
	"splitbase-backend/services"
	"splitbase-backend/workers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	if os.Getenv("APP_ENV") == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)
	recurringRepo := repository.NewRecurringRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	tokenRepo := repository.NewTokenRepository(db)

	balanceCache := services.NewBalanceCache(cfg.BalanceCacheTTL)
	balanceService := services.NewBalanceService(groupRepo, expenseRepo, settlementRepo, balanceCache)
	userService := services.NewUserService(userRepo, tokenRepo, groupRepo, expenseRepo, settlementRepo, notificationRepo, db, cfg.JWTSecret)
	groupService := services.NewGroupService(groupRepo, notificationRepo, balanceService, db)
	expenseService := services.NewExpenseService(expenseRepo, groupRepo, notificationRepo, balanceService, db)
	settlementService := services.NewSettlementService(settlementRepo, groupRepo, notificationRepo, balanceService, db)
	recurringService := services.NewRecurringService(recurringRepo, expenseRepo, groupRepo, balanceService, db)
	notificationService := services.NewNotificationService(notificationRepo)

	authMiddleware := authmiddleware.NewAuthMiddleware(cfg.JWTSecret)

	h := handlers.NewHandlers(
		userService,
		groupService,
		expenseService,
		settlementService,
		balanceService,
		recurringService,
		notificationService,
	)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(authmiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(authmiddleware.SecurityHeaders)
	r.Use(authmiddleware.MaxBodySize(cfg.MaxBodySize))
	if cfg.Env == "production" {
		r.Use(authmiddleware.StrictTransportSecurity)
	}

	corsOptions := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	r.Use(cors.Handler(corsOptions))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(httprate.LimitByIP(cfg.AuthRateLimit, 1*time.Minute))
			h.RegisterAuthRoutes(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authmiddleware.RequireAdminKey(cfg.AdminAPIKey))
			h.RegisterAdminRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(httprate.LimitByIP(cfg.GeneralRateLimit, 1*time.Minute))
			h.RegisterRoutes(r)
		})
	})

	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	defer stopSweeps()

	recurringSweeper := workers.NewSweeper("recurring", cfg.RecurringSweepInterval,
		func(ctx context.Context, now time.Time) error {
			outcomes, err := recurringService.GenerateDue(ctx, now)
			if err != nil {
				return err
			}
			generated := 0
			for _, o := range outcomes {
				generated += o.Generated
			}
			if generated > 0 {
				zap.L().Info("Recurring expenses generated",
					zap.Int("rules", len(outcomes)),
					zap.Int("generated", generated))
			}
			return nil
		})
	go recurringSweeper.Run(sweepCtx)

	deletionSweeper := workers.NewSweeper("deletion", cfg.DeletionSweepInterval,
		func(ctx context.Context, now time.Time) error {
			anonymized, err := userService.AnonymizeDue(ctx, now)
			if err != nil {
				return err
			}
			if anonymized > 0 {
				zap.L().Info("Accounts anonymized", zap.Int("count", anonymized))
			}
			return nil
		})
	go deletionSweeper.Run(sweepCtx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopSweeps()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
