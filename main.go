package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"delixmi-order-core/internal/cart"
	"delixmi-order-core/internal/config"
	"delixmi-order-core/internal/db"
	"delixmi-order-core/internal/dispatch"
	"delixmi-order-core/internal/httpapi"
	"delixmi-order-core/internal/httpapi/handlers"
	"delixmi-order-core/internal/logger"
	"delixmi-order-core/internal/middleware"
	"delixmi-order-core/internal/order"
	"delixmi-order-core/internal/payment"
	"delixmi-order-core/internal/queue"
	"delixmi-order-core/internal/realtime"
	"delixmi-order-core/internal/routing"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	var queueClient *queue.Client
	if cfg.RabbitMQURL != "" {
		qc, err := queue.New(cfg.RabbitMQURL)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq connection failed", zap.Error(err))
			}
			log.Warn("rabbitmq connection failed; realtime fan-out stays single-node", zap.Error(err))
			qc = nil
		}
		queueClient = qc
		if queueClient != nil {
			defer queueClient.Close()
		}
	} else {
		log.Info("realtime cross-node fan-out disabled (RABBITMQ_URL is empty)")
	}

	bus, err := realtime.NewBus(queueClient, cfg.RealtimeExchange, log)
	if err != nil {
		log.Fatal("realtime bus init failed", zap.Error(err))
	}
	if queueClient != nil {
		hostname, _ := os.Hostname()
		consumeQueue := "order.events." + hostname
		go func() {
			if err := bus.ConsumeCrossNode(consumeQueue); err != nil {
				log.Error("realtime cross-node consumer stopped", zap.Error(err))
			}
		}()
	}

	distanceProvider := routing.NewHTTPProvider(cfg.RoutingProviderBaseURL, cfg.RoutingProviderTimeout)

	cartRepo := cart.NewRepository(pool)
	cartSvc := cart.NewService(cartRepo)

	orderRepo := order.NewRepository(pool)

	dispatchRepo := dispatch.NewRepository(pool)
	dispatchEngine := dispatch.NewEngine(dispatchRepo, bus)

	stateMachine := order.NewStateMachine(orderRepo, bus, dispatchEngine, log)

	paymentGateway := payment.NewHTTPGateway(cfg.PaymentGatewayBaseURL, cfg.PaymentGatewayAPIKey, cfg.PaymentRequestTimeout)
	webhookLog := payment.NewWebhookLog(pool)
	coordinator := payment.NewCoordinator(orderRepo, paymentGateway, webhookLog, bus, cfg.PaymentWebhookSecret, cfg.PaymentCallbackBaseURL, log)

	assembler := order.NewAssembler(orderRepo, cartRepo, bus, coordinator, distanceProvider.Distance)

	h := &handlers.Handler{
		Logger:       log,
		Config:       cfg,
		Cart:         cartSvc,
		CartRepo:     cartRepo,
		Assembler:    assembler,
		StateMachine: stateMachine,
		Orders:       orderRepo,
		Payments:     coordinator,
		Dispatch:     dispatchEngine,
	}

	wsHandler := realtime.NewHandler(bus, cfg.JWTSecret, log)
	router := httpapi.NewRouter(h, cfg, log, middleware.Auth(cfg.JWTSecret), wsHandler)

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("order-lifecycle api listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}
