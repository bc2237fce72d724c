package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-service/config"
	"storefront-service/internal/admission"
	"storefront-service/internal/api"
	"storefront-service/internal/broker"
	"storefront-service/internal/gateway"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/service"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// The admission gate prefers Redis so limits hold across replicas; a
	// process-local bounded store is the fallback.
	var counters admission.Counters
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Redis unavailable, admission counters are process-local: %v", err)
		counters = admission.NewMemoryCounters()
	} else {
		defer redisClient.Close()
		log.Println("Redis connected")
		counters = admission.NewRedisCounters(redisClient)
	}

	gate := admission.NewGate(counters, admission.Config{
		Requests:           cfg.RateLimit.Requests,
		Window:             cfg.RateLimit.Window,
		IPVelocityLimit:    cfg.Fraud.IPVelocityLimit,
		EmailVelocityLimit: cfg.Fraud.EmailVelocityLimit,
		FailureLimit:       cfg.Fraud.FailureLimit,
	})

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	if cfg.Gateway.SecretKey == "" || cfg.Gateway.AppBaseURL == "" {
		logger.Warn("Gateway secret or APP_URL missing; payment routes will refuse requests")
	}

	gatewayClient := gateway.NewClient(cfg.Gateway.APIBaseURL, cfg.Gateway.SecretKey)

	orderService := service.NewOrderService(db, eventPublisher)
	paymentService := service.NewPaymentService(db, gatewayClient, eventPublisher, gate,
		cfg.Gateway.SecretKey, cfg.Gateway.AppBaseURL)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	orderConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	settlementWorker := worker.NewSettlementWorker(orderConsumer, db)
	go func() {
		if err := settlementWorker.Start(workerCtx); err != nil {
			log.Printf("Settlement worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(orderService, paymentService, gate)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	settlementWorker.Stop()

	log.Println("Server exited")
}
