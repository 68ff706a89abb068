package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/phishguard/internal/config"
	"github.com/ignite/phishguard/internal/tracking"
)

// The tracking capture service runs as its own binary so it can be
// deployed on the public edge, apart from the management API.
func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	port := os.Getenv("TRACKING_PORT")
	if port == "" {
		port = "8081"
	}
	if cfg.Tracking.SigningKey == "" {
		log.Fatal("TRACKING_SIGNING_KEY is required")
	}
	if cfg.AWS.TrackingQueueURL == "" {
		log.Fatal("SQS_TRACKING_QUEUE_URL is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}

	sqsClient := sqs.NewFromConfig(awsCfg)
	pub := tracking.NewPublisher(sqsClient, cfg.AWS.TrackingQueueURL)
	signer := tracking.NewSigner(cfg.Tracking.SigningKey, cfg.Tracking.BaseURL)
	handler := tracking.NewHandler(signer, pub)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("tracking service listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down tracking service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
