package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/phishguard/internal/campaign"
	"github.com/ignite/phishguard/internal/config"
	"github.com/ignite/phishguard/internal/directory"
	"github.com/ignite/phishguard/internal/funnel"
	"github.com/ignite/phishguard/internal/tracking"
	"github.com/ignite/phishguard/internal/worker"
)

// The worker binary runs the background loops: the campaign dispatch
// scheduler and the tracking event consumer.
func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.AWS.TrackingQueueURL == "" {
		log.Fatal("SQS_TRACKING_QUEUE_URL is required")
	}
	if cfg.AWS.DeliveryQueueURL == "" {
		log.Fatal("SQS_DELIVERY_QUEUE_URL is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Failed to ping database: %v", err)
	}
	pingCancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}
	sqsClient := sqs.NewFromConfig(awsCfg)

	var redisClient *redis.Client
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel = context.WithTimeout(context.Background(), 3*time.Second)
	if err := rc.Ping(pingCtx).Err(); err != nil {
		log.Printf("WARNING: redis unavailable (%v), using database advisory locks", err)
		rc.Close()
	} else {
		redisClient = rc
	}
	pingCancel()

	campaigns := campaign.NewStore(db)
	events := tracking.NewStore(db)
	dir := directory.NewPostgresProvider(db)

	tracker := funnel.NewTracker()
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	ids, err := campaigns.IDs(bootCtx)
	if err != nil {
		bootCancel()
		log.Fatalf("Failed to load campaign ids: %v", err)
	}
	for _, id := range ids {
		tracker.RegisterCampaign(id)
	}
	all, err := events.ListAll(bootCtx)
	bootCancel()
	if err != nil {
		log.Fatalf("Failed to replay events: %v", err)
	}
	tracker.Replay(all)

	deliverer := worker.NewSQSDeliverer(sqsClient, cfg.AWS.DeliveryQueueURL)
	scheduler := worker.NewCampaignScheduler(db, campaigns, dir, deliverer)
	scheduler.SetPollInterval(cfg.Scheduler.PollInterval())
	if redisClient != nil {
		scheduler.SetRedisClient(redisClient)
	}

	consumer := worker.NewEventConsumer(sqsClient, cfg.AWS.TrackingQueueURL, events, tracker)
	if redisClient != nil {
		consumer.SetRedisClient(redisClient)
	}
	// Campaigns created after this worker booted are still real; check
	// the database before treating their events as orphans.
	consumer.SetCampaignLookup(func(ctx context.Context, campaignID string) (bool, error) {
		id, err := uuid.Parse(campaignID)
		if err != nil {
			return false, nil
		}
		return campaigns.Exists(ctx, id)
	})

	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	consumer.Start(consumerCtx)

	// Small ops endpoint for scrapes and liveness.
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		metricsPort = "9091"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	opsSrv := &http.Server{Addr: ":" + metricsPort, Handler: mux}
	go func() {
		log.Printf("worker metrics listening on :%s", metricsPort)
		if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down worker...")

	scheduler.Stop()
	consumer.Stop()
	consumerCancel()
	if redisClient != nil {
		redisClient.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opsSrv.Shutdown(ctx)
}
