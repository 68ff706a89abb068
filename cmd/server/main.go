package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/phishguard/internal/api"
	"github.com/ignite/phishguard/internal/campaign"
	"github.com/ignite/phishguard/internal/config"
	"github.com/ignite/phishguard/internal/directory"
	"github.com/ignite/phishguard/internal/export"
	"github.com/ignite/phishguard/internal/funnel"
	"github.com/ignite/phishguard/internal/live"
	"github.com/ignite/phishguard/internal/risk"
	"github.com/ignite/phishguard/internal/tracking"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
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
	log.Println("Connected to database")

	// Redis is optional. Without it the live channel falls back to
	// single-instance broadcast and the scheduler lock uses Postgres.
	var redisClient *redis.Client
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel = context.WithTimeout(context.Background(), 3*time.Second)
	if err := rc.Ping(pingCtx).Err(); err != nil {
		log.Printf("WARNING: redis unavailable (%v), live fanout disabled", err)
		rc.Close()
	} else {
		redisClient = rc
	}
	pingCancel()

	campaigns := campaign.NewStore(db)
	events := tracking.NewStore(db)
	dir := directory.NewPostgresProvider(db)
	training := directory.NewPostgresTraining(db)
	scorer := risk.NewScorer(dir, training)

	// Rebuild the in-memory funnel from the durable event log so
	// restarts do not lose interaction state.
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
	log.Printf("Replayed %d tracking events across %d campaigns", len(all), len(ids))

	hub := live.NewHub(bearerAuthenticator(os.Getenv("LIVE_AUTH_TOKEN")))

	var fanout *live.Fanout
	fanoutCtx, fanoutCancel := context.WithCancel(context.Background())
	defer fanoutCancel()
	if redisClient != nil {
		fanout = live.NewFanout(redisClient, hub)
		// Fold worker-side events into this process's tracker so the
		// analytics endpoints keep moving after boot.
		fanout.SetApply(func(channel string, msg live.Message) {
			if msg.Type != live.MsgAnalyticsUpdate {
				return
			}
			var payload struct {
				Event tracking.Event `json:"event"`
			}
			if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Event.CampaignID == "" {
				return
			}
			if !tracker.IsRegistered(payload.Event.CampaignID) {
				if id, err := uuid.Parse(payload.Event.CampaignID); err == nil {
					lookupCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
					if known, err := campaigns.Exists(lookupCtx, id); err == nil && known {
						tracker.RegisterCampaign(payload.Event.CampaignID)
					}
					cancel()
				}
			}
			tracker.Apply(payload.Event)
		})
		fanout.Start(fanoutCtx)
	}

	var flusher *export.ReportFlusher
	if cfg.Reports.Enabled && cfg.AWS.ReportBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			log.Fatalf("aws config: %v", err)
		}
		flusher = export.NewReportFlusher(
			s3.NewFromConfig(awsCfg), cfg.AWS.ReportBucket,
			campaigns, tracker, dir.DepartmentOf,
			time.Duration(cfg.Reports.FlushIntervalMinutes)*time.Minute)
		flusher.Start()
	}

	server := api.NewServer(db, campaigns, events, tracker, scorer, dir, hub)
	server.SetPlanHorizon(cfg.Scheduler.PlanHorizonDays)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Printf("API server listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if flusher != nil {
		flusher.Stop()
	}
	if fanout != nil {
		fanout.Stop()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// bearerAuthenticator accepts websocket connects carrying the shared
// token. With no token configured, connects are accepted and identified
// by remote address (local development).
func bearerAuthenticator(token string) live.Authenticator {
	return func(r *http.Request) (string, bool) {
		if token == "" {
			return r.RemoteAddr, true
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) || auth[len(prefix):] != token {
			return "", false
		}
		if uid := r.URL.Query().Get("user"); uid != "" {
			return uid, true
		}
		return r.RemoteAddr, true
	}
}
