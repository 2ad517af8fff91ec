package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/engagement-tracker/internal/config"
	"github.com/ignite/engagement-tracker/internal/tracking"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	consume := flag.Bool("consume", false, "also run the SQS consumer in this process (sqs mode only)")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	var dedup *tracking.DedupCache
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("parse redis url: %v", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		dedup = tracking.NewDedupCache(rdb, time.Duration(cfg.Redis.DedupTTLDays)*24*time.Hour)
	}

	store := tracking.NewStore(db)
	pipeline := tracking.NewPipeline(cfg.Tracking.Scoring, store)
	recorder := tracking.NewEventRecorder(store, dedup, cfg.Tracking.RealEngagementCutoff)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sink tracking.EventSink
	var queue *tracking.RecordQueue
	var consumer *tracking.Consumer

	switch cfg.Tracking.QueueMode {
	case "sqs":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatalf("aws config: %v", err)
		}
		sqsClient := sqs.NewFromConfig(awsCfg)
		sink = tracking.NewPublisher(sqsClient, cfg.Tracking.SQSQueueURL)
		if *consume {
			consumer = tracking.NewConsumer(sqsClient, cfg.Tracking.SQSQueueURL, pipeline, recorder)
			consumer.Start(ctx)
		}
	default:
		queue = tracking.NewRecordQueue(pipeline, recorder, cfg.Tracking.QueueSize, cfg.Tracking.Workers)
		queue.Start(ctx)
		sink = queue
	}

	handler := tracking.NewHandler(sink)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("tracking service listening on %s (queue_mode=%s)", srv.Addr, cfg.Tracking.QueueMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down tracking service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	if consumer != nil {
		consumer.Stop()
	}
	if queue != nil {
		queue.Stop()
	}
}
