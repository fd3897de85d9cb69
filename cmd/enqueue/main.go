// Package main implements a small operational tool that enqueues a
// research session task, standing in for the producer-side API when
// testing or backfilling.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tmorehouse/researchd/internal/config"
	"github.com/tmorehouse/researchd/internal/platform/logger"
	"github.com/tmorehouse/researchd/internal/queue"
)

func main() {
	topic := flag.String("topic", "", "research topic to enqueue (required)")
	sessionID := flag.String("session-id", "", "session id; generated when omitted")
	flag.Parse()

	if *topic == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logr := logger.Setup(cfg.Server.LogLevel)

	id := *sessionID
	if id == "" {
		id = uuid.NewString()
	}

	client := redis.NewClient(&redis.Options{
		Addr: net.JoinHostPort(cfg.Redis.Host, strconv.Itoa(cfg.Redis.Port)),
		DB:   cfg.Redis.DB,
	})
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	taskQueue := queue.New(client, cfg.Queue.Key, logr)
	if err := taskQueue.Push(ctx, queue.Task{SessionID: id, Topic: *topic}); err != nil {
		log.Fatalf("failed to enqueue task: %v", err)
	}
	fmt.Printf("enqueued session %s\n", id)
}
