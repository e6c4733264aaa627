package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/classroom"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/config"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/notify"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/store"
)

const latestKeyTTL = 24 * time.Hour

// Worker consumes session-completion events and refreshes the Redis cache of
// each (user, subject) pair's latest tracking result, so dashboards read a
// warm view instead of querying history on every load.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	repo := classroom.NewPostgres(db.Client)

	redisClient := store.NewRedis(cfg.RedisAddr)
	bus := notify.NewRedisBus(redisClient.Client, "attention:completions")

	completions, err := bus.Subscribe(ctx)
	if err != nil {
		log.Fatalf("bus subscribe init failed: %v", err)
	}

	log.Println("worker started, waiting for completions...")
	for c := range completions {
		log.Printf("refreshing latest result for user %d subject %d", c.UserID, c.SubjectID)

		results, err := repo.GetTrackingResultsByUserAndSubject(ctx, c.UserID, c.SubjectID)
		if err != nil {
			log.Printf("fetch results for %d/%d failed: %v", c.UserID, c.SubjectID, err)
			continue
		}
		latest := classroom.Latest(results)
		if latest == nil {
			log.Printf("no results for %d/%d, skipping", c.UserID, c.SubjectID)
			continue
		}

		payload, err := json.Marshal(latest)
		if err != nil {
			log.Printf("marshal latest for %d/%d failed: %v", c.UserID, c.SubjectID, err)
			continue
		}
		key := fmt.Sprintf("attention:latest:%d:%d", c.UserID, c.SubjectID)
		if err := redisClient.Client.Set(ctx, key, payload, latestKeyTTL).Err(); err != nil {
			log.Printf("cache write %s failed: %v", key, err)
			continue
		}
		log.Printf("cached %s (score %.1f)", key, latest.AttentivenessScore)
	}

	log.Println("worker stopped")
}
