package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"feelings/feedclient"
	"feelings/models"
)

type Stats struct {
	TotalActions   int64
	SuccessActions int64
	FailedActions  int64
	TotalDuration  int64
}

type Config struct {
	ServerURL string
	Workers   int
	Duration  int
	RPS       int
}

var stats Stats

func main() {
	config := parseFlags()

	log.Printf("Starting feed client with config: %+v", config)

	done := make(chan bool)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	actionsPerWorker := config.RPS / config.Workers
	if actionsPerWorker == 0 {
		actionsPerWorker = 1
	}

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go worker(i, config, actionsPerWorker, done, &wg)
	}

	go printStats()

	if config.Duration > 0 {
		go func() {
			time.Sleep(time.Duration(config.Duration) * time.Second)
			close(done)
		}()
	}

	go func() {
		<-sigChan
		log.Println("\nReceived interrupt signal, shutting down...")
		close(done)
	}()

	wg.Wait()
	printFinalStats()
}

func parseFlags() Config {
	config := Config{}

	flag.StringVar(&config.ServerURL, "url", "http://localhost:8080", "Feed server URL")
	flag.IntVar(&config.Workers, "workers", 10, "Number of concurrent clients")
	flag.IntVar(&config.Duration, "duration", 60, "Run duration in seconds (0 for infinite)")
	flag.IntVar(&config.RPS, "rps", 20, "Actions per second target")

	flag.Parse()
	return config
}

func worker(id int, config Config, actionsPerSec int, done chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	role := models.CHILD
	if id%2 == 1 {
		role = models.PARENT
	}
	client := feedclient.New(config.ServerURL, fmt.Sprintf("worker-%d", id), role)

	ctx := context.Background()
	if err := client.Connect(ctx); err != nil {
		log.Printf("Worker %d failed to connect: %v", id, err)
		return
	}
	defer client.Close()

	go func() {
		for notice := range client.Notices() {
			log.Printf("Worker %d notice: %s", id, notice)
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(actionsPerSec))
	defer ticker.Stop()

	actions := 0

	for {
		select {
		case <-done:
			log.Printf("Worker %d stopping, ran %d actions", id, actions)
			return
		case <-ticker.C:
			start := time.Now()
			err := runAction(ctx, client, id)
			duration := time.Since(start)
			actions++

			atomic.AddInt64(&stats.TotalActions, 1)
			atomic.AddInt64(&stats.TotalDuration, duration.Milliseconds())
			if err != nil {
				atomic.AddInt64(&stats.FailedActions, 1)
			} else {
				atomic.AddInt64(&stats.SuccessActions, 1)
			}
		}
	}
}

func runAction(ctx context.Context, client *feedclient.Client, id int) error {
	texts := []string{
		"feeling happy today",
		"a bit tired after school",
		"excited about the weekend",
		"missing grandma",
		"proud of my drawing",
		"nervous about the test",
	}

	feed := client.Feelings()
	operations := []string{"post", "like", "comment"}
	operation := operations[rand.Intn(len(operations))]

	// Nothing to react to yet
	if len(feed) == 0 {
		operation = "post"
	}

	switch operation {
	case "post":
		return client.PostFeeling(ctx, texts[rand.Intn(len(texts))])
	case "like":
		target := feed[rand.Intn(len(feed))]
		err := client.ToggleLike(ctx, target.ID)
		if err == feedclient.ErrSelfAction {
			return nil
		}
		return err
	default:
		target := feed[rand.Intn(len(feed))]
		err := client.AddComment(ctx, target.ID, "thinking of you")
		if err == feedclient.ErrSelfAction {
			return nil
		}
		return err
	}
}

func printStats() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		total := atomic.LoadInt64(&stats.TotalActions)
		success := atomic.LoadInt64(&stats.SuccessActions)
		failed := atomic.LoadInt64(&stats.FailedActions)
		totalDuration := atomic.LoadInt64(&stats.TotalDuration)

		var avgLatency int64
		if total > 0 {
			avgLatency = totalDuration / total
		}

		var successRate float64
		if total > 0 {
			successRate = float64(success) / float64(total) * 100
		}

		log.Printf("[STATS] Total: %d | Success: %d | Failed: %d | Success Rate: %.2f%% | Avg Latency: %dms",
			total, success, failed, successRate, avgLatency)
	}
}

func printFinalStats() {
	total := atomic.LoadInt64(&stats.TotalActions)
	success := atomic.LoadInt64(&stats.SuccessActions)
	failed := atomic.LoadInt64(&stats.FailedActions)
	totalDuration := atomic.LoadInt64(&stats.TotalDuration)

	var avgLatency int64
	if total > 0 {
		avgLatency = totalDuration / total
	}

	var successRate float64
	if total > 0 {
		successRate = float64(success) / float64(total) * 100
	}

	log.Println("\n========== FINAL STATISTICS ==========")
	log.Printf("Total Actions:      %d", total)
	log.Printf("Successful:         %d", success)
	log.Printf("Failed:             %d", failed)
	log.Printf("Success Rate:       %.2f%%", successRate)
	log.Printf("Average Latency:    %dms", avgLatency)
	log.Println("======================================")
}
