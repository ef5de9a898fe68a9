package main

import (
	"context"
	"errors"
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

	"creaverse/client"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

type Stats struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	RateLimited     int64
	TotalDuration   int64
}

type Config struct {
	BaseURL        string
	Workers        int
	Duration       int
	MessageCount   int
	Users          int
	Password       string
	RequestsPerSec int
}

var (
	stats Stats
)

// loadUser - залогиненный пользователь и его открытые диалоги
type loadUser struct {
	api           *client.Client
	conversations []int64
}

func main() {
	config := parseFlags()

	log.Printf("Starting test client with config: %+v", config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, err := prepareUsers(ctx, config)
	if err != nil {
		log.Fatalf("prepare users: %v", err)
	}
	log.Printf("Prepared %d users", len(users))

	if config.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(config.Duration)*time.Second)
		defer cancel()
	}

	var wg sync.WaitGroup

	requestsPerWorker := config.RequestsPerSec / config.Workers
	if requestsPerWorker == 0 {
		requestsPerWorker = 1
	}

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go worker(ctx, i, config, users[i%len(users)], requestsPerWorker, &wg)
	}

	go printStats(ctx)

	wg.Wait()
	printFinalStats()
}

func parseFlags() Config {
	config := Config{}

	flag.StringVar(&config.BaseURL, "url", "http://localhost:8080", "Creaverse API URL")
	flag.IntVar(&config.Workers, "workers", 10, "Number of concurrent workers")
	flag.IntVar(&config.Duration, "duration", 60, "Test duration in seconds (0 for infinite)")
	flag.IntVar(&config.MessageCount, "messages", 0, "Total requests to send (0 for infinite)")
	flag.IntVar(&config.Users, "users", 10, "Number of load users to register")
	flag.StringVar(&config.Password, "password", "loadtest-password", "Password of the load users")
	flag.IntVar(&config.RequestsPerSec, "rps", 100, "Requests per second target")

	flag.Parse()
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Users < 2 {
		config.Users = 2
	}
	return config
}

// prepareUsers регистрирует (или логинит) пользователей loadtest_N и открывает
// диалоги каждого с каждым
func prepareUsers(ctx context.Context, config Config) ([]*loadUser, error) {
	users := make([]*loadUser, 0, config.Users)
	ids := make([]int64, 0, config.Users)
	for i := 0; i < config.Users; i++ {
		username := fmt.Sprintf("loadtest_%d", i)
		api := client.New(config.BaseURL, nil)

		_, err := api.Register(ctx, username, config.Password, gofakeit.Name())
		if err != nil && !errors.Is(err, client.ErrConflict) {
			return nil, fmt.Errorf("register %s: %w", username, err)
		}
		user, err := api.Login(ctx, username, config.Password)
		if err != nil {
			return nil, fmt.Errorf("login %s: %w", username, err)
		}
		users = append(users, &loadUser{api: api})
		ids = append(ids, user.ID)
	}

	for i, u := range users {
		for j, peerID := range ids {
			if i == j {
				continue
			}
			conv, err := u.api.StartConversation(ctx, peerID)
			if err != nil {
				return nil, fmt.Errorf("start conversation %d -> %d: %w", ids[i], peerID, err)
			}
			u.conversations = append(u.conversations, conv.ID)
		}
	}
	return users, nil
}

func worker(ctx context.Context, id int, config Config, user *loadUser, requestsPerSec int, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(requestsPerSec))
	defer ticker.Stop()

	messagesSent := 0

	for {
		select {
		case <-ctx.Done():
			log.Printf("Worker %d stopping, sent %d messages", id, messagesSent)
			return
		case <-ticker.C:
			if config.MessageCount > 0 && int(atomic.LoadInt64(&stats.TotalRequests)) >= config.MessageCount {
				return
			}

			operations := []string{"send_message", "get_messages", "mark_as_read", "list_conversations"}
			operation := operations[rand.Intn(len(operations))]
			conversationID := user.conversations[rand.Intn(len(user.conversations))]

			start := time.Now()
			var err error

			switch operation {
			case "send_message":
				_, err = user.api.SendMessage(ctx, conversationID, gofakeit.Sentence(8), uuid.NewString())
				if err == nil {
					messagesSent++
				}
			case "get_messages":
				_, err = user.api.Messages(ctx, conversationID, 20)
			case "mark_as_read":
				_, err = user.api.MarkRead(ctx, conversationID)
			case "list_conversations":
				_, err = user.api.Conversations(ctx)
			}

			if ctx.Err() != nil {
				continue
			}
			duration := time.Since(start)

			atomic.AddInt64(&stats.TotalRequests, 1)
			atomic.AddInt64(&stats.TotalDuration, duration.Milliseconds())

			var apiErr *client.APIError
			switch {
			case err == nil:
				atomic.AddInt64(&stats.SuccessRequests, 1)
			case errors.As(err, &apiErr) && apiErr.Status == 429:
				atomic.AddInt64(&stats.RateLimited, 1)
			default:
				atomic.AddInt64(&stats.FailedRequests, 1)
			}
		}
	}
}

// summary - срез счетчиков на текущий момент
type summary struct {
	total, success, failed, limited int64
	avgLatency                      time.Duration
	successRate                     float64
}

func (s *Stats) snapshot() summary {
	sum := summary{
		total:   atomic.LoadInt64(&s.TotalRequests),
		success: atomic.LoadInt64(&s.SuccessRequests),
		failed:  atomic.LoadInt64(&s.FailedRequests),
		limited: atomic.LoadInt64(&s.RateLimited),
	}
	if sum.total > 0 {
		sum.avgLatency = time.Duration(atomic.LoadInt64(&s.TotalDuration)/sum.total) * time.Millisecond
		sum.successRate = float64(sum.success) / float64(sum.total) * 100
	}
	return sum
}

func printStats(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sum := stats.snapshot()
			log.Printf("[STATS] total=%d ok=%d failed=%d rate_limited=%d success=%.2f%% avg=%s",
				sum.total, sum.success, sum.failed, sum.limited, sum.successRate, sum.avgLatency)
		}
	}
}

func printFinalStats() {
	sum := stats.snapshot()
	log.Println("========== FINAL STATISTICS ==========")
	log.Printf("Total Requests:     %d", sum.total)
	log.Printf("Successful:         %d", sum.success)
	log.Printf("Failed:             %d", sum.failed)
	log.Printf("Rate Limited:       %d", sum.limited)
	log.Printf("Success Rate:       %.2f%%", sum.successRate)
	log.Printf("Average Latency:    %s", sum.avgLatency)
	log.Println("======================================")
}
