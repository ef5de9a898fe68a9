package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"creaverse/models"

	"github.com/go-redis/redis/v8"
)

const (
	FEED_UPDATE_QUEUE  = "feed_update_queue"
	QUEUE_WORKER_COUNT = 5
)

const (
	FeedActionCreate = "create"
	FeedActionDelete = "delete"
)

// FeedUpdateTask is one fan-out job pushed to the Redis list.
type FeedUpdateTask struct {
	Post   models.Post `json:"post"`
	Action string      `json:"action"`
}

type QueueService struct {
	rdb   *redis.Client
	posts *PostService
}

func NewQueueService(rdb *redis.Client, posts *PostService) *QueueService {
	return &QueueService{rdb: rdb, posts: posts}
}

// StartWorkers запускает воркеры для обработки очереди
func (qs *QueueService) StartWorkers(ctx context.Context) {
	for i := 0; i < QUEUE_WORKER_COUNT; i++ {
		go qs.worker(ctx, i)
	}
}

func (qs *QueueService) worker(ctx context.Context, workerID int) {
	slog.Info("feed update worker started", "worker", workerID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("feed update worker stopping", "worker", workerID)
			return
		default:
		}

		// Получаем задачу из очереди (блокирующий вызов с таймаутом)
		result, err := qs.rdb.BLPop(ctx, 5*time.Second, FEED_UPDATE_QUEUE).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			slog.Error("feed worker failed to get task", "worker", workerID, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var task FeedUpdateTask
		if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
			slog.Error("feed worker failed to unmarshal task", "worker", workerID, "error", err)
			continue
		}
		qs.ProcessTask(ctx, task)
	}
}

// ProcessTask applies one fan-out job.
func (qs *QueueService) ProcessTask(ctx context.Context, task FeedUpdateTask) {
	switch task.Action {
	case FeedActionCreate:
		feedPost, err := qs.posts.toFeedPost(ctx, task.Post)
		if err != nil {
			slog.ErrorContext(ctx, "feed task skipped", "post_id", task.Post.ID, "error", err)
			return
		}
		qs.posts.fanOut(ctx, *feedPost)
	case FeedActionDelete:
		qs.posts.removePostFromFeeds(ctx, task.Post.UserID, task.Post.ID)
	default:
		slog.WarnContext(ctx, "unknown feed task action", "action", task.Action)
	}
}

// EnqueueFeedUpdate добавляет задачу обновления ленты в очередь
func (qs *QueueService) EnqueueFeedUpdate(ctx context.Context, post models.Post, action string) error {
	taskData, err := json.Marshal(FeedUpdateTask{Post: post, Action: action})
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := qs.rdb.RPush(ctx, FEED_UPDATE_QUEUE, taskData).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	slog.DebugContext(ctx, "enqueued feed update", "post_id", post.ID, "action", action)
	return nil
}

// Stats возвращает статистику очереди
func (qs *QueueService) Stats(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"queue_name":   FEED_UPDATE_QUEUE,
		"queue_length": qs.rdb.LLen(ctx, FEED_UPDATE_QUEUE).Val(),
		"worker_count": QUEUE_WORKER_COUNT,
	}
}
