package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"creaverse/db"
	"creaverse/models"

	"github.com/go-redis/redis/v8"
)

const (
	FEED_CACHE_TTL  = 24 * time.Hour // TTL для кеша ленты
	MAX_FEED_SIZE   = 1000           // Максимальное количество постов в ленте
	FEED_KEY_PREFIX = "user_feed:"   // Префикс для ключей ленты в Redis
	POST_KEY_PREFIX = "post:"        // Префикс для кеша постов
)

func feedKey(userID int64) string {
	return FEED_KEY_PREFIX + strconv.FormatInt(userID, 10)
}

func postKey(postID int64) string {
	return POST_KEY_PREFIX + strconv.FormatInt(postID, 10)
}

// getFeedFromCache reads one page of the user's cached feed. Feeds are sorted
// sets scored by post id. Posts whose cached body expired are reloaded from
// the database.
func (ps *PostService) getFeedFromCache(ctx context.Context, userID, lastID int64, limit int) ([]models.FeedPost, error) {
	if ps.rdb == nil {
		return nil, fmt.Errorf("redis not available")
	}
	key := feedKey(userID)

	var start int64
	if lastID > 0 {
		// Находим позицию lastID в отсортированном множестве
		rank, err := ps.rdb.ZRevRank(ctx, key, strconv.FormatInt(lastID, 10)).Result()
		if err != nil {
			return nil, err
		}
		start = rank + 1
	}
	stop := start + int64(limit) - 1

	members, err := ps.rdb.ZRevRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []models.FeedPost{}, nil
	}

	pipe := ps.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(members))
	for i, member := range members {
		cmds[i] = pipe.Get(ctx, POST_KEY_PREFIX+member)
	}
	if _, err = pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	cached := make(map[int64]models.FeedPost, len(members))
	ids := make([]int64, 0, len(members))
	var missing []int64
	for i, cmd := range cmds {
		id, err := strconv.ParseInt(members[i], 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)

		var feedPost models.FeedPost
		val, err := cmd.Result()
		if err == nil && json.Unmarshal([]byte(val), &feedPost) == nil {
			cached[id] = feedPost
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		var posts []models.Post
		if err := db.GetReadOnlyDB(ctx).Where("id IN ?", missing).Find(&posts).Error; err != nil {
			return nil, err
		}
		reloaded, err := ps.withAuthors(ctx, posts)
		if err != nil {
			return nil, err
		}
		for _, p := range reloaded {
			cached[p.ID] = p
			ps.cachePost(ctx, p)
		}
	}

	feedPosts := make([]models.FeedPost, 0, len(ids))
	for _, id := range ids {
		// posts deleted meanwhile are skipped
		if p, ok := cached[id]; ok {
			feedPosts = append(feedPosts, p)
		}
	}
	return feedPosts, nil
}

// cacheFeed заменяет закешированную ленту пользователя
func (ps *PostService) cacheFeed(ctx context.Context, userID int64, posts []models.FeedPost) {
	if len(posts) == 0 || ps.rdb == nil {
		return
	}
	key := feedKey(userID)

	pipe := ps.rdb.Pipeline()
	pipe.Del(ctx, key)
	for _, post := range posts {
		pipe.ZAdd(ctx, key, &redis.Z{
			Score:  float64(post.ID),
			Member: strconv.FormatInt(post.ID, 10),
		})
		if data, err := json.Marshal(post); err == nil {
			pipe.Set(ctx, postKey(post.ID), data, FEED_CACHE_TTL)
		}
	}
	pipe.ZRemRangeByRank(ctx, key, 0, -MAX_FEED_SIZE-1)
	pipe.Expire(ctx, key, FEED_CACHE_TTL)

	if _, err := pipe.Exec(ctx); err != nil {
		slog.WarnContext(ctx, "failed to cache feed", "user_id", userID, "error", err)
	}
}

func (ps *PostService) cachePost(ctx context.Context, post models.FeedPost) {
	data, err := json.Marshal(post)
	if err != nil {
		return
	}
	ps.rdb.Set(ctx, postKey(post.ID), data, FEED_CACHE_TTL)
}

// addPostToUserFeed добавляет пост в ленту конкретного пользователя
func (ps *PostService) addPostToUserFeed(ctx context.Context, userID int64, post models.FeedPost) {
	if ps.rdb == nil {
		return
	}
	key := feedKey(userID)

	data, err := json.Marshal(post)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal post for caching", "post_id", post.ID, "error", err)
		return
	}

	pipe := ps.rdb.Pipeline()
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(post.ID),
		Member: strconv.FormatInt(post.ID, 10),
	})
	pipe.Set(ctx, postKey(post.ID), data, FEED_CACHE_TTL)
	pipe.ZRemRangeByRank(ctx, key, 0, -MAX_FEED_SIZE-1)
	pipe.Expire(ctx, key, FEED_CACHE_TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.WarnContext(ctx, "failed to add post to feed", "user_id", userID, "post_id", post.ID, "error", err)
	}
}

// removePostFromFeeds удаляет пост из лент подписчиков и автора
func (ps *PostService) removePostFromFeeds(ctx context.Context, authorID, postID int64) {
	if ps.rdb == nil {
		return
	}
	followers, err := followerIDs(ctx, authorID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get followers", "author_id", authorID, "error", err)
		return
	}

	pipe := ps.rdb.Pipeline()
	member := strconv.FormatInt(postID, 10)
	for _, userID := range append(followers, authorID) {
		pipe.ZRem(ctx, feedKey(userID), member)
	}
	pipe.Del(ctx, postKey(postID))
	if _, err := pipe.Exec(ctx); err != nil {
		slog.WarnContext(ctx, "failed to remove post from feeds", "post_id", postID, "error", err)
	}
}

// refreshCachedPost drops the cached body so the next read picks up new
// counters.
func (ps *PostService) refreshCachedPost(ctx context.Context, postID int64) {
	if ps.rdb == nil {
		return
	}
	ps.rdb.Del(ctx, postKey(postID))
}

// InvalidateUserFeed инвалидирует кеш ленты пользователя
func (ps *PostService) InvalidateUserFeed(ctx context.Context, userID int64) error {
	if ps == nil || ps.rdb == nil {
		return nil
	}
	return ps.rdb.Del(ctx, feedKey(userID)).Err()
}

// RebuildUserFeed перестраивает кеш ленты пользователя из БД
func (ps *PostService) RebuildUserFeed(ctx context.Context, userID int64) error {
	if ps.rdb == nil {
		return fmt.Errorf("feed cache: %w", ErrUnavailable)
	}
	if err := ps.InvalidateUserFeed(ctx, userID); err != nil {
		return err
	}
	_, err := ps.GetFeed(ctx, userID, FeedQuery{Limit: MaxFeedLimit})
	return err
}
