package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"creaverse/browse"
	"creaverse/db"
	"creaverse/models"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 100
	MaxTags          = 10
)

type CreatePostInput struct {
	AuthorID     int64            `json:"-"`
	Caption      string           `json:"caption"`
	MediaURL     string           `json:"media_url"`
	MediaType    models.MediaType `json:"media_type"`
	ThumbnailURL string           `json:"thumbnail_url"`
	Category     string           `json:"category"`
	Tags         []string         `json:"tags"`
	IsTokenized  bool             `json:"is_tokenized"`
	TokenPrice   float64          `json:"token_price"`
}

type FeedQuery struct {
	LastID   int64  `form:"last_id"`
	Limit    int    `form:"limit"`
	Category string `form:"category"`
}

type PostService struct {
	rdb   *redis.Client
	bus   Publisher
	queue *QueueService
}

// NewPostService wires the feed cache and fan-out queue when rdb is set.
func NewPostService(rdb *redis.Client, bus Publisher) *PostService {
	ps := &PostService{rdb: rdb, bus: bus}
	if rdb != nil {
		ps.queue = NewQueueService(rdb, ps)
	}
	return ps
}

func (ps *PostService) Queue() *QueueService {
	return ps.queue
}

// CreatePost сохраняет пост и обновляет ленты подписчиков
func (ps *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.FeedPost, error) {
	post, err := ps.buildPost(ctx, in)
	if err != nil {
		return nil, err
	}

	if err = db.GetWriteDB(ctx).Create(post).Error; err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	slog.DebugContext(ctx, "post created", "post_id", post.ID, "author_id", post.UserID)

	feedPost, err := ps.toFeedPost(ctx, *post)
	if err != nil {
		return nil, err
	}

	// Добавляем задачу обновления лент в очередь
	if ps.queue != nil {
		if err := ps.queue.EnqueueFeedUpdate(ctx, *post, FeedActionCreate); err == nil {
			return feedPost, nil
		}
		slog.WarnContext(ctx, "feed queue unavailable, fanning out inline", "post_id", post.ID)
	}
	ps.fanOut(ctx, *feedPost)
	return feedPost, nil
}

func (ps *PostService) buildPost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	caption := strings.TrimSpace(in.Caption)
	mediaURL := strings.TrimSpace(in.MediaURL)
	if caption == "" && mediaURL == "" {
		return nil, fmt.Errorf("%w: post needs a caption or media", ErrInvalidInput)
	}

	mediaType := in.MediaType
	switch mediaType {
	case "":
		mediaType = models.MediaText
		if mediaURL != "" {
			mediaType = models.MediaImage
		}
	case models.MediaImage, models.MediaVideo, models.MediaAudio, models.MediaText:
	default:
		return nil, fmt.Errorf("%w: media type %q", ErrInvalidInput, in.MediaType)
	}
	if in.TokenPrice < 0 {
		return nil, fmt.Errorf("%w: token price is negative", ErrInvalidInput)
	}

	post := &models.Post{
		UserID:       in.AuthorID,
		Caption:      caption,
		MediaURL:     mediaURL,
		MediaType:    mediaType,
		ThumbnailURL: strings.TrimSpace(in.ThumbnailURL),
		Tags:         NormalizeTags(in.Tags),
		IsTokenized:  in.IsTokenized,
	}
	if in.IsTokenized {
		post.TokenPrice = in.TokenPrice
	}
	if in.Category != "" {
		category, err := categoryBySlug(ctx, in.Category)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)
			}
			return nil, err
		}
		post.CategoryID = &category.ID
	}
	return post, nil
}

// NormalizeTags lowercases tags, strips a leading '#' and drops duplicates.
func NormalizeTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		result = append(result, t)
		if len(result) == MaxTags {
			break
		}
	}
	return result
}

// fanOut добавляет пост в ленты подписчиков и автора и пушит feed_posted
func (ps *PostService) fanOut(ctx context.Context, post models.FeedPost) {
	followers, err := followerIDs(ctx, post.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get followers", "author_id", post.UserID, "error", err)
		return
	}

	recipients := append(followers, post.UserID)
	for _, userID := range recipients {
		ps.addPostToUserFeed(ctx, userID, post)
		if ps.bus != nil {
			_ = ps.bus.Publish(ctx, NewEvent(EventFeedPosted, userID, post.UserID, post.ID, "", post))
		}
	}
}

// GetFeed returns posts of followed authors and the viewer, newest first,
// paginated by last_id.
func (ps *PostService) GetFeed(ctx context.Context, viewerID int64, q FeedQuery) (*models.FeedResponse, error) {
	if q.Limit <= 0 || q.Limit > MaxFeedLimit {
		q.Limit = DefaultFeedLimit
	}

	cacheable := q.Category == "" && ps.rdb != nil
	if cacheable {
		// a short page may be a partial cache, so the cache only serves a page
		// when it also holds the first post of the next one
		feedPosts, err := ps.getFeedFromCache(ctx, viewerID, q.LastID, q.Limit+1)
		if err == nil && len(feedPosts) > q.Limit {
			return feedResponse(feedPosts[:q.Limit], true), nil
		}
	}

	authors, err := followingIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	authors = append(authors, viewerID)

	query := db.GetReadOnlyDB(ctx).Where("user_id IN ?", authors)
	if q.Category != "" {
		category, err := categoryBySlug(ctx, q.Category)
		if err != nil {
			return nil, err
		}
		query = query.Where("category_id = ?", category.ID)
	}
	if q.LastID > 0 {
		query = query.Where("id < ?", q.LastID)
	}

	var posts []models.Post
	if err := query.Order("id DESC").Limit(q.Limit + 1).Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to get feed posts: %w", err)
	}
	hasMore := len(posts) > q.Limit
	if hasMore {
		posts = posts[:q.Limit]
	}

	feedPosts, err := ps.withAuthors(ctx, posts)
	if err != nil {
		return nil, err
	}
	if cacheable && q.LastID == 0 {
		ps.cacheFeed(ctx, viewerID, feedPosts)
	}
	return feedResponse(feedPosts, hasMore), nil
}

func feedResponse(posts []models.FeedPost, hasMore bool) *models.FeedResponse {
	resp := &models.FeedResponse{Posts: posts, HasMore: hasMore}
	if len(posts) > 0 {
		resp.LastID = posts[len(posts)-1].ID
	}
	return resp
}

// GetProfilePosts returns every post of the author, newest first.
func (ps *PostService) GetProfilePosts(ctx context.Context, username string) ([]models.FeedPost, error) {
	var author models.User
	err := db.GetReadOnlyDB(ctx).Where("lower(username) = lower(?)", username).First(&author).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var posts []models.Post
	if err := db.GetReadOnlyDB(ctx).Where("user_id = ?", author.ID).Order("id DESC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list profile posts: %w", err)
	}
	result := make([]models.FeedPost, 0, len(posts))
	for _, p := range posts {
		result = append(result, models.FeedPost{Post: p, Author: author.Summary()})
	}
	return result, nil
}

// BrowseProfileFeed resolves postID against the author's posts. An unknown
// post id lands on the newest post with Matched false; an author without
// posts is not found.
func (ps *PostService) BrowseProfileFeed(ctx context.Context, username string, postID int64) (*models.BrowseResponse, error) {
	posts, err := ps.GetProfilePosts(ctx, username)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	index, matched := browse.Locate(ids, postID)
	if index < 0 {
		return nil, fmt.Errorf("no posts by %q: %w", username, ErrNotFound)
	}

	resp := &models.BrowseResponse{
		Post:    posts[index],
		Index:   index,
		Total:   len(posts),
		Matched: matched,
	}
	cursor := browse.NewCursor(len(ids), index)
	if cursor.HasPrev() {
		prev := ids[index-1]
		resp.PrevID = &prev
	}
	if cursor.HasNext() {
		next := ids[index+1]
		resp.NextID = &next
	}
	return resp, nil
}

func (ps *PostService) GetPost(ctx context.Context, postID int64) (*models.FeedPost, error) {
	post, err := loadPost(ctx, db.GetReadOnlyDB(ctx), postID)
	if err != nil {
		return nil, err
	}
	return ps.toFeedPost(ctx, *post)
}

func loadPost(ctx context.Context, tx *gorm.DB, postID int64) (*models.Post, error) {
	var post models.Post
	err := tx.WithContext(ctx).First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("post %d: %w", postID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost удаляет пост автора вместе с реакциями и убирает его из лент
func (ps *PostService) DeletePost(ctx context.Context, userID, postID int64) error {
	var post models.Post
	err := db.GetWriteDB(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := loadPost(ctx, tx, postID)
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return ErrForbidden
		}
		post = *p
		for _, model := range []interface{}{&models.PostLike{}, &models.Comment{}, &models.Share{}, &models.Review{}} {
			if err := tx.Where("post_id = ?", postID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		return err
	}

	if ps.queue != nil {
		if err := ps.queue.EnqueueFeedUpdate(ctx, post, FeedActionDelete); err == nil {
			return nil
		}
	}
	ps.removePostFromFeeds(ctx, post.UserID, post.ID)
	return nil
}

func (ps *PostService) toFeedPost(ctx context.Context, post models.Post) (*models.FeedPost, error) {
	posts, err := ps.withAuthors(ctx, []models.Post{post})
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("author of post %d: %w", post.ID, ErrNotFound)
	}
	return &posts[0], nil
}

// withAuthors attaches author summaries, dropping posts whose author is gone.
func (ps *PostService) withAuthors(ctx context.Context, posts []models.Post) ([]models.FeedPost, error) {
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.UserID)
	}
	authors, err := loadSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	result := make([]models.FeedPost, 0, len(posts))
	for _, p := range posts {
		author, ok := authors[p.UserID]
		if !ok {
			continue
		}
		result = append(result, models.FeedPost{Post: p, Author: author})
	}
	return result, nil
}
