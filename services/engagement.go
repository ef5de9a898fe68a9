package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"creaverse/db"
	"creaverse/models"

	"gorm.io/gorm"
)

const MaxCommentLength = 2000

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_]{3,30})`)

type CommentView struct {
	models.Comment
	Author models.ProfileSummary `json:"author"`
}

type ReviewInput struct {
	UserID  int64  `json:"-"`
	PostID  int64  `json:"-"`
	Rating  int    `json:"rating"`
	Content string `json:"content"`
}

// engage runs fn in a transaction on the locked post and returns the post as
// stored after fn.
func (ps *PostService) engage(ctx context.Context, postID int64, fn func(tx *gorm.DB, post *models.Post) error) (*models.Post, error) {
	var updated *models.Post
	err := db.GetWriteDB(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := loadPost(ctx, tx, postID)
		if err != nil {
			return err
		}
		if err := fn(tx, post); err != nil {
			return err
		}
		updated, err = loadPost(ctx, tx, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	ps.refreshCachedPost(ctx, postID)
	return updated, nil
}

func bumpCounter(tx *gorm.DB, postID int64, column string, delta int) error {
	query := tx.Model(&models.Post{}).Where("id = ?", postID)
	if delta < 0 {
		query = query.Where(column+" > 0")
	}
	return query.UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
}

func (ps *PostService) publish(ctx context.Context, ev Event) {
	if ps.bus != nil {
		_ = ps.bus.Publish(ctx, ev)
	}
}

// LikePost ставит лайк; один лайк на пользователя
func (ps *PostService) LikePost(ctx context.Context, userID, postID int64) (*models.Post, error) {
	post, err := ps.engage(ctx, postID, func(tx *gorm.DB, post *models.Post) error {
		err := tx.Create(&models.PostLike{PostID: postID, UserID: userID}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("like: %w", ErrAlreadyExists)
		}
		if err != nil {
			return err
		}
		return bumpCounter(tx, postID, "likes_count", 1)
	})
	if err != nil {
		return nil, err
	}
	ps.publish(ctx, NewEvent(EventLike, post.UserID, userID, postID, "liked your post", nil))
	return post, nil
}

func (ps *PostService) UnlikePost(ctx context.Context, userID, postID int64) (*models.Post, error) {
	return ps.engage(ctx, postID, func(tx *gorm.DB, post *models.Post) error {
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("like: %w", ErrNotFound)
		}
		return bumpCounter(tx, postID, "likes_count", -1)
	})
}

// AddComment добавляет комментарий и уведомляет автора и упомянутых пользователей
func (ps *PostService) AddComment(ctx context.Context, userID, postID int64, content string) (*CommentView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: comment is empty", ErrInvalidInput)
	}
	if len(content) > MaxCommentLength {
		return nil, fmt.Errorf("%w: comment is longer than %d bytes", ErrInvalidInput, MaxCommentLength)
	}

	comment := &models.Comment{PostID: postID, UserID: userID, Content: content}
	post, err := ps.engage(ctx, postID, func(tx *gorm.DB, post *models.Post) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return bumpCounter(tx, postID, "comments_count", 1)
	})
	if err != nil {
		return nil, err
	}

	ps.publish(ctx, NewEvent(EventComment, post.UserID, userID, postID, "commented on your post", comment))
	ps.notifyMentions(ctx, userID, post, content)

	summaries, err := loadSummaries(ctx, []int64{userID})
	if err != nil {
		return nil, err
	}
	return &CommentView{Comment: *comment, Author: summaries[userID]}, nil
}

// ParseMentions returns the distinct usernames mentioned as @name.
func ParseMentions(content string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		name := strings.ToLower(m[1])
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func (ps *PostService) notifyMentions(ctx context.Context, authorID int64, post *models.Post, content string) {
	names := ParseMentions(content)
	if len(names) == 0 {
		return
	}
	var ids []int64
	err := db.GetReadOnlyDB(ctx).Model(&models.User{}).
		Where("lower(username) IN ?", names).
		Pluck("id", &ids).Error
	if err != nil {
		slog.WarnContext(ctx, "mention lookup failed", "post_id", post.ID, "error", err)
		return
	}
	for _, id := range ids {
		ps.publish(ctx, NewEvent(EventMention, id, authorID, post.ID, "mentioned you in a comment", nil))
	}
}

func (ps *PostService) ListComments(ctx context.Context, postID int64, limit int) ([]CommentView, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if _, err := loadPost(ctx, db.GetReadOnlyDB(ctx), postID); err != nil {
		return nil, err
	}

	var comments []models.Comment
	err := db.GetReadOnlyDB(ctx).Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	ids := make([]int64, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	authors, err := loadSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	result := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		result = append(result, CommentView{Comment: c, Author: authors[c.UserID]})
	}
	return result, nil
}

func (ps *PostService) SharePost(ctx context.Context, userID, postID int64) (*models.Post, error) {
	return ps.engage(ctx, postID, func(tx *gorm.DB, post *models.Post) error {
		if err := tx.Create(&models.Share{PostID: postID, UserID: userID}).Error; err != nil {
			return err
		}
		return bumpCounter(tx, postID, "shares_count", 1)
	})
}

// ReviewPost stores a 1-5 rating; each user reviews a post once.
func (ps *PostService) ReviewPost(ctx context.Context, in ReviewInput) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}

	review := &models.Review{PostID: in.PostID, UserID: in.UserID, Rating: in.Rating, Content: strings.TrimSpace(in.Content)}
	post, err := ps.engage(ctx, in.PostID, func(tx *gorm.DB, post *models.Post) error {
		err := tx.Create(review).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("review: %w", ErrAlreadyExists)
		}
		if err != nil {
			return err
		}
		return bumpCounter(tx, in.PostID, "reviews_count", 1)
	})
	if err != nil {
		return nil, err
	}

	ps.publish(ctx, NewEvent(EventReview, post.UserID, in.UserID, in.PostID,
		fmt.Sprintf("rated your post %d/5", in.Rating), review))
	return review, nil
}
