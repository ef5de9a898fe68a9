package handlers

import (
	"net/http"
	"strconv"

	"creaverse/models"
	"creaverse/services"

	"github.com/gin-gonic/gin"
)

// CreatePost создает новый пост
func (h *Handler) CreatePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req services.CreatePostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.AuthorID = userID

	post, err := h.Posts.CreatePost(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// GetFeed получает ленту постов подписок
func (h *Handler) GetFeed(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var q services.FeedQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query"})
		return
	}

	feed, err := h.Posts.GetFeed(c.Request.Context(), userID, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

// RebuildFeed перестраивает кеш ленты текущего пользователя из БД
func (h *Handler) RebuildFeed(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.Posts.RebuildUserFeed(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Feed rebuilt successfully"})
}

// GetQueueStats возвращает статистику очереди fan-out
func (h *Handler) GetQueueStats(c *gin.Context) {
	queue := h.Posts.Queue()
	if queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Queue service not available"})
		return
	}
	c.JSON(http.StatusOK, queue.Stats(c.Request.Context()))
}

func (h *Handler) GetProfilePosts(c *gin.Context) {
	posts, err := h.Posts.GetProfilePosts(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// BrowseProfileFeed - /profiles/:username/feed/:post_id
func (h *Handler) BrowseProfileFeed(c *gin.Context) {
	postID, ok := paramID(c, "post_id")
	if !ok {
		return
	}
	res, err := h.Posts.BrowseProfileFeed(c.Request.Context(), c.Param("username"), postID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetPost(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	post, err := h.Posts.GetPost(c.Request.Context(), postID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost удаляет пост
func (h *Handler) DeletePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Posts.DeletePost(c.Request.Context(), userID, postID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// engagement runs a post reaction for the current user and returns the post
// counters.
func (h *Handler) engagement(c *gin.Context, fn func(userID, postID int64) (*models.Post, error)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	post, err := fn(userID, postID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) LikePost(c *gin.Context) {
	h.engagement(c, func(userID, postID int64) (*models.Post, error) {
		return h.Posts.LikePost(c.Request.Context(), userID, postID)
	})
}

func (h *Handler) UnlikePost(c *gin.Context) {
	h.engagement(c, func(userID, postID int64) (*models.Post, error) {
		return h.Posts.UnlikePost(c.Request.Context(), userID, postID)
	})
}

func (h *Handler) SharePost(c *gin.Context) {
	h.engagement(c, func(userID, postID int64) (*models.Post, error) {
		return h.Posts.SharePost(c.Request.Context(), userID, postID)
	})
}

type CommentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) AddComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	comment, err := h.Posts.AddComment(c.Request.Context(), userID, postID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) ListComments(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	comments, err := h.Posts.ListComments(c.Request.Context(), postID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

func (h *Handler) ReviewPost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.ReviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.UserID, req.PostID = userID, postID

	review, err := h.Posts.ReviewPost(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.Categories.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}
