package handlers

import (
	"net/http"
	"strconv"

	"creaverse/services"

	"github.com/gin-gonic/gin"
)

// SearchProfiles - поиск пользователей по username или имени (?q=)
func (h *Handler) SearchProfiles(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	profiles, err := h.Profiles.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.Profiles.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req services.UpdateProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	user, err := h.Profiles.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Follow - подписка на пользователя
func (h *Handler) Follow(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	if err := h.Follows.Follow(c.Request.Context(), userID, targetID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "followed"})
}

func (h *Handler) Unfollow(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	if err := h.Follows.Unfollow(c.Request.Context(), userID, targetID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unfollowed"})
}

func (h *Handler) Followers(c *gin.Context) {
	targetID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	profiles, err := h.Follows.Followers(c.Request.Context(), targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

func (h *Handler) Following(c *gin.Context) {
	targetID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	profiles, err := h.Follows.Following(c.Request.Context(), targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}
