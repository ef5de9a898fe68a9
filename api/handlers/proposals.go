package handlers

import (
	"net/http"
	"time"

	"creaverse/models"
	"creaverse/services"

	"github.com/gin-gonic/gin"
)

type VoteRequest struct {
	Type models.VoteType `json:"type" binding:"required"`
}

func (h *Handler) ListProposals(c *gin.Context) {
	proposals, err := h.Governance.ListProposals(c.Request.Context(), models.ProposalStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

func (h *Handler) CreateProposal(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req services.CreateProposalInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.AuthorID = userID

	proposal, err := h.Governance.CreateProposal(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, proposal)
}

// GetProposal отдаёт предложение и голос текущего пользователя, если он есть
func (h *Handler) GetProposal(c *gin.Context) {
	proposalID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	proposal, err := h.Governance.GetProposal(ctx, proposalID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"proposal": proposal, "my_vote": nil}
	if session, ok := services.SessionFrom(ctx); ok {
		vote, err := h.Governance.GetVote(ctx, proposalID, session.UserID)
		if err == nil {
			resp["my_vote"] = vote
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CastVote(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	proposalID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	vote, err := h.Governance.CastVote(c.Request.Context(), proposalID, userID, req.Type)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vote)
}

// FinalizeProposal закрывает голосование после ends_at
func (h *Handler) FinalizeProposal(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	proposalID, ok := paramID(c, "id")
	if !ok {
		return
	}
	proposal, err := h.Governance.Finalize(c.Request.Context(), proposalID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}
