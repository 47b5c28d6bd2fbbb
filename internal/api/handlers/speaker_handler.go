package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/banddude/voiceid/internal/services"
	"github.com/banddude/voiceid/internal/utils"
)

type SpeakerHandler struct {
	svc services.SpeakerService
}

func NewSpeakerHandler(svc services.SpeakerService) *SpeakerHandler {
	return &SpeakerHandler{svc: svc}
}

func (h *SpeakerHandler) List(c *gin.Context) {
	rows, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"speakers": rows})
}

type CreateSpeakerRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *SpeakerHandler) Create(c *gin.Context) {
	var req CreateSpeakerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SpeakerHandler.Create", "invalid request body", err))
		return
	}

	sp, err := h.svc.Create(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sp)
}

type RenameSpeakerRequest struct {
	NewName string `json:"new_name" binding:"required"`
}

func (h *SpeakerHandler) Rename(c *gin.Context) {
	var req RenameSpeakerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SpeakerHandler.Rename", "invalid request body", err))
		return
	}

	n, err := h.svc.Rename(c.Request.Context(), c.Param("name"), req.NewName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"utterances_updated": n})
}

type ReassignAllRequest struct {
	To string `json:"to" binding:"required"`
}

// ReassignAll moves every utterance from one speaker onto another.
func (h *SpeakerHandler) ReassignAll(c *gin.Context) {
	var req ReassignAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SpeakerHandler.ReassignAll", "invalid request body", err))
		return
	}

	n, err := h.svc.ReassignAll(c.Request.Context(), c.Param("name"), req.To)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"utterances_updated": n})
}

func (h *SpeakerHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("name")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
