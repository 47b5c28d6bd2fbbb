package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/banddude/voiceid/internal/services"
	"github.com/banddude/voiceid/internal/utils"
)

type UtteranceHandler struct {
	svc services.SpeakerService
}

func NewUtteranceHandler(svc services.SpeakerService) *UtteranceHandler {
	return &UtteranceHandler{svc: svc}
}

type ReassignRequest struct {
	Speaker string `json:"speaker" binding:"required"`
}

// Reassign corrects the speaker of a single utterance.
func (h *UtteranceHandler) Reassign(c *gin.Context) {
	var req ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "UtteranceHandler.Reassign", "invalid request body", err))
		return
	}

	if err := h.svc.ReassignUtterance(c.Request.Context(), c.Param("utterance_id"), req.Speaker); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"utterance_id": c.Param("utterance_id"), "speaker": req.Speaker})
}
