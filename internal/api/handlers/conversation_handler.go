package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/banddude/voiceid/internal/services"
	"github.com/banddude/voiceid/internal/utils"
)

const maxUploadBytes = 100 << 20

type ConversationHandler struct {
	svc services.ConversationService
}

func NewConversationHandler(svc services.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// Upload accepts a multipart WAV recording and queues it for identification.
func (h *ConversationHandler) Upload(c *gin.Context) {
	const op = "ConversationHandler.Upload"

	file, header, err := c.Request.FormFile("audio_file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "audio_file is required", err))
		return
	}
	defer file.Close()

	wav, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to read upload", err))
		return
	}
	if len(wav) > maxUploadBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "audio file too large", nil))
		return
	}

	conv, err := h.svc.Upload(c.Request.Context(), c.PostForm("display_name"), header.Filename, wav)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, conv)
}

func (h *ConversationHandler) List(c *gin.Context) {
	limit := 50
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	offset := 0
	if s := c.Query("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			offset = n
		}
	}

	rows, err := h.svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": rows})
}

func (h *ConversationHandler) Get(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type RenameConversationRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

func (h *ConversationHandler) Rename(c *gin.Context) {
	var req RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ConversationHandler.Rename", "invalid request body", err))
		return
	}

	conv, err := h.svc.Rename(c.Request.Context(), c.Param("conversation_id"), req.DisplayName)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("conversation_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ConversationHandler) AudioURL(c *gin.Context) {
	url, err := h.svc.AudioURL(c.Request.Context(), c.Param("conversation_id"), 15*time.Minute)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *ConversationHandler) UtteranceAudioURL(c *gin.Context) {
	url, err := h.svc.UtteranceAudioURL(c.Request.Context(), c.Param("utterance_id"), 15*time.Minute)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *ConversationHandler) Status(c *gin.Context) {
	job, err := h.svc.Status(c.Request.Context(), c.Param("conversation_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
