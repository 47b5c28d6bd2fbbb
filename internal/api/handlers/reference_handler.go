package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/banddude/voiceid/internal/services"
	"github.com/banddude/voiceid/internal/utils"
)

type ReferenceHandler struct {
	svc services.ReferenceService
}

func NewReferenceHandler(svc services.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{svc: svc}
}

// Enroll adds a voice sample for a speaker from a multipart WAV upload.
func (h *ReferenceHandler) Enroll(c *gin.Context) {
	const op = "ReferenceHandler.Enroll"

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

	res, err := h.svc.Enroll(c.Request.Context(), c.Param("name"), header.Filename, wav)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if !res.Added {
		status = http.StatusOK // near-duplicate of an existing reference
	}
	c.JSON(status, res)
}

func (h *ReferenceHandler) ListBySpeaker(c *gin.Context) {
	recs, err := h.svc.ListBySpeaker(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}

	// embeddings themselves are large and useless to clients; return metadata
	out := make([]gin.H, 0, len(recs))
	for _, r := range recs {
		out = append(out, gin.H{
			"id":              r.ID,
			"speaker_name":    r.Metadata.SpeakerName,
			"source_file":     r.Metadata.SourceFile,
			"is_short_sample": r.Metadata.IsShortSample,
			"auto_updated":    r.Metadata.AutoUpdated,
			"confidence":      r.Metadata.Confidence,
			"created_at":      r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"embeddings": out})
}

func (h *ReferenceHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteEmbedding(c.Request.Context(), c.Param("embedding_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ReferenceHandler) DeleteBySpeaker(c *gin.Context) {
	n, err := h.svc.DeleteBySpeaker(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"embeddings_deleted": n})
}
