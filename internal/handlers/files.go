package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/files/preview"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/files/sniffer"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

type fileResponse struct {
	Name         string     `json:"name"`
	OriginalName string     `json:"original_name,omitempty"`
	SizeBytes    int64      `json:"size_bytes"`
	ModifiedAt   *time.Time `json:"modified_at,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	Sensitivity  string     `json:"sensitivity,omitempty"`
	State        string     `json:"state"`
}

func toFileResponse(e models.FileEntry) fileResponse {
	return fileResponse{
		Name:         e.Name,
		OriginalName: e.OriginalName,
		SizeBytes:    e.SizeBytes,
		ModifiedAt:   e.ModifiedAt,
		DeletedAt:    e.DeletedAt,
		Sensitivity:  string(e.Sensitivity),
		State:        string(e.State),
	}
}

func toFileResponses(entries []models.FileEntry) []fileResponse {
	out := make([]fileResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toFileResponse(e))
	}
	return out
}

func (h HandlerSet) ListFiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"loaded": h.files.Loaded(),
		"items":  toFileResponses(h.files.List()),
	})
}

func (h HandlerSet) ListTrash(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"loaded": h.files.Loaded(),
		"items":  toFileResponses(h.files.ListTrash()),
		"purged": toFileResponses(h.files.Purged()),
	})
}

func (h HandlerSet) OpenFile(c *gin.Context) {
	content, err := h.files.Open(c.Request.Context(), h.auth, c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":     content.Name,
		"content":  content.Content,
		"size":     content.Size,
		"preview":  preview.Render(content.Name, []byte(content.Content)),
		"editable": sniffer.Editable(content.Name, []byte(content.Content)),
	})
}

type saveRequest struct {
	Content *string `json:"content" binding:"required"`
}

func (h HandlerSet) SaveFile(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.files.Save(c.Request.Context(), h.auth, c.Param("name"), *req.Content); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) DeleteFile(c *gin.Context) {
	if err := h.files.Delete(c.Request.Context(), h.auth, c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) RestoreFile(c *gin.Context) {
	entry, err := h.files.Restore(c.Request.Context(), h.auth, c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFileResponse(entry))
}

func (h HandlerSet) DownloadFile(c *gin.Context) {
	location, err := h.files.Download(c.Request.Context(), h.auth, c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": location})
}
