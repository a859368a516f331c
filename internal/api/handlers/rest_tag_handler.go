package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parallax/reboot-hackathon-2025/internal/services"
)

// RestTagHandler serves the tag catalogue.
type RestTagHandler struct {
	tagService services.ITagService
}

// NewRestTagHandler creates a new RestTagHandler.
func NewRestTagHandler(tagService services.ITagService) *RestTagHandler {
	return &RestTagHandler{tagService: tagService}
}

// ListTags handles GET /v1/tag
func (h *RestTagHandler) ListTags(c *gin.Context) {
	tags, err := h.tagService.ListTags(c.Request.Context())
	if err != nil {
		sendRestError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}
