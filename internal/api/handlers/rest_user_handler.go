package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/parallax/reboot-hackathon-2025/internal/apperr"
	"github.com/parallax/reboot-hackathon-2025/internal/services"
)

// RestUserHandler handles REST requests related to users.
type RestUserHandler struct {
	userService services.IUserService
	itemService services.IItemService
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(userService services.IUserService, itemService services.IItemService) *RestUserHandler {
	return &RestUserHandler{
		userService: userService,
		itemService: itemService,
	}
}

// PublicUser is the part of a profile anyone may see.
type PublicUser struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Location   string `json:"location,omitempty"`
	DateJoined string `json:"date_joined"`
	ItemCount  int    `json:"item_count"`
}

// GetUserByID handles GET /v1/user/:id
func (h *RestUserHandler) GetUserByID(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		sendRestError(c, apperr.Validation("user id is required"))
		return
	}

	ctx := c.Request.Context()
	user, err := h.userService.FindByID(ctx, userID)
	if err != nil {
		sendRestError(c, err)
		return
	}

	items, err := h.itemService.ListItemsByUser(ctx, userID)
	if err != nil {
		sendRestError(c, err)
		return
	}
	active := 0
	for _, item := range items {
		if item.Active {
			active++
		}
	}

	c.JSON(http.StatusOK, PublicUser{
		ID:         user.ID,
		Name:       user.Name,
		Location:   user.Location,
		DateJoined: user.CreatedAt.Format("2006-01-02"),
		ItemCount:  active,
	})
}
