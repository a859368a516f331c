package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/parallax/reboot-hackathon-2025/internal/api/middleware"
	"github.com/parallax/reboot-hackathon-2025/internal/apperr"
	"github.com/parallax/reboot-hackathon-2025/internal/models"
	"github.com/parallax/reboot-hackathon-2025/internal/services"
	"github.com/parallax/reboot-hackathon-2025/internal/utils"
)

// RestItemHandler serves the read side of items and their offers.
type RestItemHandler struct {
	itemService  services.IItemService
	userService  services.IUserService
	offerService services.IOfferService
}

// NewRestItemHandler creates a new RestItemHandler.
func NewRestItemHandler(itemService services.IItemService, userService services.IUserService, offerService services.IOfferService) *RestItemHandler {
	return &RestItemHandler{
		itemService:  itemService,
		userService:  userService,
		offerService: offerService,
	}
}

func sendRestError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), errorResponse(err))
}

// parseTagIDs parses "1,2, 3". explicit is false when the parameter is absent.
func parseTagIDs(raw string, present bool) (ids []int, explicit bool, err error) {
	if !present {
		return nil, false, nil
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, true, apperr.Validation("invalid tag id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, true, nil
}

// BrowseItems handles GET /v1/item/browse?tags=1,2
// Without a tags parameter a signed-in caller browses their interested tags.
func (h *RestItemHandler) BrowseItems(c *gin.Context) {
	raw, present := c.GetQuery("tags")
	tagIDs, explicit, err := parseTagIDs(raw, present)
	if err != nil {
		sendRestError(c, err)
		return
	}

	ctx := c.Request.Context()
	if !explicit {
		if identity, ok := middleware.IdentityFromContext(c); ok {
			user, err := h.userService.FindByID(ctx, identity.UserID)
			switch {
			case err == nil:
				tagIDs = user.InterestedTagIDs
			case apperr.KindOf(err) != apperr.KindNotFound:
				sendRestError(c, err)
				return
			}
		}
	}

	items, err := h.itemService.BrowseActiveItems(ctx, tagIDs)
	if err != nil {
		sendRestError(c, err)
		return
	}
	if items == nil {
		items = []models.Item{}
	}
	c.JSON(http.StatusOK, gin.H{"tag_ids": tagIDs, "items": items})
}

func itemIDParam(c *gin.Context) (utils.SixID, error) {
	id, err := utils.ParseSixID(c.Param("id"))
	if err != nil || id.IsZero() {
		return utils.SixID{}, apperr.Validation("invalid item ID format")
	}
	return id, nil
}

// GetItemByID handles GET /v1/item/:id
func (h *RestItemHandler) GetItemByID(c *gin.Context) {
	itemID, err := itemIDParam(c)
	if err != nil {
		sendRestError(c, err)
		return
	}

	detail, err := h.itemService.GetItemDetail(c.Request.Context(), itemID)
	if err != nil {
		sendRestError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ListUserItems handles GET /v1/user/:id/item
func (h *RestItemHandler) ListUserItems(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		sendRestError(c, apperr.Validation("user id is required"))
		return
	}

	items, err := h.itemService.ListItemsByUser(c.Request.Context(), userID)
	if err != nil {
		sendRestError(c, err)
		return
	}

	// Other people only see what is still listed.
	identity, _ := middleware.IdentityFromContext(c)
	visible := make([]models.Item, 0, len(items))
	for _, item := range items {
		if item.Active || identity.UserID == userID {
			visible = append(visible, item)
		}
	}
	c.JSON(http.StatusOK, visible)
}

// ListItemOffers handles GET /v1/item/:id/offer. Requires AuthMiddleware.
func (h *RestItemHandler) ListItemOffers(c *gin.Context) {
	itemID, err := itemIDParam(c)
	if err != nil {
		sendRestError(c, err)
		return
	}

	identity, _ := middleware.IdentityFromContext(c)
	offers, err := h.offerService.ListOffersForItemVisibleTo(c.Request.Context(), itemID, identity.UserID)
	if err != nil {
		sendRestError(c, err)
		return
	}
	if offers == nil {
		offers = []models.OfferView{}
	}
	c.JSON(http.StatusOK, offers)
}
