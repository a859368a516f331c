package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/parallax/reboot-hackathon-2025/internal/api/middleware"
	"github.com/parallax/reboot-hackathon-2025/internal/apperr"
	"github.com/parallax/reboot-hackathon-2025/internal/config"
	"github.com/parallax/reboot-hackathon-2025/internal/models"
	"github.com/parallax/reboot-hackathon-2025/internal/services"
	"github.com/parallax/reboot-hackathon-2025/internal/storage"
	"github.com/parallax/reboot-hackathon-2025/internal/tasks"
	"github.com/parallax/reboot-hackathon-2025/internal/utils"
)

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
	Code     string      `json:"code,omitempty"`
	Redirect string      `json:"redirect,omitempty"`
}

// apiMethodFunc defines the signature for handler methods.
type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, error)

// JsonApiHandler holds dependencies for handling JSON API requests.
type JsonApiHandler struct {
	cfg            *config.Config
	taskClient     tasks.IAsynqClient
	offerService   services.IOfferService
	itemService    services.IItemService
	userService    services.IUserService
	storageService storage.IS3Storage
	methods        map[string]apiMethodFunc
}

// NewJsonApiHandler creates a new handler for the JSON API endpoint.
func NewJsonApiHandler(
	cfg *config.Config,
	taskClient tasks.IAsynqClient,
	offerService services.IOfferService,
	itemService services.IItemService,
	userService services.IUserService,
	storageService storage.IS3Storage,
) *JsonApiHandler {
	h := &JsonApiHandler{
		cfg:            cfg,
		taskClient:     taskClient,
		offerService:   offerService,
		itemService:    itemService,
		userService:    userService,
		storageService: storageService,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":                  h.ping,
		"createOffer":           h.createOffer,
		"respondToOffer":        h.respondToOffer,
		"listOffersForItem":     h.listOffersForItem,
		"listMyOffers":          h.listMyOffers,
		"createItem":            h.createItem,
		"updateItem":            h.updateItem,
		"getUploadURL":          h.getUploadURL,
		"confirmImageUpload":    h.confirmImageUpload,
		"submitProfileSetup":    h.submitProfileSetup,
		"getProfile":            h.getProfile,
		"clearOnboardingStatus": h.clearOnboardingStatus,
	}
	return h
}

// HandleRequest is the main entry point for POST /v1/api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.sendErrorResponse(c, apperr.Validation("failed to read request body"))
		return
	}

	var req JsonApiRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		h.sendErrorResponse(c, apperr.Validation("invalid JSON request format"))
		return
	}

	handlerFunc, ok := h.methods[req.Method]
	if !ok {
		h.sendErrorResponse(c, apperr.NotFound("unknown method: %s", req.Method))
		return
	}

	if err := h.checkAuthForMethod(c, req.Method); err != nil {
		h.sendErrorResponse(c, err)
		return
	}

	result, err := handlerFunc(c, req.Arguments)
	if err != nil {
		h.sendErrorResponse(c, err)
		return
	}

	h.sendSuccessResponse(c, result)
}

// checkAuthForMethod requires a caller for authenticated methods and records
// their identity in the local user directory.
func (h *JsonApiHandler) checkAuthForMethod(c *gin.Context, method string) error {
	if !methodRequiresAuth(method) {
		return nil
	}

	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		return apperr.Unauthenticated()
	}

	// Directory sync is best effort; the token is the source of truth.
	if err := h.userService.UpsertIdentity(c.Request.Context(), identity); err != nil {
		log.Warn().Err(err).Str("user_id", identity.UserID).Msg("Failed to sync identity")
	}
	return nil
}

// methodRequiresAuth checks if a given API method requires authentication.
func methodRequiresAuth(method string) bool {
	switch method {
	case "ping":
		return false
	default:
		return true
	}
}

func userIDFromContext(c *gin.Context) string {
	identity, _ := middleware.IdentityFromContext(c)
	return identity.UserID
}

// --- Private helper methods ---

func (h *JsonApiHandler) sendSuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, JsonApiResponse{Success: true, Data: data})
}

func (h *JsonApiHandler) sendErrorResponse(c *gin.Context, err error) {
	c.JSON(errorStatus(err), errorResponse(err))
}

func errorStatus(err error) int {
	return apperr.HTTPStatus(apperr.KindOf(err))
}

func errorResponse(err error) JsonApiResponse {
	kind := apperr.KindOf(err)
	resp := JsonApiResponse{
		Success: false,
		Error:   apperr.Message(err),
		Code:    string(kind),
	}
	switch kind {
	case apperr.KindUnauthenticated:
		resp.Redirect = middleware.SignInPath
	case apperr.KindDependencyFailure:
		log.Error().Err(err).Msg("Request failed on a dependency")
	}
	return resp
}

// parseRequiredSingleArgFromArray decodes the single argument of a call. The
// arguments may be a one-element array or the argument object itself.
func parseRequiredSingleArgFromArray(rawArgPayload json.RawMessage, targetVarPtr interface{}) error {
	trimmed := bytes.TrimSpace(rawArgPayload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return apperr.Validation("missing 'arguments' field")
	}

	actualArgData := json.RawMessage(trimmed)
	if trimmed[0] == '[' {
		var argArray []json.RawMessage
		if err := json.Unmarshal(trimmed, &argArray); err != nil {
			return apperr.Validation("invalid 'arguments': expected a JSON array")
		}
		if len(argArray) == 0 {
			return apperr.Validation("invalid 'arguments': array is empty, but one argument is expected")
		}
		actualArgData = argArray[0]
	}

	if err := json.Unmarshal(actualArgData, targetVarPtr); err != nil {
		return apperr.Validation("invalid format for argument")
	}
	return nil
}

func parseSixIDArg(name, value string) (utils.SixID, error) {
	id, err := utils.ParseSixID(strings.TrimSpace(value))
	if err != nil {
		return utils.SixID{}, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

// --- API Method Implementations ---

func (h *JsonApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, error) {
	return "pong", nil
}

// CreateOfferArgs are the arguments of createOffer.
type CreateOfferArgs struct {
	ItemID        string     `json:"item_id"`
	OfferedItemID string     `json:"offered_item_id"`
	Expiry        *time.Time `json:"expiry,omitempty"`
}

func (h *JsonApiHandler) createOffer(c *gin.Context, args json.RawMessage) (interface{}, error) {
	var reqArgs CreateOfferArgs
	if err := parseRequiredSingleArgFromArray(args, &reqArgs); err != nil {
		return nil, err
	}

	targetID, err := parseSixIDArg("item_id", reqArgs.ItemID)
	if err != nil {
		return nil, err
	}
	offeredID, err := parseSixIDArg("offered_item_id", reqArgs.OfferedItemID)
	if err != nil {
		return nil, err
	}

	return h.offerService.CreateOffer(c.Request.Context(), services.CreateOfferRequest{
		TargetItemID:     targetID,
		OfferedItemID:    offeredID,
		RequestingUserID: userIDFromContext(c),
		Expiry:           reqArgs.Expiry,
	})
}

// RespondToOfferArgs are the arguments of respondToOffer.
type RespondToOfferArgs struct {
	OfferID  string `json:"offer_id"`
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

func (h *JsonApiHandler) respondToOffer(c *gin.Context, args json.RawMessage) (interface{}, error) {
	var reqArgs RespondToOfferArgs
	if err := parseRequiredSingleArgFromArray(args, &reqArgs); err != nil {
		return nil, err
	}

	offerID, err := parseSixIDArg("offer_id", reqArgs.OfferID)
	if err != nil {
		return nil, err
	}

	return h.offerService.RespondToOffer(c.Request.Context(), services.RespondToOfferRequest{
		OfferID:          offerID,
		Decision:         models.OfferDecision(strings.ToLower(strings.TrimSpace(reqArgs.Decision))),
		RequestingUserID: userIDFromContext(c),
		Reason:           reqArgs.Reason,
	})
}

// ItemIDArgs carries a single item id.
type ItemIDArgs struct {
	ItemID string `json:"item_id"`
}

func (h *JsonApiHandler) listOffersForItem(c *gin.Context, args json.RawMessage) (interface{}, error) {
	var reqArgs ItemIDArgs
	if err := parseRequiredSingleArgFromArray(args, &reqArgs); err != nil {
		return nil, err
	}

	itemID, err := parseSixIDArg("item_id", reqArgs.ItemID)
	if err != nil {
		return nil, err
	}

	return h.offerService.ListOffersForItemVisibleTo(c.Request.Context(), itemID, userIDFromContext(c))
}

func (h *JsonApiHandler) listMyOffers(c *gin.Context, args json.RawMessage) (interface{}, error) {
	return h.offerService.ListOffersForUser(c.Request.Context(), userIDFromContext(c))
}

func (h *JsonApiHandler) createItem(c *gin.Context, args json.RawMessage) (interface{}, error) {
	var input services.CreateItemInput
	if err := parseRequiredSingleArgFromArray(args, &input); err != nil {
		return nil, err
	}
	return h.itemService.CreateItem(c.Request.Context(), userIDFromContext(c), input)
}

// UpdateItemArgs are the arguments of updateItem.
type UpdateItemArgs struct {
	ItemID string `json:"item_id"`
	models.ItemPatch
}

func (h *JsonApiHandler) updateItem(c *gin.Context, args json.RawMessage) (interface{}, error) {
	var reqArgs UpdateItemArgs
	if err := parseRequiredSingleArgFromArray(args, &reqArgs); err != nil {
		return nil, err
	}

	itemID, err := parseSixIDArg("item_id", reqArgs.ItemID)
	if err != nil {
		return nil, err
	}
	if itemID.IsZero() {
		return nil, apperr.Validation("item_id is required")
	}

	return h.itemService.UpdateItem(c.Request.Context(), itemID, userIDFromContext(c), reqArgs.ItemPatch)
}

// ownedItem loads an item and checks the caller owns it.
func (h *JsonApiHandler) ownedItem(ctx context.Context, rawID, userID string) (*models.Item, error) {
	itemID, err := parseSixIDArg("item_id", rawID)
	if err != nil {
		return nil, err
	}
	if itemID.IsZero() {
		return nil, apperr.Validation("item_id is required")
	}

	item, err := h.itemService.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, apperr.Unauthorized("only the item owner can change its image")
	}
	return item, nil
}

// GetUploadURLArgs are the arguments of getUploadURL.
type GetUploadURLArgs struct {
	ItemID      string `json:"item_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

func (h *JsonApiHandler) getUploadURL(c *gin.Context, args json.RawMessage) (interface{}, error) {
	var reqArgs GetUploadURLArgs
	if err := parseRequiredSingleArgFromArray(args, &reqArgs); err != nil {
		return nil, err
	}
	if reqArgs.Filename == "" || reqArgs.ContentType == "" {
		return nil, apperr.Validation("missing required arguments (item_id, filename, content_type)")
	}
	if !strings.HasPrefix(reqArgs.ContentType, "image/") {
		return nil, apperr.Validation("content_type must be an image type")
	}

	ctx := c.Request.Context()
	userID := userIDFromContext(c)
	item, err := h.ownedItem(ctx, reqArgs.ItemID, userID)
	if err != nil {
		return nil, err
	}

	presignedURL, objectKey, err := h.storageService.GeneratePresignedPutURL(ctx, userID, item.ID.String(), reqArgs.Filename, reqArgs.ContentType)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to generate upload URL")
	}

	return gin.H{
		"upload_url": presignedURL,
		"object_key": objectKey,
	}, nil
}

// ConfirmImageUploadArgs are the arguments of confirmImageUpload.
type ConfirmImageUploadArgs struct {
	ItemID    string `json:"item_id"`
	ObjectKey string `json:"object_key"`
}

func (h *JsonApiHandler) confirmImageUpload(c *gin.Context, args json.RawMessage) (interface{}, error) {
	var reqArgs ConfirmImageUploadArgs
	if err := parseRequiredSingleArgFromArray(args, &reqArgs); err != nil {
		return nil, err
	}
	if reqArgs.ObjectKey == "" {
		return nil, apperr.Validation("missing required arguments (item_id, object_key)")
	}

	ctx := c.Request.Context()
	userID := userIDFromContext(c)
	item, err := h.ownedItem(ctx, reqArgs.ItemID, userID)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(reqArgs.ObjectKey, storage.ObjectKeyPrefix(userID, item.ID.String())) {
		return nil, apperr.Validation("object_key does not belong to this item")
	}

	task, err := tasks.NewImageProcessTask(item.ID, reqArgs.ObjectKey)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to schedule image processing")
	}
	taskInfo, err := h.taskClient.EnqueueContext(ctx, task)
	if err != nil {
		return nil, apperr.Dependency(err, "failed to schedule image processing")
	}

	log.Info().
		Str("task_id", taskInfo.ID).
		Str("object_key", reqArgs.ObjectKey).
		Str("item_id", item.ID.String()).
		Msg("Enqueued image processing task")

	return gin.H{
		"message": "Image upload confirmed, processing scheduled.",
		"task_id": taskInfo.ID,
	}, nil
}

func (h *JsonApiHandler) submitProfileSetup(c *gin.Context, args json.RawMessage) (interface{}, error) {
	var input services.ProfileSetupInput
	if err := parseRequiredSingleArgFromArray(args, &input); err != nil {
		return nil, err
	}
	return h.userService.SubmitProfileSetup(c.Request.Context(), userIDFromContext(c), input)
}

func (h *JsonApiHandler) getProfile(c *gin.Context, args json.RawMessage) (interface{}, error) {
	user, err := h.userService.GetProfile(c.Request.Context(), userIDFromContext(c))
	if err != nil {
		return nil, err
	}
	return gin.H{
		"user":             user,
		"needs_onboarding": user.OnboardingComplete == nil,
	}, nil
}

func (h *JsonApiHandler) clearOnboardingStatus(c *gin.Context, args json.RawMessage) (interface{}, error) {
	if err := h.userService.ClearOnboardingStatus(c.Request.Context(), userIDFromContext(c)); err != nil {
		return nil, err
	}
	return "ok", nil
}
