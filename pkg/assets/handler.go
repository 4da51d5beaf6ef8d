package assets

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"assetbay/pkg/identity"
	"assetbay/pkg/response"
)

type AssetHandler struct {
	service AssetService
}

func NewAssetHandler(service AssetService) *AssetHandler {
	return &AssetHandler{service: service}
}

func (h *AssetHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/assets", h.uploadAsset)
	router.GET("/assets", h.listAssets)
	router.GET("/assets/for-sale", h.listAssetsForSale)
	router.GET("/assets/search", h.searchAssets)
	router.GET("/assets/stats", h.getStats)
	router.GET("/assets/:id", h.getAssetByID)
	router.PATCH("/assets/:id/price", h.updatePrice)
	router.POST("/assets/:id/transfer", h.transferOwner)
	router.GET("/users/:principal/assets", h.listAssetsByOwner)
}

type uploadAssetRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	FileHash    string   `json:"file_hash" binding:"required"`
	FileType    string   `json:"file_type"`
	FileSize    int64    `json:"file_size"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	PreviewURL  string   `json:"preview_url"`
}

type updatePriceRequest struct {
	Price int64 `json:"price"`
}

type transferOwnerRequest struct {
	NewOwner string `json:"new_owner" binding:"required"`
}

// @Summary      Register a new asset
// @Description  Registers a digital asset owned by the caller. New assets start off sale.
// @Tags         assets
// @Accept       json
// @Produce      json
// @Param        request body uploadAssetRequest true "Asset registration request"
// @Success      201  {object}  response.APIResponse{data=Asset} "Asset registered"
// @Failure      400  {object}  response.APIResponse "Invalid request payload"
// @Failure      401  {object}  response.APIResponse "Authentication required"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /assets [post]
func (h *AssetHandler) uploadAsset(c *gin.Context) {
	caller, ok := identity.RequirePrincipal(c)
	if !ok {
		return
	}

	var req uploadAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	if req.Price < 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "price cannot be negative", nil)
		return
	}

	if req.FileSize < 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "file_size cannot be negative", nil)
		return
	}

	asset, err := h.service.UploadAsset(c.Request.Context(), caller, Asset{
		Name:        req.Name,
		Description: req.Description,
		FileHash:    req.FileHash,
		FileType:    req.FileType,
		FileSize:    req.FileSize,
		Price:       req.Price,
		Category:    req.Category,
		Tags:        req.Tags,
		PreviewURL:  req.PreviewURL,
	})
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusCreated, true, "asset registered", asset)
}

// @Summary      Get asset by ID
// @Tags         assets
// @Produce      json
// @Param        id   path      int  true  "Asset ID"
// @Success      200  {object}  response.APIResponse{data=Asset} "Asset retrieved"
// @Failure      400  {object}  response.APIResponse "Invalid asset ID"
// @Failure      404  {object}  response.APIResponse "Asset not found"
// @Router       /assets/{id} [get]
func (h *AssetHandler) getAssetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	asset, err := h.service.GetAssetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrAssetNotFound) {
			response.SendAPIResponse(c, http.StatusNotFound, false, "asset not found", nil)
			return
		}
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "asset fetched", asset)
}

// @Summary      List assets
// @Description  Paginated asset list with optional owner, category, and for-sale filters
// @Tags         assets
// @Produce      json
// @Param        page      query  int     false  "Page number" default(1)
// @Param        limit     query  int     false  "Items per page" default(10)
// @Param        owner     query  string  false  "Filter by owner principal"
// @Param        category  query  string  false  "Filter by category"
// @Param        for_sale  query  bool    false  "Filter by for-sale flag"
// @Success      200  {object}  response.APIResponse{data=AssetList} "Assets listed"
// @Router       /assets [get]
func (h *AssetHandler) listAssets(c *gin.Context) {
	page, limit := pageParams(c)

	filters := AssetFilters{}
	if owner := c.Query("owner"); owner != "" {
		filters.Owner = &owner
	}
	if category := c.Query("category"); category != "" {
		filters.Category = &category
	}
	if forSaleStr := c.Query("for_sale"); forSaleStr != "" {
		if forSale, err := strconv.ParseBool(forSaleStr); err == nil {
			filters.IsForSale = &forSale
		}
	}

	items, total, err := h.service.ListAssets(c.Request.Context(), filters, page, limit)
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "assets listed",
		AssetList{Items: items, Total: total, Page: page, Limit: limit})
}

// @Summary      List assets marked for sale
// @Description  Convenience view over the for-sale flag. The flag may lag the marketplace briefly; listings are the authoritative sale surface.
// @Tags         assets
// @Produce      json
// @Param        page   query  int  false  "Page number" default(1)
// @Param        limit  query  int  false  "Items per page" default(10)
// @Success      200  {object}  response.APIResponse{data=AssetList} "For-sale assets listed"
// @Router       /assets/for-sale [get]
func (h *AssetHandler) listAssetsForSale(c *gin.Context) {
	page, limit := pageParams(c)

	forSale := true
	items, total, err := h.service.ListAssets(c.Request.Context(), AssetFilters{IsForSale: &forSale}, page, limit)
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "for-sale assets listed",
		AssetList{Items: items, Total: total, Page: page, Limit: limit})
}

// @Summary      Search assets
// @Description  Case-insensitive match on name, description, category, or tags
// @Tags         assets
// @Produce      json
// @Param        q      query  string  true   "Search query"
// @Param        page   query  int     false  "Page number" default(1)
// @Param        limit  query  int     false  "Items per page" default(10)
// @Success      200  {object}  response.APIResponse{data=AssetList} "Search results"
// @Failure      400  {object}  response.APIResponse "Missing query"
// @Router       /assets/search [get]
func (h *AssetHandler) searchAssets(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "missing search query", nil)
		return
	}

	page, limit := pageParams(c)

	items, total, err := h.service.SearchAssets(c.Request.Context(), query, page, limit)
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "search results",
		AssetList{Items: items, Total: total, Page: page, Limit: limit})
}

// @Summary      Asset registry stats
// @Tags         assets
// @Produce      json
// @Success      200  {object}  response.APIResponse{data=AssetStats} "Registry stats"
// @Router       /assets/stats [get]
func (h *AssetHandler) getStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "registry stats", stats)
}

// @Summary      Update asset price
// @Description  Sets the asset's registry price. Only the owner may call this; an active listing's price is unaffected.
// @Tags         assets
// @Accept       json
// @Produce      json
// @Param        id       path  int                 true  "Asset ID"
// @Param        request  body  updatePriceRequest  true  "New price"
// @Success      200  {object}  response.APIResponse{data=Asset} "Price updated"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      401  {object}  response.APIResponse "Authentication required"
// @Failure      403  {object}  response.APIResponse "Caller is not the owner"
// @Failure      404  {object}  response.APIResponse "Asset not found"
// @Router       /assets/{id}/price [patch]
func (h *AssetHandler) updatePrice(c *gin.Context) {
	caller, ok := identity.RequirePrincipal(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	var req updatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	if req.Price < 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "price cannot be negative", nil)
		return
	}

	asset, err := h.service.UpdatePrice(c.Request.Context(), caller, id, req.Price)
	if err != nil {
		h.writeMutationError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "price updated", asset)
}

// @Summary      Transfer asset ownership directly
// @Description  Owner-initiated transfer outside the marketplace. The asset comes off sale; any listing left behind becomes stale and is rejected at purchase time.
// @Tags         assets
// @Accept       json
// @Produce      json
// @Param        id       path  int                   true  "Asset ID"
// @Param        request  body  transferOwnerRequest  true  "New owner principal"
// @Success      200  {object}  response.APIResponse{data=Asset} "Ownership transferred"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      401  {object}  response.APIResponse "Authentication required"
// @Failure      403  {object}  response.APIResponse "Caller is not the owner"
// @Failure      404  {object}  response.APIResponse "Asset not found"
// @Router       /assets/{id}/transfer [post]
func (h *AssetHandler) transferOwner(c *gin.Context) {
	caller, ok := identity.RequirePrincipal(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid asset id", nil)
		return
	}

	var req transferOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	asset, err := h.service.TransferOwner(c.Request.Context(), caller, id, req.NewOwner)
	if err != nil {
		h.writeMutationError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "ownership transferred", asset)
}

// @Summary      List assets by owner
// @Tags         assets
// @Produce      json
// @Param        principal  path   string  true   "Owner principal"
// @Param        page       query  int     false  "Page number" default(1)
// @Param        limit      query  int     false  "Items per page" default(10)
// @Success      200  {object}  response.APIResponse{data=AssetList} "Owner assets listed"
// @Router       /users/{principal}/assets [get]
func (h *AssetHandler) listAssetsByOwner(c *gin.Context) {
	owner := c.Param("principal")
	if owner == "" {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid principal", nil)
		return
	}

	page, limit := pageParams(c)

	items, total, err := h.service.ListAssets(c.Request.Context(), AssetFilters{Owner: &owner}, page, limit)
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "owner assets listed",
		AssetList{Items: items, Total: total, Page: page, Limit: limit})
}

func (h *AssetHandler) writeMutationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrAssetNotFound):
		response.SendAPIResponse(c, http.StatusNotFound, false, "asset not found", nil)
	case errors.Is(err, ErrNotOwner):
		response.SendAPIResponse(c, http.StatusForbidden, false, "caller is not the asset owner", nil)
	default:
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
