package trade

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"assetbay/pkg/assets"
	"assetbay/pkg/identity"
	"assetbay/pkg/market"
	"assetbay/pkg/response"
)

type TradeHandler struct {
	orchestrator *Orchestrator
}

func NewTradeHandler(orchestrator *Orchestrator) *TradeHandler {
	return &TradeHandler{orchestrator: orchestrator}
}

func (h *TradeHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/listings", h.listForSale)
	router.POST("/listings/:id/cancel", h.cancelListing)
	router.POST("/listings/:id/purchase", h.purchase)
	router.POST("/listings/:id/reconcile", h.reconcile)
	router.GET("/marketplace", h.browse)
}

type listForSaleRequest struct {
	AssetID int64 `json:"asset_id" binding:"required"`
	Price   int64 `json:"price"`
}

// partialFailureData is returned with 202 responses so the caller can issue
// the reconciliation retry.
type partialFailureData struct {
	ListingID int64 `json:"listing_id"`
	AssetID   int64 `json:"asset_id"`
}

// @Summary      List an asset for sale
// @Description  Creates an active listing for a caller-owned asset and raises its for-sale flag. A 202 response means the listing was created but the flag write is lagging; call reconcile.
// @Tags         trade
// @Accept       json
// @Produce      json
// @Param        request body listForSaleRequest true "Listing request"
// @Success      201  {object}  response.APIResponse{data=market.Listing} "Listing created"
// @Success      202  {object}  response.APIResponse{data=partialFailureData} "Listing created, reconciliation pending"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      401  {object}  response.APIResponse "Authentication required"
// @Failure      403  {object}  response.APIResponse "Caller is not the owner"
// @Failure      404  {object}  response.APIResponse "Asset not found"
// @Failure      409  {object}  response.APIResponse "Asset already listed"
// @Router       /listings [post]
func (h *TradeHandler) listForSale(c *gin.Context) {
	caller, ok := identity.RequirePrincipal(c)
	if !ok {
		return
	}

	var req listForSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	if req.Price < 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "price cannot be negative", nil)
		return
	}

	l, err := h.orchestrator.ListForSale(c.Request.Context(), caller, req.AssetID, req.Price)
	if err != nil {
		h.writeTradeError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusCreated, true, "asset listed for sale", l)
}

// @Summary      Cancel a listing
// @Description  Deactivates the caller's active listing and clears the asset's for-sale flag. A 202 response means the listing is cancelled but the flag is lagging; call reconcile.
// @Tags         trade
// @Produce      json
// @Param        id   path  int  true  "Listing ID"
// @Success      200  {object}  response.APIResponse{data=market.Listing} "Listing cancelled"
// @Success      202  {object}  response.APIResponse{data=partialFailureData} "Listing cancelled, reconciliation pending"
// @Failure      400  {object}  response.APIResponse "Invalid listing ID"
// @Failure      401  {object}  response.APIResponse "Authentication required"
// @Failure      403  {object}  response.APIResponse "Caller is not the seller"
// @Failure      404  {object}  response.APIResponse "Listing not found"
// @Failure      409  {object}  response.APIResponse "Listing is not active"
// @Router       /listings/{id}/cancel [post]
func (h *TradeHandler) cancelListing(c *gin.Context) {
	caller, ok := identity.RequirePrincipal(c)
	if !ok {
		return
	}

	id, ok := listingIDParam(c)
	if !ok {
		return
	}

	l, err := h.orchestrator.CancelListing(c.Request.Context(), caller, id)
	if err != nil {
		h.writeTradeError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "listing cancelled", l)
}

// @Summary      Purchase a listed asset
// @Description  Transfers ownership to the caller at the listing price and records the completed transaction. A 202 response means ownership has transferred but the marketplace record or flag is lagging.
// @Tags         trade
// @Produce      json
// @Param        id   path  int  true  "Listing ID"
// @Success      200  {object}  response.APIResponse{data=market.Transaction} "Purchase completed"
// @Success      202  {object}  response.APIResponse{data=partialFailureData} "Ownership transferred, reconciliation pending"
// @Failure      400  {object}  response.APIResponse "Invalid listing ID"
// @Failure      401  {object}  response.APIResponse "Authentication required"
// @Failure      404  {object}  response.APIResponse "Listing or asset not found"
// @Failure      409  {object}  response.APIResponse "Listing not active or stale"
// @Failure      422  {object}  response.APIResponse "Buyer already owns the asset"
// @Router       /listings/{id}/purchase [post]
func (h *TradeHandler) purchase(c *gin.Context) {
	buyer, ok := identity.RequirePrincipal(c)
	if !ok {
		return
	}

	id, ok := listingIDParam(c)
	if !ok {
		return
	}

	t, err := h.orchestrator.Purchase(c.Request.Context(), buyer, id)
	if err != nil {
		h.writeTradeError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "purchase completed", t)
}

// @Summary      Reconcile a diverged listing
// @Description  Idempotent follow-up after a 202: finishes the sale record for a purchase that stalled after the ownership transfer, otherwise re-derives the asset's for-sale flag from the listing's authoritative state.
// @Tags         trade
// @Produce      json
// @Param        id   path  int  true  "Listing ID"
// @Success      200  {object}  response.APIResponse{data=assets.Asset} "State reconciled"
// @Failure      400  {object}  response.APIResponse "Invalid listing ID"
// @Failure      401  {object}  response.APIResponse "Authentication required"
// @Failure      403  {object}  response.APIResponse "Caller is not the asset owner"
// @Failure      404  {object}  response.APIResponse "Listing or asset not found"
// @Router       /listings/{id}/reconcile [post]
func (h *TradeHandler) reconcile(c *gin.Context) {
	caller, ok := identity.RequirePrincipal(c)
	if !ok {
		return
	}

	id, ok := listingIDParam(c)
	if !ok {
		return
	}

	a, err := h.orchestrator.Reconcile(c.Request.Context(), caller, id)
	if err != nil {
		h.writeTradeError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "state reconciled", a)
}

// @Summary      Browse the marketplace
// @Description  Active listings joined with their asset records
// @Tags         trade
// @Produce      json
// @Param        page   query  int  false  "Page number" default(1)
// @Param        limit  query  int  false  "Items per page" default(10)
// @Success      200  {object}  response.APIResponse{data=[]MarketplaceItem} "Marketplace items"
// @Router       /marketplace [get]
func (h *TradeHandler) browse(c *gin.Context) {
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

	items, _, err := h.orchestrator.Browse(c.Request.Context(), page, limit)
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "marketplace items", items)
}

func (h *TradeHandler) writeTradeError(c *gin.Context, err error) {
	var partial *PartialFailureError
	switch {
	case errors.As(err, &partial):
		// The caller's intent is committed; only the mirror write lags.
		response.SendAPIResponse(c, http.StatusAccepted, true,
			"request applied, state reconciliation pending",
			partialFailureData{ListingID: partial.ListingID, AssetID: partial.AssetID})
	case errors.Is(err, assets.ErrAssetNotFound):
		response.SendAPIResponse(c, http.StatusNotFound, false, "asset not found", nil)
	case errors.Is(err, market.ErrListingNotFound):
		response.SendAPIResponse(c, http.StatusNotFound, false, "listing not found", nil)
	case errors.Is(err, assets.ErrNotOwner):
		response.SendAPIResponse(c, http.StatusForbidden, false, "caller is not the asset owner", nil)
	case errors.Is(err, market.ErrNotSeller):
		response.SendAPIResponse(c, http.StatusForbidden, false, "caller is not the listing seller", nil)
	case errors.Is(err, market.ErrAlreadyListed):
		response.SendAPIResponse(c, http.StatusConflict, false, "asset already has an active listing", nil)
	case errors.Is(err, market.ErrListingNotActive):
		response.SendAPIResponse(c, http.StatusConflict, false, "listing is not active", nil)
	case errors.Is(err, ErrStaleListing):
		response.SendAPIResponse(c, http.StatusConflict, false, "listing is stale and has been retired", nil)
	case errors.Is(err, ErrSelfPurchase):
		response.SendAPIResponse(c, http.StatusUnprocessableEntity, false, "buyer already owns this asset", nil)
	default:
		response.SendAPIResponse(c, http.StatusBadGateway, false, err.Error(), nil)
	}
}

func listingIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid listing id", nil)
		return 0, false
	}
	return id, true
}
