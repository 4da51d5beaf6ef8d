package market

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"assetbay/pkg/identity"
	"assetbay/pkg/response"
)

// The marketplace handler exposes the store's reads and the one mutation
// that needs no cross-store sequencing (listing price update). Listing
// creation, cancellation, and purchase are compound operations and live on
// the trade handler.
type MarketHandler struct {
	service MarketService
}

func NewMarketHandler(service MarketService) *MarketHandler {
	return &MarketHandler{service: service}
}

func (h *MarketHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/listings", h.listListings)
	router.GET("/listings/:id", h.getListingByID)
	router.PATCH("/listings/:id/price", h.updateListingPrice)
	router.GET("/market/stats", h.getStats)
	router.GET("/users/:principal/transactions", h.listTransactionsByUser)
}

type updateListingPriceRequest struct {
	Price int64 `json:"price"`
}

// @Summary      List listings
// @Description  Paginated listings with optional seller, active, and asset filters
// @Tags         market
// @Produce      json
// @Param        page    query  int     false  "Page number" default(1)
// @Param        limit   query  int     false  "Items per page" default(10)
// @Param        seller  query  string  false  "Filter by seller principal"
// @Param        active  query  bool    false  "Filter by active flag"
// @Param        asset_id query int     false  "Filter by asset ID"
// @Success      200  {object}  response.APIResponse{data=ListingList} "Listings"
// @Router       /listings [get]
func (h *MarketHandler) listListings(c *gin.Context) {
	page, limit := pageParams(c)

	filters := ListingFilters{}
	if seller := c.Query("seller"); seller != "" {
		filters.Seller = &seller
	}
	if activeStr := c.Query("active"); activeStr != "" {
		if active, err := strconv.ParseBool(activeStr); err == nil {
			filters.IsActive = &active
		}
	}
	if assetIDStr := c.Query("asset_id"); assetIDStr != "" {
		if assetID, err := strconv.ParseInt(assetIDStr, 10, 64); err == nil && assetID > 0 {
			filters.AssetID = &assetID
		}
	}

	items, total, err := h.service.ListListings(c.Request.Context(), filters, page, limit)
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "listings",
		ListingList{Items: items, Total: total, Page: page, Limit: limit})
}

// @Summary      Get listing by ID
// @Tags         market
// @Produce      json
// @Param        id   path      int  true  "Listing ID"
// @Success      200  {object}  response.APIResponse{data=Listing} "Listing"
// @Failure      400  {object}  response.APIResponse "Invalid listing ID"
// @Failure      404  {object}  response.APIResponse "Listing not found"
// @Router       /listings/{id} [get]
func (h *MarketHandler) getListingByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid listing id", nil)
		return
	}

	l, err := h.service.GetListingByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrListingNotFound) {
			response.SendAPIResponse(c, http.StatusNotFound, false, "listing not found", nil)
			return
		}
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "listing fetched", l)
}

// @Summary      Update listing price
// @Description  Seller updates the price of their active listing. The listing price is the one a purchase pays.
// @Tags         market
// @Accept       json
// @Produce      json
// @Param        id       path  int                        true  "Listing ID"
// @Param        request  body  updateListingPriceRequest  true  "New price"
// @Success      200  {object}  response.APIResponse{data=Listing} "Price updated"
// @Failure      400  {object}  response.APIResponse "Invalid request"
// @Failure      401  {object}  response.APIResponse "Authentication required"
// @Failure      403  {object}  response.APIResponse "Caller is not the seller"
// @Failure      404  {object}  response.APIResponse "Listing not found"
// @Failure      409  {object}  response.APIResponse "Listing is not active"
// @Router       /listings/{id}/price [patch]
func (h *MarketHandler) updateListingPrice(c *gin.Context) {
	caller, ok := identity.RequirePrincipal(c)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid listing id", nil)
		return
	}

	var req updateListingPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}

	l, err := h.service.UpdateListingPrice(c.Request.Context(), caller, id, req.Price)
	if err != nil {
		switch {
		case errors.Is(err, ErrListingNotFound):
			response.SendAPIResponse(c, http.StatusNotFound, false, "listing not found", nil)
		case errors.Is(err, ErrNotSeller):
			response.SendAPIResponse(c, http.StatusForbidden, false, "caller is not the listing seller", nil)
		case errors.Is(err, ErrListingNotActive):
			response.SendAPIResponse(c, http.StatusConflict, false, "listing is not active", nil)
		default:
			response.SendAPIResponse(c, http.StatusBadRequest, false, err.Error(), nil)
		}
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "listing price updated", l)
}

// @Summary      Marketplace stats
// @Tags         market
// @Produce      json
// @Success      200  {object}  response.APIResponse{data=MarketStats} "Marketplace stats"
// @Router       /market/stats [get]
func (h *MarketHandler) getStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "marketplace stats", stats)
}

// @Summary      List a user's transactions
// @Description  Transactions where the principal is buyer or seller
// @Tags         market
// @Produce      json
// @Param        principal  path   string  true   "User principal"
// @Param        page       query  int     false  "Page number" default(1)
// @Param        limit      query  int     false  "Items per page" default(10)
// @Success      200  {object}  response.APIResponse{data=TransactionList} "Transactions"
// @Router       /users/{principal}/transactions [get]
func (h *MarketHandler) listTransactionsByUser(c *gin.Context) {
	principal := c.Param("principal")
	if principal == "" {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid principal", nil)
		return
	}

	page, limit := pageParams(c)

	items, total, err := h.service.ListTransactionsByUser(c.Request.Context(), principal, page, limit)
	if err != nil {
		response.SendAPIResponse(c, http.StatusInternalServerError, false, err.Error(), nil)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "transactions",
		TransactionList{Items: items, Total: total, Page: page, Limit: limit})
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
