// internal/interfaces/http/handlers/catalog.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/catalog"
)

// CatalogHandler serves product options and availability
type CatalogHandler struct {
	catalogService *catalog.Service
	log            logrus.FieldLogger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService *catalog.Service, log logrus.FieldLogger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		log:            log,
	}
}

// AvailabilityRequest is the body of POST /products/:id/availability
type AvailabilityRequest struct {
	Selection catalog.Bind `json:"selection"`
}

// AvailabilityResponse describes every value of every feature against a
// selection, and the variant the full selection resolves to
type AvailabilityResponse struct {
	Selection catalog.Bind                  `json:"selection"`
	Features  []catalog.FeatureAvailability `json:"features"`
	Variant   *catalog.GroupProduct         `json:"variant,omitempty"`
	UnitPrice int64                         `json:"unit_price"`
	Missing   []string                      `json:"missing,omitempty"`
}

// GetOptions handles GET /products/:id/options
func (h *CatalogHandler) GetOptions(c *gin.Context) {
	productID, ok := parseID(c, "id")
	if !ok {
		return
	}

	opts, err := h.catalogService.Options(c.Request.Context(), productID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product options retrieved successfully",
		"data":    opts,
	})
}

// GetAvailability handles POST /products/:id/availability
func (h *CatalogHandler) GetAvailability(c *gin.Context) {
	productID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.Selection == nil {
		req.Selection = catalog.Bind{}
	}

	opts, err := h.catalogService.Options(c.Request.Context(), productID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	idx := opts.Index()
	resp := AvailabilityResponse{
		Selection: req.Selection,
		Features:  catalog.ResolveAll(idx, opts.Features, req.Selection),
		Missing:   catalog.MissingRequired(opts.Features, req.Selection),
		UnitPrice: opts.Product.Price,
	}
	if idx.Len() > 0 {
		if g, err := catalog.SelectVariant(idx, req.Selection); err == nil {
			resp.Variant = g
			resp.UnitPrice = opts.UnitPrice(g)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Availability resolved successfully",
		"data":    resp,
	})
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + param})
		return 0, false
	}
	return uint(id), true
}
