// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/interfaces/http/middleware"
)

// CartHandler handles cart endpoints
type CartHandler struct {
	cartService *cart.Service
	config      *config.Config
	log         logrus.FieldLogger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService *cart.Service, cfg *config.Config, log logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		config:      cfg,
		log:         log,
	}
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	view, err := h.cartService.View(c.Request.Context(), h.cartKey(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data":    view,
	})
}

// UpdateCart handles POST /cart/update
func (h *CartHandler) UpdateCart(c *gin.Context) {
	var req cart.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.cartService.Update(c.Request.Context(), h.cartKey(c), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart updated successfully",
		"data":    result,
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	if err := h.cartService.Clear(c.Request.Context(), h.cartKey(c)); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared successfully",
	})
}

// MergeCart handles POST /cart/merge. The guest cart id comes from the body
// or, failing that, the guest header or cookie.
func (h *CartHandler) MergeCart(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	var req cart.MergeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}
	if req.GuestCartID == "" {
		req.GuestCartID = h.guestID(c)
	} else if !validGuestID(req.GuestCartID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid guest cart id"})
		return
	}

	if err := h.cartService.Merge(c.Request.Context(), userID, req.GuestCartID); err != nil {
		respondError(c, h.log, err)
		return
	}
	h.forgetGuest(c)

	view, err := h.cartService.View(c.Request.Context(), cart.Key{UserID: &userID})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart merged successfully",
		"data":    view,
	})
}

// cartKey selects the user's cart when authenticated, else the guest cart,
// issuing a new guest id when the client has none.
func (h *CartHandler) cartKey(c *gin.Context) cart.Key {
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		return cart.Key{UserID: &userID}
	}

	guestID := h.guestID(c)
	if guestID == "" {
		guestID = uuid.NewString()
	}
	c.Header(h.config.Cart.GuestHeader, guestID)
	c.SetCookie(h.config.Cart.GuestCookie, guestID, int(h.config.Cart.GuestTTL.Seconds()), "/", "", h.config.IsProduction(), true)
	return cart.Key{GuestID: guestID}
}

func (h *CartHandler) guestID(c *gin.Context) string {
	if id := c.GetHeader(h.config.Cart.GuestHeader); validGuestID(id) {
		return id
	}
	if id, err := c.Cookie(h.config.Cart.GuestCookie); err == nil && validGuestID(id) {
		return id
	}
	return ""
}

func (h *CartHandler) forgetGuest(c *gin.Context) {
	c.SetCookie(h.config.Cart.GuestCookie, "", -1, "/", "", h.config.IsProduction(), true)
}

func validGuestID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
