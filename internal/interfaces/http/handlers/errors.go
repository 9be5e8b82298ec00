// internal/interfaces/http/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/catalog"
	"github.com/your-org/storefront/internal/domain/user"
	"github.com/your-org/storefront/internal/pkg/auth"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{catalog.ErrProductNotFound, http.StatusNotFound},
	{catalog.ErrVariantNotFound, http.StatusNotFound},
	{cart.ErrLineNotFound, http.StatusNotFound},
	{cart.ErrInsufficientStock, http.StatusConflict},
	{cart.ErrUnboundedStock, http.StatusConflict},
	{cart.ErrInvalidMode, http.StatusBadRequest},
	{cart.ErrInvalidValue, http.StatusBadRequest},
	{cart.ErrNoCartKey, http.StatusBadRequest},
	{user.ErrEmailTaken, http.StatusConflict},
	{user.ErrPasswordMismatch, http.StatusBadRequest},
	{auth.ErrWeakPassword, http.StatusBadRequest},
	{user.ErrInvalidCredentials, http.StatusUnauthorized},
	{user.ErrInactive, http.StatusForbidden},
}

// respondError maps domain errors to status codes. Unknown errors are
// logged and hidden behind a generic 500.
func respondError(c *gin.Context, log logrus.FieldLogger, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": err.Error()})
			return
		}
	}

	_ = c.Error(err)
	log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request data",
		"details": err.Error(),
	})
}
