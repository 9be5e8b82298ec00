// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/catalog"
	"github.com/your-org/storefront/internal/domain/user"
	"github.com/your-org/storefront/internal/interfaces/http/handlers"
	"github.com/your-org/storefront/internal/interfaces/http/middleware"
	"gorm.io/gorm"
)

// Services holds the domain services the routes dispatch to
type Services struct {
	Catalog *catalog.Service
	Cart    *cart.Service
	User    *user.Service
}

// NewServices builds every domain service over the given connections
func NewServices(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, log logrus.FieldLogger) *Services {
	catalogService := catalog.NewService(db, redisClient, cfg, log.WithField("component", "catalog"))
	return &Services{
		Catalog: catalogService,
		Cart:    cart.NewService(db, redisClient, catalogService, cfg, log.WithField("component", "cart")),
		User:    user.NewService(db, cfg, log.WithField("component", "user")),
	}
}

// SetupRoutes registers every API route on rg
func SetupRoutes(rg *gin.RouterGroup, svc *Services, cfg *config.Config, log logrus.FieldLogger) {
	SetupAuthRoutes(rg, svc, cfg, log)
	SetupProductRoutes(rg, svc, log)
	SetupCartRoutes(rg, svc, cfg, log)
}

// SetupAuthRoutes sets up authentication related routes
func SetupAuthRoutes(rg *gin.RouterGroup, svc *Services, cfg *config.Config, log logrus.FieldLogger) {
	authHandler := handlers.NewAuthHandler(svc.User, log)

	auth := rg.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)

		protected := auth.Group("")
		protected.Use(middleware.AuthMiddleware(cfg))
		{
			protected.GET("/profile", authHandler.GetProfile)
		}
	}
}

// SetupProductRoutes sets up catalog read routes
func SetupProductRoutes(rg *gin.RouterGroup, svc *Services, log logrus.FieldLogger) {
	catalogHandler := handlers.NewCatalogHandler(svc.Catalog, log)

	products := rg.Group("/products")
	{
		products.GET("/:id/options", catalogHandler.GetOptions)
		products.POST("/:id/availability", catalogHandler.GetAvailability)
	}
}

// SetupCartRoutes sets up cart routes. Guests and users share the same
// endpoints; merge requires authentication.
func SetupCartRoutes(rg *gin.RouterGroup, svc *Services, cfg *config.Config, log logrus.FieldLogger) {
	cartHandler := handlers.NewCartHandler(svc.Cart, cfg, log)

	cart := rg.Group("/cart")
	cart.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		cart.GET("", cartHandler.GetCart)
		cart.POST("/update", cartHandler.UpdateCart)
		cart.DELETE("", cartHandler.ClearCart)
	}

	merge := rg.Group("/cart")
	merge.Use(middleware.AuthMiddleware(cfg))
	{
		merge.POST("/merge", cartHandler.MergeCart)
	}
}
