package api

import (
	"net/http"
	"time"

	"food-storefront/services"

	"github.com/gin-gonic/gin"
)

// Server holds what the HTTP handlers need.
type Server struct {
	Catalog     services.Catalog
	Carts       services.CartStorage
	Orders      services.OrderRepository
	Checkout    *services.CheckoutService
	Auth        *services.AuthService
	Rules       services.PricingRules
	JWTSecret   []byte
	TokenTTL    time.Duration
	CORSOrigins []string
	CartLocks   *services.CartLocks // shared with the bot; created when nil
}

func NewRouter(s *Server) *gin.Engine {
	if s.CartLocks == nil {
		s.CartLocks = services.NewCartLocks()
	}
	r := gin.Default()
	if len(s.CORSOrigins) > 0 {
		r.Use(corsMiddleware(s.CORSOrigins))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	menuGroup := r.Group("/menu")
	{
		menuGroup.GET("", s.listMenu)
		menuGroup.GET("/categories", s.listCategories)
		menuGroup.GET("/:id", s.getMenuItem)
	}

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/signup", s.signup)
		authGroup.POST("/login", s.login)
	}

	shop := r.Group("/", OptionalAuth(s.JWTSecret))
	{
		shop.GET("/cart", s.getCart)
		shop.GET("/cart/totals", s.getTotals)
		shop.POST("/cart/items", s.addCartItem)
		shop.PATCH("/cart/items/:id", s.updateCartItem)
		shop.DELETE("/cart/items/:id", s.removeCartItem)
		shop.DELETE("/cart", s.clearCart)
		shop.POST("/checkout", s.checkout)
		shop.GET("/orders", RequireAuth(), s.listOrders)
	}

	return r
}
