package api

import (
	"errors"
	"net/http"
	"strings"

	"food-storefront/models"
	"food-storefront/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// GET /menu?category=&subcategory=&dietary=Vegan,Jain&spice=&minPrice=&maxPrice=&q=&sort=
func (s *Server) listMenu(c *gin.Context) {
	f, err := menuFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items, err := s.Catalog.ListMenu(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load menu"})
		return
	}
	result := services.FilterAndSort(items, f)
	c.JSON(http.StatusOK, gin.H{"items": result, "count": len(result)})
}

func menuFilterFromQuery(c *gin.Context) (services.MenuFilter, error) {
	f := services.MenuFilter{
		Category:      c.DefaultQuery("category", services.CategoryAll),
		Subcategories: splitQuery(c.Query("subcategory")),
		DietaryTags:   splitQuery(c.Query("dietary")),
		SpiceLevel:    c.DefaultQuery("spice", services.SpiceLevelAll),
		Search:        c.Query("q"),
		SortBy:        c.DefaultQuery("sort", services.SortRecommended),
	}
	if !services.ValidSortBy(f.SortBy) {
		return f, errors.New("invalid sort")
	}
	minStr, maxStr := c.Query("minPrice"), c.Query("maxPrice")
	if minStr != "" || maxStr != "" {
		pr := &services.PriceRange{Min: decimal.Zero, Max: decimal.NewFromInt(1_000_000)}
		if minStr != "" {
			v, err := decimal.NewFromString(minStr)
			if err != nil {
				return f, errors.New("invalid minPrice")
			}
			pr.Min = v
		}
		if maxStr != "" {
			v, err := decimal.NewFromString(maxStr)
			if err != nil {
				return f, errors.New("invalid maxPrice")
			}
			pr.Max = v
		}
		f.PriceRange = pr
	}
	return f, nil
}

func splitQuery(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Server) listCategories(c *gin.Context) {
	items, err := s.Catalog.ListMenu(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load menu"})
		return
	}
	resp := gin.H{
		"categories":     services.Categories(items),
		"dietaryFilters": services.DietaryFilters,
	}
	if cat := c.Query("category"); cat != "" {
		resp["subcategories"] = services.Subcategories(items, cat)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getMenuItem(c *gin.Context) {
	item, err := services.GetMenuItem(c.Request.Context(), s.Catalog, c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load menu"})
		return
	}
	c.JSON(http.StatusOK, item)
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, err := s.Auth.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		c.JSON(authErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	s.respondWithToken(c, http.StatusCreated, user)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, err := s.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(authErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	s.respondWithToken(c, http.StatusOK, user)
}

func (s *Server) respondWithToken(c *gin.Context, status int, user *models.User) {
	token, err := services.GenerateToken(s.JWTSecret, user, s.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(status, gin.H{"user": user, "token": token})
}

func authErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, services.ErrLoginThrottled):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

type cartResponse struct {
	CartKey string                  `json:"cartKey"`
	Items   []models.CartLineItem   `json:"items"`
	Count   int                     `json:"count"`
	Totals  models.PricingBreakdown `json:"totals"`
}

func (s *Server) cartView(cart *services.CartStore, deliveryType string) cartResponse {
	return cartResponse{
		CartKey: cart.Key(),
		Items:   cart.Items(),
		Count:   cart.Count(),
		Totals:  cart.Totals(s.Rules, deliveryType, decimal.Zero),
	}
}

// withCart loads the request's cart under its lock and hands it to fn.
func (s *Server) withCart(c *gin.Context, fn func(cart *services.CartStore)) {
	key := cartKey(c)
	unlock := s.CartLocks.Lock(key)
	defer unlock()

	cart, err := services.NewCartStore(c.Request.Context(), s.Carts, key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cart"})
		return
	}
	fn(cart)
}

// loadCart reads the request's cart under its lock and releases it straight away.
func (s *Server) loadCart(c *gin.Context) (*services.CartStore, error) {
	key := cartKey(c)
	unlock := s.CartLocks.Lock(key)
	defer unlock()
	return services.NewCartStore(c.Request.Context(), s.Carts, key)
}

func deliveryTypeQuery(c *gin.Context) string {
	if c.Query("deliveryType") == models.DeliveryTypePickup {
		return models.DeliveryTypePickup
	}
	return models.DeliveryTypeDelivery
}

func (s *Server) getCart(c *gin.Context) {
	s.withCart(c, func(cart *services.CartStore) {
		c.JSON(http.StatusOK, s.cartView(cart, deliveryTypeQuery(c)))
	})
}

// GET /cart/totals?deliveryType=pickup&discount=2.50
func (s *Server) getTotals(c *gin.Context) {
	discount := decimal.Zero
	if v := c.Query("discount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid discount"})
			return
		}
		discount = d
	}
	s.withCart(c, func(cart *services.CartStore) {
		totals := cart.Totals(s.Rules, deliveryTypeQuery(c), discount)
		c.JSON(http.StatusOK, gin.H{
			"totals":               totals,
			"amountToFreeDelivery": services.AmountToFreeDelivery(totals.Subtotal, s.Rules),
		})
	})
}

type addItemRequest struct {
	ItemID              string            `json:"itemId"`
	Quantity            int               `json:"quantity"`
	Customizations      models.Selections `json:"customizations"`
	SpecialInstructions string            `json:"specialInstructions"`
}

func (s *Server) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	item, err := services.GetMenuItem(c.Request.Context(), s.Catalog, req.ItemID)
	if err != nil {
		if errors.Is(err, services.ErrItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load menu"})
		return
	}
	if len(req.Customizations) == 0 {
		req.Customizations = services.DefaultSelections(*item)
	}
	if err := services.ValidateSelections(*item, req.Customizations); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.withCart(c, func(cart *services.CartStore) {
		line, err := cart.Add(c.Request.Context(), *item, req.Quantity, req.Customizations, strings.TrimSpace(req.SpecialInstructions))
		if err != nil {
			if errors.Is(err, services.ErrInvalidQuantity) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save cart"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"line": line, "cart": s.cartView(cart, models.DeliveryTypeDelivery)})
	})
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (s *Server) updateCartItem(c *gin.Context) {
	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity is required"})
		return
	}
	s.withCart(c, func(cart *services.CartStore) {
		if _, ok := cart.Find(c.Param("id")); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
			return
		}
		if err := cart.UpdateQuantity(c.Request.Context(), c.Param("id"), *req.Quantity); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save cart"})
			return
		}
		c.JSON(http.StatusOK, s.cartView(cart, models.DeliveryTypeDelivery))
	})
}

func (s *Server) removeCartItem(c *gin.Context) {
	s.withCart(c, func(cart *services.CartStore) {
		if err := cart.Remove(c.Request.Context(), c.Param("id")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save cart"})
			return
		}
		c.JSON(http.StatusOK, s.cartView(cart, models.DeliveryTypeDelivery))
	})
}

func (s *Server) clearCart(c *gin.Context) {
	s.withCart(c, func(cart *services.CartStore) {
		if err := cart.Clear(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save cart"})
			return
		}
		c.JSON(http.StatusOK, s.cartView(cart, models.DeliveryTypeDelivery))
	})
}

func (s *Server) checkout(c *gin.Context) {
	var in models.CheckoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	in.UserID = currentUserID(c)

	cart, err := s.loadCart(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load cart"})
		return
	}
	// payment runs without the cart lock; PlaceOrder re-locks to empty the cart
	res, err := s.Checkout.PlaceOrder(c.Request.Context(), cart, in)
	switch {
	case errors.Is(err, services.ErrEmptyCart), errors.Is(err, services.ErrInvalidCheckout):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !res.Success {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"success": false,
			"reason":  res.Reason,
			"totals":  res.Totals,
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"orderId":       res.OrderID,
		"totals":        res.Totals,
		"estimatedTime": res.EstimatedTime,
		"order":         res.Order,
	})
}

func (s *Server) listOrders(c *gin.Context) {
	orders, err := s.Orders.ListOrdersByUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load orders"})
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
