package httpserver

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"sidehustle-shop/internal/config"
	"sidehustle-shop/internal/events"
	"sidehustle-shop/internal/logger"
)

// buildRouter wires routes for the API.
// Event streams end when closing is closed.
func buildRouter(cfg *config.Config, logg *logger.Logger, deps Deps, closing <-chan struct{}) (*gin.Engine, error) {
	if err := validateDeps(deps); err != nil {
		return nil, err
	}
	if logg == nil {
		logg = logger.Discard()
	}
	if deps.Bus == nil {
		deps.Bus = events.NewBus(logg)
	}

	if cfg.App.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		requestIDMiddleware(logg),
		accessLogMiddleware(logg, deps.Metrics),
		gin.RecoveryWithWriter(logg.Writer()),
	)
	if corsCfg, ok := corsConfig(cfg.CORS); ok {
		router.Use(cors.New(corsCfg))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Storage, deps.Gateway))
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	h := &handler{
		cfg:     cfg,
		log:     logg,
		storage: deps.Storage,
		bus:     deps.Bus,
		catalog: deps.Catalog,
		gateway: deps.Gateway,
		metrics: deps.Metrics,
		closing: closing,
	}

	api := router.Group("/api")

	catalogGroup := api.Group("/catalog")
	catalogGroup.GET("/products", h.listProducts)
	catalogGroup.GET("/products/:id", h.getProduct)
	catalogGroup.GET("/options", h.listOptions)
	catalogGroup.GET("/categories", h.listCategories)

	session := api.Group("", sessionMiddleware(newCookieStore(cfg.Session), cfg.Session.CookieName, logg))

	cartGroup := session.Group("/cart")
	cartGroup.GET("", h.getCart)
	cartGroup.DELETE("", h.clearCart)
	cartGroup.POST("/items", h.addItem)
	cartGroup.POST("/items/default", h.addDefaultItem)
	cartGroup.PATCH("/items/:id", h.updateQuantity)
	cartGroup.DELETE("/items/:id", h.removeItem)
	cartGroup.GET("/products/:productId", h.productInCart)
	cartGroup.GET("/events", h.cartEvents)

	checkoutGroup := session.Group("/checkout")
	checkoutGroup.GET("", h.checkoutStatus)
	checkoutGroup.GET("/order", h.previewOrder)
	checkoutGroup.POST("/orders", h.createOrder)
	checkoutGroup.POST("/orders/:id/capture", h.approveOrder)
	checkoutGroup.POST("/orders/:id/cancel", h.cancelOrder)
	checkoutGroup.POST("/errors", h.checkoutError)

	return router, nil
}

func corsConfig(c config.CORSConfig) (cors.Config, bool) {
	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return cors.Config{}, false
	}

	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cc.AllowAllOrigins = true
			return cc, true
		}
	}
	cc.AllowOrigins = origins
	cc.AllowCredentials = true
	return cc, true
}
