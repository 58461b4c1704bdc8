package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lucentpay-checkout/internal/config"
	"lucentpay-checkout/internal/handlers"
	"lucentpay-checkout/internal/middleware"
	"lucentpay-checkout/internal/payments"
	"lucentpay-checkout/internal/payments/stripe"
	"lucentpay-checkout/internal/service"
	"lucentpay-checkout/pkg/logger"
)

const poweredBy = "LucentPay Checkout"

type Options struct {
	// Provider overrides the gateway built from configuration. Tests use it to avoid the network.
	Provider payments.Provider
}

type Application struct {
	cfg     *config.Config
	options Options

	provider    payments.Provider
	rateLimiter *middleware.RateLimitManager

	services serviceContainer
	handlers handlerContainer

	router *gin.Engine
	server *http.Server
}

type serviceContainer struct {
	Prices   *service.PriceResolver
	Checkout *service.CheckoutService
}

type handlerContainer struct {
	Checkout *handlers.CheckoutHandler
}

func New(cfg *config.Config, opts Options) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	app := &Application{
		cfg:     cfg,
		options: opts,
	}

	if err := app.initProvider(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHandlers()
	app.initRouter()

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Outbound gateway calls may take up to GatewayTimeout before we answer.
		WriteTimeout:   cfg.GatewayTimeout + 5*time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return app, nil
}

func (a *Application) Run() error {
	logger.Info("Server starting", map[string]interface{}{
		"port":            a.cfg.Port,
		"environment":     a.cfg.Environment,
		"has_gateway_key": a.provider != nil,
		"has_price":       a.cfg.HasPrice(),
	})

	return a.server.ListenAndServe()
}

func (a *Application) Shutdown(ctx context.Context) error {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return err
		}
	}

	if a.rateLimiter != nil {
		if err := a.rateLimiter.Shutdown(); err != nil {
			logger.Error(err, "Failed to stop rate limiter", nil)
		}
	}

	return nil
}

func (a *Application) Router() *gin.Engine {
	return a.router
}

// initProvider wires the Stripe gateway. A missing key is not fatal: the service starts,
// health reports the gap and checkout endpoints answer with a configuration error.
func (a *Application) initProvider() error {
	if a.options.Provider != nil {
		a.provider = a.options.Provider
		return nil
	}

	if !a.cfg.HasGatewayKey() {
		logger.Warn("STRIPE_SECRET_KEY is not set; checkout endpoints are disabled", nil)
		return nil
	}

	if err := stripe.CheckSecretKey(a.cfg.GatewayAPIKey); err != nil {
		logger.Warn("Configured Stripe key looks suspicious", map[string]interface{}{"reason": err.Error()})
	}
	if a.cfg.IsProduction() && stripe.ModeOf(a.cfg.GatewayAPIKey) == stripe.KeyModeTest {
		logger.Warn("Running in production with a Stripe test key", nil)
	}

	provider, err := stripe.NewProvider(a.cfg.GatewayAPIKey, stripe.Config{
		APIBaseURL:      a.cfg.GatewayBaseURL,
		Timeout:         a.cfg.GatewayTimeout,
		BreakerFailures: a.cfg.BreakerFailures,
		BreakerCooldown: a.cfg.BreakerCooldown,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize stripe provider: %w", err)
	}

	a.provider = provider
	return nil
}

func (a *Application) initServices() {
	prices := service.NewPriceResolver(a.provider, a.cfg.GatewayTimeout)
	a.services = serviceContainer{
		Prices: prices,
		Checkout: service.NewCheckoutService(a.provider, prices, service.CheckoutConfig{
			PriceID:     a.cfg.ProductPriceID,
			SiteBaseURL: a.cfg.SiteBaseURL,
		}),
	}
}

func (a *Application) initHandlers() {
	a.handlers = handlerContainer{
		Checkout: handlers.NewCheckoutHandler(a.services.Checkout, a.cfg.ExposeGatewayErrors),
	}
}

func (a *Application) initRouter() {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	a.rateLimiter = middleware.NewRateLimitManager(
		context.Background(),
		a.cfg.RateLimitRequests,
		a.cfg.RateLimitWindow,
		a.cfg.RateLimitBurst,
	)

	policy := middleware.NewOriginPolicy(a.cfg.AllowedOrigins, a.cfg.TrustedDomain, a.cfg.StorefrontSuffix)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(logger.GinLogger())
	if a.cfg.EnableMetrics {
		router.Use(middleware.MetricsMiddleware())
	}
	router.Use(middleware.SecurityHeadersMiddleware(poweredBy))
	router.Use(middleware.CORSMiddleware(policy))
	router.Use(middleware.RateLimitMiddleware(a.rateLimiter))

	checkout := a.handlers.Checkout

	router.GET("/", checkout.Health)
	router.GET("/health", checkout.Health)
	router.GET("/debug/price", checkout.DebugPrice)
	router.POST("/create-pro-checkout", checkout.CreateProCheckout)
	router.POST("/create-checkout-session", checkout.CreateCheckoutSession)
	router.GET("/verify-session", checkout.VerifySession)

	// Preflights from permitted origins are answered by the CORS middleware; this catches
	// the ones without an Origin header.
	router.OPTIONS("/*path", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	if a.cfg.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Route not found",
			"path":  c.Request.URL.Path,
		})
	})

	a.router = router
}
