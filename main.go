package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"food-storefront/api"
	"food-storefront/bot"
	"food-storefront/config"
	"food-storefront/db"
	"food-storefront/services"

	"github.com/google/uuid"
)

// cartBackend is a cart store the purge job can sweep.
type cartBackend interface {
	services.CartStorage
	services.CartPurger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Check for migrate subcommand
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(cfg)
		return
	}

	if cfg.Telegram.Token == "" && cfg.Telegram.AdminToken == "" && cfg.HTTP.Addr == "" {
		fmt.Fprintln(os.Stderr, "nothing to run: set TOKEN, ADMIN_TOKEN or HTTP_ADDR")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		catalog services.CatalogEditor
		carts   cartBackend
		orders  services.OrderRepository
		users   services.UserRepository
		links   services.CustomerLinks
	)

	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		if err := db.Init(cfg.DB); err != nil {
			fmt.Fprintln(os.Stderr, "db:", err)
			os.Exit(1)
		}
		defer db.Close()

		// Optional auto-migration (useful in production and for fresh DBs).
		// Set AUTO_MIGRATE=1 (or "true") to enable.
		if v := strings.TrimSpace(os.Getenv("AUTO_MIGRATE")); v == "1" || strings.EqualFold(v, "true") {
			if err := applyMigrations(ctx, false); err != nil {
				fmt.Fprintln(os.Stderr, "migrate:", err)
				os.Exit(1)
			}
		}

		pgCatalog := services.NewPostgresCatalog(db.Pool)
		if err := pgCatalog.SeedIfEmpty(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "seed menu:", err)
			os.Exit(1)
		}
		catalog = pgCatalog
		carts = services.NewPostgresCartStorage(db.Pool)
		orders = services.NewPostgresOrderRepository(db.Pool)
		users = services.NewPostgresUserRepository(db.Pool)
		links = services.NewPostgresCustomerLinks(db.Pool)
	default:
		seed, err := services.SeedCatalog()
		if err != nil {
			fmt.Fprintln(os.Stderr, "seed menu:", err)
			os.Exit(1)
		}
		catalog = seed
		carts = services.NewMemoryCartStorage()
		orders = services.NewMemoryOrderRepository()
		users = services.NewInMemoryUserRepository()
		links = services.NewMemoryCustomerLinks()
	}

	purge, err := services.StartCartPurge(cfg.Storage.CartPurgeSchedule, carts, cfg.Storage.CartTTL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cart purge:", err)
		os.Exit(1)
	}
	defer purge.Stop()

	rules := services.PricingRules{
		TaxRate:               cfg.Pricing.TaxRate,
		DeliveryFee:           cfg.Pricing.DeliveryFee,
		FreeDeliveryThreshold: cfg.Pricing.FreeDeliveryThreshold,
	}
	// one lock set for every cart writer: bot, API and checkout
	cartLocks := services.NewCartLocks()
	checkout := &services.CheckoutService{
		Rules:         rules,
		Outcome:       services.NewRandomOutcome(cfg.Checkout.SuccessRate, cfg.Checkout.PaymentDelay, time.Now().UnixNano()),
		Orders:        orders,
		Locks:         cartLocks,
		EstimatedTime: cfg.Checkout.EstimatedTime,
	}
	if cfg.Broker.AMQPURL != "" {
		pub, err := services.DialAMQPPublisher(cfg.Broker.AMQPURL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "amqp:", err)
			os.Exit(1)
		}
		defer pub.Close()
		checkout.Publisher = pub
	}
	auth := services.NewAuthService(users, cfg.Auth.LoginDelay)

	if cfg.Telegram.Token != "" {
		b, err := bot.New(cfg.Telegram.Token, bot.Deps{
			Catalog:   catalog,
			Carts:     carts,
			Orders:    orders,
			Checkout:  checkout,
			Auth:      auth,
			Links:     links,
			Rules:     rules,
			CartLocks: cartLocks,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "bot:", err)
			os.Exit(1)
		}
		go b.Start(ctx)
		fmt.Println("Bot started.")
	}

	// Menu admin bot (ADMIN_TOKEN): admins log in with ADMIN_LOGIN
	if cfg.Telegram.AdminToken != "" {
		adder, err := bot.NewAdderBot(cfg, catalog)
		if err != nil {
			fmt.Fprintln(os.Stderr, "admin bot:", err)
			os.Exit(1)
		}
		go adder.Start(ctx)
		fmt.Println("Admin bot started.")
	}

	if cfg.HTTP.Addr != "" {
		secret := cfg.Auth.JWTSecret
		if secret == "" {
			secret = uuid.NewString()
			log.Println("JWT_SECRET not set; tokens will not survive a restart")
		}
		router := api.NewRouter(&api.Server{
			Catalog:     catalog,
			Carts:       carts,
			Orders:      orders,
			Checkout:    checkout,
			Auth:        auth,
			Rules:       rules,
			JWTSecret:   []byte(secret),
			TokenTTL:    cfg.Auth.TokenTTL,
			CORSOrigins: cfg.HTTP.CORSOrigins,
			CartLocks:   cartLocks,
		})
		srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		fmt.Println("API listening on", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, "http:", err)
			os.Exit(1)
		}
	}

	<-ctx.Done()
	fmt.Println("Shutting down.")
}

func runMigrate(cfg *config.Config) {
	if err := db.Init(cfg.DB); err != nil {
		fmt.Fprintln(os.Stderr, "db:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := applyMigrations(context.Background(), true); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
