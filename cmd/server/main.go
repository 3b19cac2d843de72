package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"saldokonter/backend/internal/cache"
	"saldokonter/backend/internal/config"
	"saldokonter/backend/internal/httpapi"
	"saldokonter/backend/internal/jobs"
	"saldokonter/backend/internal/metrics"
	"saldokonter/backend/internal/notify"
	"saldokonter/backend/internal/realtime"
	"saldokonter/backend/internal/service"
	"saldokonter/backend/internal/store"
	"saldokonter/backend/internal/store/memory"
	pgstore "saldokonter/backend/internal/store/postgres"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	loc := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(startupCtx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		if err := pg.Migrate(startupCtx); err != nil {
			log.Fatalf("postgres schema: %v", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	catalogCache := cache.CatalogCache(cache.NoopCatalogCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCatalogCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(startupCtx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			catalogCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	hub := realtime.NewHub()
	go hub.Run(ctx)

	notifier := notify.Multi{notify.LogNotifier{}, notify.NewFeedNotifier(hub)}
	svc := service.New(repo, service.Options{
		Cache:     catalogCache,
		CacheTTL:  cfg.CatalogCacheTTL(),
		Notifier:  notifier,
		Publisher: hub,
	})
	wireChangeFeed(hub, svc)

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	if err := auth.EnsureAdmin(startupCtx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("admin bootstrap: %v", err)
	}
	api := httpapi.New(svc, auth, hub, cfg.AllowedOrigin, loc)

	scheduler, err := jobs.Start(ctx, loc, jobs.NewStaleShiftSweep(svc, notifier, cfg.StaleShiftAfter()))
	if err != nil {
		log.Fatalf("jobs: %v", err)
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("saldo konter backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	scheduler.Stop()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

// wireChangeFeed counts published events and drops cached reference data
// whenever the catalog or the fee brackets change.
func wireChangeFeed(hub *realtime.Hub, svc *service.Service) {
	for _, table := range []string{
		realtime.TableShifts,
		realtime.TableArchives,
		realtime.TableCatalog,
		realtime.TableFeeRules,
		realtime.TableStock,
		realtime.TableStockRequests,
		notify.Table,
	} {
		hub.OnChange(table, func(event realtime.Event) {
			metrics.ChangeEvents.WithLabelValues(event.Table).Inc()
		})
	}
	invalidate := func(realtime.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		svc.InvalidateReferenceData(ctx)
	}
	hub.OnChange(realtime.TableCatalog, invalidate)
	hub.OnChange(realtime.TableFeeRules, invalidate)
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AdminPassword == "" {
		// An existing admin account is enough; EnsureAdmin fails when none exists.
		return nil
	}
	if err := validatePasswordStrength(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("ADMIN_PASSWORD is too weak: %w", err)
	}
	return nil
}

// validatePasswordStrength rejects short or commonly picked passwords and
// ones that are little more than the username.
func validatePasswordStrength(username string, password string) error {
	if len(password) < 8 {
		return fmt.Errorf("at least 8 characters required")
	}
	lower := strings.ToLower(password)
	known := map[string]bool{
		"password": true, "12345678": true, "admin123": true, "admin1234": true,
		"qwerty123": true, "konter123": true, "saldo123": true, "11111111": true,
	}
	if known[lower] {
		return fmt.Errorf("common password not allowed")
	}
	if username != "" && strings.Contains(lower, strings.ToLower(username)) && len(lower) < len(username)+6 {
		return fmt.Errorf("password too close to the username")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("single repeated character not allowed")
	}
	return nil
}
