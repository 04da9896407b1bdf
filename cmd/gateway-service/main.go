// cmd/gateway-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vendagate/internal/accessscope"
	"vendagate/internal/credentials"
	"vendagate/internal/erp"
	"vendagate/internal/httpapi"
	"vendagate/internal/tokenbroker"
	"vendagate/pkg/cache"
	"vendagate/pkg/config"
	"vendagate/pkg/db"
	"vendagate/pkg/logger"
	"vendagate/pkg/middleware"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var store cache.Store
	if rdb != nil {
		store = cache.NewRedis(rdb)
	} else {
		store = cache.NewMemory()
	}

	var (
		credRes    credentials.Resolver
		scopeStore accessscope.Store
	)
	if pool != nil {
		ctx := context.Background()
		if err := credentials.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("contract schema", "err", err)
		}
		if err := accessscope.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("linkage schema", "err", err)
		}
		if err := httpapi.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("partner schema", "err", err)
		}
		if err := credentials.SeedFromFile(ctx, pool, cfg.TenantSeedFile); err != nil {
			log.Warnw("seed", "err", err)
		}
		credRes = credentials.NewPostgresResolver(pool, log)
		scopeStore = accessscope.NewPostgresStore(pool, log)
	} else {
		credRes = credentials.NewMemoryResolver()
		scopeStore = accessscope.NewMemoryStore()
	}
	if cfg.ContractTTL > 0 {
		credRes = credentials.NewCached(credRes, store, cfg.ContractTTL)
	}

	broker := tokenbroker.New(credRes, store, cfg.TokenLifetime, cfg.ERPTimeout, log)
	gateway := erp.NewGateway(credRes, broker, cfg.ERPTimeout, cfg.ERPBatchSize, log)
	scopes := accessscope.NewResolver(scopeStore, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing())
	r.Use(middleware.Identity(cfg))
	httpapi.Routes(r, httpapi.Deps{
		Log:     log,
		Pool:    pool,
		Broker:  broker,
		Gateway: gateway,
		Scopes:  scopes,
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("gateway-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("gateway-service stopped")
}
