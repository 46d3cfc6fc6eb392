package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voxdesk.io/internal/authz"
	"voxdesk.io/internal/httpapi"
	"voxdesk.io/internal/obs"
	"voxdesk.io/internal/security"
	"voxdesk.io/internal/session"
	"voxdesk.io/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("VOXDESK_COMMIT"))

	dsn := os.Getenv("VOXDESK_PG_DSN")
	if dsn == "" {
		log.Fatal("VOXDESK_PG_DSN is required")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	// The monitor is built here and injected everywhere it is needed; there
	// is deliberately no package-level instance.
	analyzer := security.NewAnalyzer(store)
	monitor := security.NewMonitor(store, analyzer)
	sink := security.NewSink(monitor)

	resolver := authz.NewResolver(store, sink)
	gate := authz.NewGate(store, sink)
	sessions := session.NewManager(store, monitor)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sessions.RunSweeper(sweepCtx, session.SweepInterval)

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, httpapi.Deps{
		Gate:     gate,
		Resolver: resolver,
		Sessions: sessions,
		Monitor:  monitor,
		Users:    store,
	})

	addr := os.Getenv("VOXDESK_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting voxdesk-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
