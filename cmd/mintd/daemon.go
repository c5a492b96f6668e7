package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/chaumint/mintd/api"
	"github.com/chaumint/mintd/config"
	"github.com/chaumint/mintd/mint"
	"github.com/chaumint/mintd/rotation"
	"github.com/chaumint/mintd/store/denom"
	"github.com/chaumint/mintd/store/keystore"
	"github.com/chaumint/mintd/store/ledger"
)

// runDaemon opens the three stores, bootstraps the denomination ladder,
// starts the rotation scheduler, and serves the HTTP API until an
// interrupt signal or a server error ends it.
func runDaemon(cfg config.Config) error {
	fmt.Println("Loading...")
	loadStart := time.Now()

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	fmt.Println("Opening denomination store...")
	denoms, err := denom.Open(filepath.Join(cfg.DataDir, "denominations.db"))
	if err != nil {
		return fmt.Errorf("open denomination store: %w", err)
	}
	defer denoms.Close()

	fmt.Println("Opening key store...")
	keys, err := keystore.Open(filepath.Join(cfg.DataDir, "keystore.db"), cfg.KeyCacheSize, cfg.RetentionWindow)
	if err != nil {
		return fmt.Errorf("open key store: %w", err)
	}
	defer keys.Close()

	fmt.Println("Opening ledger...")
	ldg, err := ledger.Open(filepath.Join(cfg.DataDir, "ledger.db"))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ldg.Close()

	controller := mint.New(denoms, keys, ldg, mint.Config{
		RSABits:          cfg.RSABits,
		RotationInterval: cfg.RotationInterval,
	})

	fmt.Println("Bootstrapping denomination ladder...")
	now := time.Now()
	if err := controller.Bootstrap(now); err != nil {
		return fmt.Errorf("bootstrap ladder: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := rotation.New(denoms, keys, cfg.RSABits, cfg.RotationInterval, cfg.Currency)
	go scheduler.Run(ctx)

	fmt.Println("Binding API address and serving the API...")
	srv := api.NewServer(controller, cfg.APIKey)
	httpServer := &http.Server{Addr: cfg.APIAddr, Handler: srv}

	servErrs := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			servErrs <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\rCaught stop signal, quitting...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
		cancel()
		close(servErrs)
	}()

	fmt.Println("Finished loading in", time.Since(loadStart).Seconds(), "seconds")
	return <-servErrs
}
