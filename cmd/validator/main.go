// Copyright 2025 Certen Protocol
//
// cmd/validator is the process entry point: load config, materialize keys,
// connect the store, wire the chain client/peer registry/slasher into the
// auditor, register scheduled tasks, and run until signaled.

package main

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certen/gateway-validator/pkg/audit"
	"github.com/certen/gateway-validator/pkg/bundler"
	"github.com/certen/gateway-validator/pkg/chain"
	"github.com/certen/gateway-validator/pkg/config"
	"github.com/certen/gateway-validator/pkg/epoch"
	"github.com/certen/gateway-validator/pkg/keys"
	"github.com/certen/gateway-validator/pkg/metrics"
	"github.com/certen/gateway-validator/pkg/peer"
	"github.com/certen/gateway-validator/pkg/receipt"
	"github.com/certen/gateway-validator/pkg/scheduler"
	"github.com/certen/gateway-validator/pkg/slasher"
	"github.com/certen/gateway-validator/pkg/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bundlerCfg, err := bundler.FetchConfig(ctx, cfg.BundlerURL)
	if err != nil {
		return fmt.Errorf("fetch bundler config: %w", err)
	}
	arweaveURL := cfg.ResolvedArweaveURL(bundlerCfg.Gateway)
	log.Printf("bundler config fetched, gateway chain at %s", arweaveURL)

	bundlerKey, err := loadBundlerKey(cfg)
	if err != nil {
		return fmt.Errorf("load bundler key: %w", err)
	}

	validatorJWK, err := keys.ValidatorKey(cfg.ValidatorKey)
	if err != nil {
		return fmt.Errorf("load validator key: %w", err)
	}
	log.Printf("validator key loaded: kid=%s", validatorJWK.KeyID)

	storeClient, err := store.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer storeClient.Close()

	if err := storeClient.MigrateUp(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	txStore := store.NewStore(storeClient)

	peers, err := peer.LoadFile(cfg.ValidatorPeersFile)
	if err != nil {
		return fmt.Errorf("load peer registry: %w", err)
	}
	peerRegistry := peer.NewRegistry(peers, realPeerHTTPClient{})

	chainClient := chain.NewClient(arweaveURL)
	slashTransport := slasher.NewLoggingTransport()
	slash := slasher.New(slashTransport)

	auditor := &audit.Auditor{
		Chain:        chainClient,
		Store:        txStore,
		Peers:        peerRegistry,
		Slasher:      slash,
		Bundler:      audit.BundlerIdentity{Address: keys.Address(bundlerKey)},
		CurrentEpoch: func() uint64 { return epoch.Current(time.Now()) },
	}

	verify := func(r receipt.Receipt) (bool, error) {
		return receipt.Verify(r, bundlerKey)
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	sched := scheduler.New()
	if !cfg.NoCron {
		sched.Register("audit-pass", 120*time.Second, func(ctx context.Context) error {
			out := auditor.RunPass(ctx, verify)
			log.Printf("audit pass: bundles=%d items=%d slashes=%d missing=%d parse_err=%d file_err=%d",
				out.BundlesSeen, out.ItemsPersisted, out.SlashesCast, out.MissingReceipts, out.ParseErrors, out.FileErrors)
			return nil
		})
		sched.Register("contract-state-refresh", 30*time.Second, func(ctx context.Context) error {
			// Only logs the configured CONTRACT_GATEWAY_URL; no contract state
			// is fetched here, the contract-state source is external to this core.
			log.Printf("contract state refresh stub: %s", cfg.ContractGatewayURL)
			return nil
		})
		sched.Register("epoch-gc", 15*time.Minute, func(ctx context.Context) error {
			deleted, err := txStore.DeleteTxs(ctx, epoch.Current(time.Now()), uint64(cfg.AuditRetentionEpochs))
			if err != nil {
				return err
			}
			log.Printf("epoch gc: deleted %d rows", deleted)
			return nil
		})
		sched.Start(ctx)
		defer sched.Stop()
	} else {
		log.Println("NO_CRON set: scheduler disabled")
	}

	var httpServer *http.Server
	if !cfg.NoServer {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		httpServer = &http.Server{Addr: cfg.Listen, Handler: mux}
		go func() {
			log.Printf("metrics listening on %s", cfg.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("NO_SERVER set: metrics endpoint disabled")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutdown signal received")

	cancel()
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics server shutdown error: %v", err)
		}
	}

	return nil
}

func loadBundlerKey(cfg *config.Config) (*rsa.PublicKey, error) {
	if cfg.BundlerPublic != "" {
		pub, _, err := keys.PublicKeyFromModulus(cfg.BundlerPublic)
		return pub, err
	}
	pub, _, err := keys.PublicKeyFromJWKFile(cfg.BundlerKey)
	return pub, err
}

// realPeerHTTPClient adapts *http.Client to peer.HTTPClient.
type realPeerHTTPClient struct{}

func (realPeerHTTPClient) Execute(req *http.Request) (*http.Response, error) {
	return (&http.Client{Timeout: 15 * time.Second}).Do(req)
}
