package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dexgate-hq/dexgate/pkg/api"
	"github.com/dexgate-hq/dexgate/pkg/chainclient"
	"github.com/dexgate-hq/dexgate/pkg/circuitbreaker"
	"github.com/dexgate-hq/dexgate/pkg/config"
	"github.com/dexgate-hq/dexgate/pkg/executor"
	"github.com/dexgate-hq/dexgate/pkg/locks"
	"github.com/dexgate-hq/dexgate/pkg/logger"
	"github.com/dexgate-hq/dexgate/pkg/nonces"
	"github.com/dexgate-hq/dexgate/pkg/quotes"
	"github.com/dexgate-hq/dexgate/pkg/signer"
)

const (
	gasRefreshInterval = 15 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	networks, gasRoutines, err := buildNetworks(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to set up networks: %v", err)
	}

	lockReg := locks.NewRegistry(cfg.Lease.CleanupInterval, appLogger)
	nonceCache := nonces.NewCache(cfg.Nonce.MaxGap, cfg.Nonce.MaxAge, appLogger)
	quoteCache := quotes.NewCache(cfg.Quote.TTL)

	exec := executor.New(cfg, networks, lockReg, nonceCache, quoteCache, appLogger)

	lockReg.StartReaper()
	defer lockReg.StopReaper()
	for _, routine := range gasRoutines {
		routine.Start()
		defer routine.Stop()
	}

	server := api.NewServer(cfg, exec, appLogger)

	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		appLogger.Notice("Received termination signal, shutting down gracefully...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Shutdown did not complete cleanly: %v", err)
		}
		cancel()
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("Gateway server failed: %v", err)
	}
}

// buildNetworks dials every configured network and bundles its client, signer
// and circuit breaker. Fee refresh routines are returned for the caller to
// start once the service is up.
func buildNetworks(ctx context.Context, cfg *config.Config, appLogger logger.Logger) (map[string]*executor.Network, []*chainclient.GasRefreshRoutine, error) {
	networks := make(map[string]*executor.Network)
	var gasRoutines []*chainclient.GasRefreshRoutine

	for name, netCfg := range cfg.Networks {
		net := &executor.Network{
			Config: netCfg,
			Breaker: circuitbreaker.New(name, cfg.CircuitBreaker.Enabled, cfg.CircuitBreaker.Threshold,
				cfg.CircuitBreaker.WindowDuration, cfg.CircuitBreaker.ResetTimeout, appLogger),
		}

		switch netCfg.Family {
		case config.FamilyEthereum:
			if cfg.PrivateKey == "" {
				return nil, nil, fmt.Errorf("network %s requires PRIVATE_KEY to be set", name)
			}
			evmSigner, err := signer.NewSoftwareEvmSigner(cfg.PrivateKey)
			if err != nil {
				return nil, nil, err
			}
			policy := chainclient.GasPolicy{
				MaxGasPriceGwei:  netCfg.MaxGasPriceGwei,
				GasMultiplierPct: netCfg.GasMultiplierPct,
			}
			client, err := chainclient.NewEvmClient(ctx, name, netCfg.RPCURL, netCfg.ChainID, policy, appLogger)
			if err != nil {
				return nil, nil, err
			}
			net.Evm = client
			net.EvmSigner = evmSigner
			gasRoutines = append(gasRoutines, chainclient.NewGasRefreshRoutine(client, gasRefreshInterval))
			appLogger.InfoWithNetwork(name, "Connected, trading as %s", evmSigner.Address().Hex())

		case config.FamilySolana:
			if cfg.SvmPrivateKey == "" {
				return nil, nil, fmt.Errorf("network %s requires SVM_PRIVATE_KEY to be set", name)
			}
			svmSigner, err := signer.NewSoftwareSvmSigner(cfg.SvmPrivateKey)
			if err != nil {
				return nil, nil, err
			}
			client, err := chainclient.NewSvmClient(ctx, name, netCfg.RPCURL, appLogger)
			if err != nil {
				return nil, nil, err
			}
			net.Svm = client
			net.SvmSigner = svmSigner
			appLogger.InfoWithNetwork(name, "Connected, trading as %s", chainclient.Base58Encode(svmSigner.PublicKey()))
		}

		networks[name] = net
	}

	return networks, gasRoutines, nil
}
