package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"promptpilot/trustd/internal/config"
	"promptpilot/trustd/internal/platform/privacylog"
	"promptpilot/trustd/internal/rpc"
	"promptpilot/trustd/internal/trustcore"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	rpcAddr := flag.String("rpc-addr", "", "JSON-RPC listen address (default "+rpc.DefaultAddr+")")
	configPath := flag.String("config", "", "Path to trustd.yaml (optional)")
	dataDir := flag.String("data-dir", "", "Directory for trustd local data (optional)")
	rpcToken := flag.String("rpc-token", "", "RPC token for Authorization/X-Trustd-Token (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("trustd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *rpcToken != "" {
		_ = os.Setenv("TRUSTD_RPC_TOKEN", *rpcToken)
	}
	if *dataDir != "" {
		_ = os.Setenv("TRUSTD_DATA_DIR", *dataDir)
	}

	logger := slog.New(privacylog.WrapHandler(slog.NewTextHandler(os.Stderr, nil)))
	slog.SetDefault(logger)

	cfg := config.Load(*configPath)
	if *rpcAddr != "" {
		cfg.RPCAddr = *rpcAddr
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		logger.Error("trustd failed to prepare data dir", "error", err)
		os.Exit(1)
	}

	svc, err := trustcore.New(cfg, logger)
	if err != nil {
		logger.Error("trustd failed to initialize", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	srv := rpc.NewServer(cfg.RPCAddr, svc, cfg.RateLimit)
	logger.Info("trustd starting", "addr", cfg.RPCAddr)
	if err := srv.Run(ctx); err != nil {
		logger.Error("trustd failed", "error", err)
		os.Exit(1)
	}
	logger.Info("trustd stopped")
}
