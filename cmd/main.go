// Command holdings reports the consolidated USD value of a Binance master account
// and all of its sub-accounts.
//
// Usage:
//
//	holdings --config config.yaml
//	holdings --once (print one snapshot and exit)
//
// Required environment variables:
//
//	BINANCE_API_KEY, BINANCE_API_SECRET
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/holdings/config"
	"github.com/vadiminshakov/holdings/internal"
	"github.com/vadiminshakov/holdings/internal/web"
)

func main() {
	conf, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(conf.Debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if !conf.HasCredentials() {
		logger.Warn("BINANCE_API_KEY and BINANCE_API_SECRET are not set, balances will be unavailable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := internal.NewAggregator(conf, logger)

	if conf.Once {
		snapshot, err := aggregator.Snapshot(ctx)
		if err != nil {
			logger.Error("failed to build portfolio snapshot", zap.Error(err))
			_ = logger.Sync()
			stop()
			os.Exit(1)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snapshot); err != nil {
			logger.Fatal("failed to write snapshot", zap.Error(err))
		}
		return
	}

	server := web.NewServer(conf.Addr, aggregator, logger)
	if len(conf.TLSDomains) > 0 {
		err = server.StartWithAutoTLS(ctx, conf.TLSDomains, conf.TLSCacheDir)
	} else {
		err = server.Start(ctx)
	}
	if err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
