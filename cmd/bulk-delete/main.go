package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/edirooss/listmux/internal/client"
	"github.com/edirooss/listmux/internal/env"
	"github.com/edirooss/listmux/internal/transport"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	flag.Parse()
	listIDs := flag.Args()
	if len(listIDs) == 0 {
		fmt.Println("Usage: ./bulk-delete <list_id> [<list_id> ...]")
		os.Exit(1)
	}

	log := buildLogger()
	log = log.Named("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := env.Load()
	cli, err := client.New(log, transport.NewZMQFabric(ctx), cfg.ClientFrontendAddr)
	if err != nil {
		log.Fatal("client creation failed", zap.Error(err))
	}
	defer cli.Close()

	total := len(listIDs)
	for idx, listID := range listIDs {
		iterStart := time.Now()

		if err := cli.DeleteList(listID); err != nil {
			log.Fatal("list deletion failed",
				zap.String("list_id", listID),
				zap.Error(err),
			)
		}

		log.Info("list deleted",
			zap.String("list_id", listID),
			zap.Int("deleted", idx+1),
			zap.Int("total", total),
			zap.Duration("took", time.Since(iterStart)),
		)
	}
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}
