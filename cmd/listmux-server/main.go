package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/edirooss/listmux/internal/broker"
	"github.com/edirooss/listmux/internal/env"
	"github.com/edirooss/listmux/internal/gossip"
	"github.com/edirooss/listmux/internal/node"
	"github.com/edirooss/listmux/internal/replication"
	"github.com/edirooss/listmux/internal/ring"
	"github.com/edirooss/listmux/internal/store"
	"github.com/edirooss/listmux/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	log := buildLogger()
	defer log.Sync()
	log = log.Named("main")

	cfg := env.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fabric := transport.NewZMQFabric(ctx)

	// The ring is shared by the broker and every node in this process;
	// gossip owns mutations once the cluster is running.
	rg := ring.New(cfg.RingReplicas, cfg.HashBits)
	for _, spec := range cfg.Nodes {
		rg.AddNode(spec.ID)
	}

	repl := replication.NewManager(log, rg, fabric, cfg.ReplicationFactor)

	peers := make([]gossip.Peer, 0, len(cfg.Nodes))
	for _, spec := range cfg.Nodes {
		peers = append(peers, gossip.Peer{NodeID: spec.ID, Address: spec.Address})
	}

	// Durable store is optional; without Redis the nodes are memory-only.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		var err error
		rdb, err = store.NewRedisClient(cfg.RedisAddr, cfg.RedisDB, log)
		if err != nil {
			log.Fatal("durable store unreachable", zap.Error(err))
		}
		defer rdb.Close()
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, spec := range cfg.Nodes {
		var repo *store.ListRepository
		if rdb != nil {
			repo = store.NewListRepository(log, rdb, spec.ID)
		}

		n, err := node.New(node.Config{
			Log:            log,
			NodeID:         spec.ID,
			Port:           spec.Port,
			Ring:           rg,
			Replication:    repl,
			Fabric:         fabric,
			Peers:          peers,
			GossipInterval: cfg.GossipInterval,
			BackendAddr:    cfg.NodeBackendAddr,
			Repo:           repo,
		})
		if err != nil {
			log.Fatal("node creation failed", zap.String("node", spec.ID), zap.Error(err))
		}

		g.Go(func() error { return n.Run(ctx) })
		log.Info("started node", zap.String("node", spec.ID), zap.Int("port", spec.Port))
	}

	brk := broker.New(log, rg, fabric, cfg.FrontendAddr, cfg.BackendAddr)
	g.Go(func() error { return brk.Run(ctx) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal("cluster failed", zap.Error(err))
	}
	log.Info("shut down")
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	return zap.Must(logConfig.Build())
}
