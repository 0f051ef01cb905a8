// Package env reads process configuration from environment variables.
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// NodeSpec identifies one cluster member.
type NodeSpec struct {
	ID      string
	Port    int
	Address string
}

// Config is the process configuration with defaults for the local demo
// cluster.
type Config struct {
	FrontendAddr       string // broker frontend bind
	BackendAddr        string // broker backend bind
	ClientFrontendAddr string // broker frontend as dialed by clients
	NodeBackendAddr    string // broker backend as dialed by nodes

	ReplicationFactor int
	GossipInterval    time.Duration
	RingReplicas      int
	HashBits          int

	RedisAddr string // empty disables the durable store
	RedisDB   int

	SnapshotPath       string
	GatewayAddr        string
	GatewayMaxInflight int // concurrent gateway requests; <= 0 disables the cap

	Nodes []NodeSpec
}

// Load builds the configuration from the environment.
func Load() Config {
	cfg := Config{
		FrontendAddr:       getString("LISTMUX_FRONTEND_ADDR", "tcp://*:5558"),
		BackendAddr:        getString("LISTMUX_BACKEND_ADDR", "tcp://*:5559"),
		ClientFrontendAddr: getString("LISTMUX_CLIENT_FRONTEND_ADDR", "tcp://localhost:5558"),
		NodeBackendAddr:    getString("LISTMUX_NODE_BACKEND_ADDR", "tcp://localhost:5559"),
		ReplicationFactor:  getInt("LISTMUX_REPLICATION_FACTOR", 3),
		GossipInterval:     getDuration("LISTMUX_GOSSIP_INTERVAL", 10*time.Second),
		RingReplicas:       getInt("LISTMUX_RING_REPLICAS", 3),
		HashBits:           getInt("LISTMUX_HASH_BITS", 32),
		RedisAddr:          getString("LISTMUX_REDIS_ADDR", ""),
		RedisDB:            getInt("LISTMUX_REDIS_DB", 0),
		SnapshotPath:       getString("LISTMUX_SNAPSHOT_PATH", "data/shopping_list_data.json"),
		GatewayAddr:        getString("LISTMUX_GATEWAY_ADDR", "127.0.0.1:8080"),
		GatewayMaxInflight: getInt("LISTMUX_GATEWAY_MAX_INFLIGHT", 64),
	}
	cfg.Nodes = parseRoster(getString("LISTMUX_NODES", "node1:5001,node2:5002,node3:5003,node4:5004,node5:5005"))
	return cfg
}

// parseRoster parses "id:port,id:port,...". Malformed entries are skipped.
func parseRoster(s string) []NodeSpec {
	var nodes []NodeSpec
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, portStr, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			continue
		}
		nodes = append(nodes, NodeSpec{
			ID:      id,
			Port:    port,
			Address: fmt.Sprintf("tcp://localhost:%d", port),
		})
	}
	return nodes
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
