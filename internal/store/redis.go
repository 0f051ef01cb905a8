package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/edirooss/listmux/internal/crdt"
	"github.com/edirooss/listmux/internal/wire"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient dials the durable store and verifies connectivity once, so
// the cluster fails at bootstrap rather than discovering a dead store on the
// first persisted write. The one client is shared by every node's repository
// in the process.
func NewRedisClient(addr string, db int, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s db %d: %w", addr, db, err)
	}
	log.Named("redis").Info("connection established",
		zap.String("addr", addr),
		zap.Int("db", db),
		zap.Duration("ping_rtt", time.Since(start)),
	)
	return client, nil
}

// ListRepository provides Redis-backed persistence for shopping-list state,
// so a restarted node rejoins the cluster with the lists it held. The wire
// schema doubles as the storage document. Each node gets its own keyspace so
// replicas sharing one Redis do not cross-contaminate.
type ListRepository struct {
	client *redis.Client
	log    *zap.Logger

	keyPrefix string // listmux:<keyspace>:list:<id> → list document
	idsKey    string // listmux:<keyspace>:lists → SET of list ids
}

// NewListRepository initializes a ListRepository under the given keyspace,
// typically the owning node's id.
func NewListRepository(log *zap.Logger, client *redis.Client, keyspace string) *ListRepository {
	return &ListRepository{
		log:       log.Named("lists"),
		client:    client,
		keyPrefix: fmt.Sprintf("listmux:%s:list:", keyspace),
		idsKey:    fmt.Sprintf("listmux:%s:lists", keyspace),
	}
}

func (r *ListRepository) listKey(listID string) string { return r.keyPrefix + listID }

// Save persists a list's state and adds its id to the index set.
func (r *ListRepository) Save(ctx context.Context, listID string, l *crdt.ShoppingList) error {
	payload, err := json.Marshal(wire.FromList(l))
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.listKey(listID), payload, 0)
	pipe.SAdd(ctx, r.idsKey, listID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// Delete removes a list by id. Returns ErrListNotFound if the list key was
// not present. Logs a warning if the record and index set are inconsistent.
func (r *ListRepository) Delete(ctx context.Context, listID string) error {
	pipe := r.client.TxPipeline()
	delRes := pipe.Del(ctx, r.listKey(listID))
	sremRes := pipe.SRem(ctx, r.idsKey, listID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("exec: %w", err)
	}

	delCount := delRes.Val()
	sremCount := sremRes.Val()

	if delCount == 0 && sremCount == 0 {
		return ErrListNotFound
	}
	if delCount != sremCount {
		r.log.Warn("list delete mismatch",
			zap.String("list_id", listID),
			zap.Int64("del_count", delCount),
			zap.Int64("srem_count", sremCount),
		)
	}
	return nil
}

// Get fetches a list by its id. Returns ErrListNotFound if the key does not
// exist.
func (r *ListRepository) Get(ctx context.Context, listID string) (*crdt.ShoppingList, error) {
	raw, err := r.client.Get(ctx, r.listKey(listID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrListNotFound
		}
		return nil, fmt.Errorf("get: %w", err)
	}

	var state wire.ListState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return state.ToList(), nil
}

// LoadAll restores every persisted list into the manager.
func (r *ListRepository) LoadAll(ctx context.Context, m *Manager) error {
	ids, err := r.client.SMembers(ctx, r.idsKey).Result()
	if err != nil {
		return fmt.Errorf("smembers: %w", err)
	}

	for _, listID := range ids {
		l, err := r.Get(ctx, listID)
		if err != nil {
			if errors.Is(err, ErrListNotFound) {
				r.log.Warn("indexed list missing", zap.String("list_id", listID))
				continue
			}
			return fmt.Errorf("load %s: %w", listID, err)
		}
		m.Replace(listID, l)
	}
	return nil
}
